package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geoquery/internal/operator"
	"github.com/sells-group/geoquery/internal/workflow"
)

var (
	queryOperator string
	queryCriteria []string
	queryHazard   string
	queryVector   string
	queryFormat   string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Answer one spatial query and print the chain of thought",
	Example: `  geoquery query "Show areas with elevation below 50 in Gujarat"
  geoquery query "top 5 suitable locations in Kerala" --criteria slope.tif=0.6 --criteria roads.tif=0.4
  geoquery query "safe zones in Assam" --operator disaster_safe --hazard flood_mask.tif`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := parseCriteria(queryCriteria)
		if err != nil {
			return err
		}

		env, err := initEnv(cfg, "query")
		if err != nil {
			return err
		}

		st, err := env.Engine.Run(cmd.Context(), workflow.Request{
			Query:      strings.Join(args, " "),
			Operator:   queryOperator,
			Criteria:   criteria,
			HazardPath: queryHazard,
			VectorPath: queryVector,
		})
		if err != nil {
			return err
		}
		return printState(cmd.OutOrStdout(), st, queryFormat)
	},
}

// parseCriteria turns "path=weight" flags into overlay criteria.
func parseCriteria(flags []string) ([]operator.Criterion, error) {
	var out []operator.Criterion
	for _, f := range flags {
		i := strings.LastIndex(f, "=")
		if i <= 0 || i == len(f)-1 {
			return nil, eris.Errorf("criteria %q: expected path=weight", f)
		}
		w, err := strconv.ParseFloat(f[i+1:], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "criteria %q: parse weight", f)
		}
		out = append(out, operator.Criterion{Path: f[:i], Weight: w})
	}
	return out, nil
}

// report is the printed form of a finished query: the chain of thought
// followed by the final state without its trace.
type report struct {
	Trace       []string        `json:"trace" yaml:"trace"`
	State       *workflow.State `json:"state" yaml:"state"`
	MapArtifact string          `json:"map_artifact,omitempty" yaml:"map_artifact,omitempty"`
}

func printState(w io.Writer, st *workflow.State, format string) error {
	final := *st
	final.Trace = nil
	rep := report{Trace: st.Trace.Entries(), State: &final, MapArtifact: st.MapArtifact()}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(rep)
	case "text", "":
	default:
		return eris.Errorf("unknown format %q", format)
	}

	fmt.Fprintln(w, "Chain of thought:")
	for i, entry := range st.Trace {
		fmt.Fprintf(w, "  %d. %s\n", i+1, entry)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Query:   %s\n", st.Query)
	fmt.Fprintf(w, "Region:  %s\n", st.RegionName)
	for _, r := range st.Results {
		fmt.Fprintf(w, "%s: %s", r.Operator, r.Status)
		if r.Message != "" {
			fmt.Fprintf(w, " (%s)", r.Message)
		}
		fmt.Fprintln(w)
		for _, k := range sortedKeys(r.Outputs) {
			fmt.Fprintf(w, "  %s = %s\n", k, r.Outputs[k])
		}
	}
	if m := st.MapArtifact(); m != "" {
		fmt.Fprintf(w, "Map:     %s\n", m)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func init() {
	queryCmd.Flags().StringVar(&queryOperator, "operator", "", "force an operator (raster_analysis, vector_analysis, suitability_analysis, ranking, disaster_safe)")
	queryCmd.Flags().StringArrayVar(&queryCriteria, "criteria", nil, "suitability criterion as path=weight (repeatable)")
	queryCmd.Flags().StringVar(&queryHazard, "hazard", "", "binary hazard raster for disaster_safe")
	queryCmd.Flags().StringVar(&queryVector, "vector", "", "vector layer to buffer (default: region boundary)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(queryCmd)
}
