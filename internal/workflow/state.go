// Package workflow routes natural-language spatial queries to analysis
// operators and records the reasoning as an append-only trace.
package workflow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/operator"
	"github.com/sells-group/geoquery/internal/raster"
)

// Step names a node of the workflow.
type Step string

// Workflow nodes. Operator steps share their names with the operators.
const (
	StepReasoning   Step = "reasoning"
	StepRaster      Step = operator.NameRaster
	StepVector      Step = operator.NameVector
	StepSuitability Step = operator.NameSuitability
	StepRanking     Step = operator.NameRanking
	StepDisaster    Step = operator.NameDisaster
	StepObserve     Step = "observe"
	StepComplete    Step = "complete"
)

var operatorSteps = []Step{StepRaster, StepVector, StepSuitability, StepRanking, StepDisaster}

// ParseStep resolves an explicit operator name. Empty means no override.
func ParseStep(s string) (Step, error) {
	if s == "" {
		return "", nil
	}
	for _, st := range operatorSteps {
		if string(st) == s {
			return st, nil
		}
	}
	return "", eris.Errorf("workflow: unknown operator %q", s)
}

// Trace is the chain of thought of one query. Entries are only appended.
type Trace []string

// Tracef implements operator.Tracer.
func (t *Trace) Tracef(format string, args ...any) {
	*t = append(*t, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the trace.
func (t Trace) Entries() []string {
	return append([]string(nil), t...)
}

// State carries one query through the workflow.
type State struct {
	ID    uuid.UUID `json:"id" yaml:"id"`
	Query string    `json:"query" yaml:"query"`
	Trace Trace     `json:"trace,omitempty" yaml:"trace,omitempty"`
	Step  Step      `json:"step" yaml:"step"`

	Region         string               `json:"region" yaml:"region"`
	RegionName     string               `json:"region_name" yaml:"region_name"`
	TopN           int                  `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	Threshold      float64              `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Comparison     raster.Comparison    `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	BufferDistance float64              `json:"buffer_distance,omitempty" yaml:"buffer_distance,omitempty"`
	Criteria       []operator.Criterion `json:"criteria,omitempty" yaml:"criteria,omitempty"`

	HazardMaskPath  string `json:"hazard_mask_path,omitempty" yaml:"hazard_mask_path,omitempty"`
	BoundaryPath    string `json:"boundary_path,omitempty" yaml:"boundary_path,omitempty"`
	DEMPath         string `json:"dem_path,omitempty" yaml:"dem_path,omitempty"`
	VectorPath      string `json:"vector_path,omitempty" yaml:"vector_path,omitempty"`
	SuitabilityPath string `json:"suitability_path,omitempty" yaml:"suitability_path,omitempty"`

	Results []operator.Result `json:"results" yaml:"results"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Complete reports whether the workflow has finished with this state.
func (s *State) Complete() bool { return s.Step == StepComplete }

// Last returns the result of the most recently executed operator.
func (s *State) Last() (operator.Result, bool) {
	if len(s.Results) == 0 {
		return operator.Result{}, false
	}
	return s.Results[len(s.Results)-1], true
}

// mapOutputs lists result outputs worth displaying, best first.
var mapOutputs = []string{
	operator.OutputVectorized,
	operator.OutputBuffered,
	operator.OutputRanking,
	operator.OutputSafeZones,
}

// MapArtifact returns the vector artifact to display for the query: the
// latest operator output that is a map layer, else the region boundary.
func (s *State) MapArtifact() string {
	for i := len(s.Results) - 1; i >= 0; i-- {
		for _, key := range mapOutputs {
			if p := s.Results[i].Output(key); p != "" {
				return p
			}
		}
	}
	return s.BoundaryPath
}

func (s *State) record(r operator.Result) {
	s.Results = append(s.Results, r)
	if r.Status == operator.StatusError && s.Error == "" {
		s.Error = r.Message
	}
}
