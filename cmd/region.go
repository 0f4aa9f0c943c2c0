package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var regionSkipDEM bool

var regionCmd = &cobra.Command{
	Use:   "region <name>",
	Short: "Pre-fetch and cache a region's boundary and DEM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cfg, "region")
		if err != nil {
			return err
		}
		name := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		b, err := env.Boundaries.Resolve(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "boundary: %s (%s)\n", b.Path, b.Source)

		if regionSkipDEM {
			return nil
		}
		d, err := env.DEMs.Fetch(cmd.Context(), name, b.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "dem:      %s (%s)\n", d.Path, d.Source)

		zap.L().Info("region cached",
			zap.String("region", name),
			zap.Bool("boundary_cached", b.Cached),
			zap.Bool("dem_cached", d.Cached),
		)
		return nil
	},
}

func init() {
	regionCmd.Flags().BoolVar(&regionSkipDEM, "skip-dem", false, "only fetch the boundary")
	rootCmd.AddCommand(regionCmd)
}
