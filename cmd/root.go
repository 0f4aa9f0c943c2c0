package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoquery/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geoquery",
	Short: "Natural-language spatial query router",
	Long:  "Routes free-text spatial questions to raster and vector operators (threshold masks, buffers, suitability overlays, top-k ranking, safe zones) and reports the artifacts with a chain-of-thought trace.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
