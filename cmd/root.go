package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triguard/subro-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "subro-cli",
	Short:        "Subrogation recovery prediction pipeline",
	Long:         "Merges claim tables, engineers leakage-safe features, trains a cross-validated gradient-boosting ensemble, and scores claims for subrogation recovery potential.",
	SilenceUsage: true,
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
