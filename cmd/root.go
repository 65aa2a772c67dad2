package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "storesync",
	Short: "Geocode retail stores and keep their geofences in sync",
	Long:  "Resolves store coordinates through a persistent address cache and the HERE geocoder, then diffs the store list against the previous run and creates or deletes Radar geofences.",
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
