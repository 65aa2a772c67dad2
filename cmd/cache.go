package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the address cache",
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the address cache table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		store, err := openCache(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		zap.L().Info("cache migrated", zap.String("driver", cfg.Cache.Driver))
		return nil
	},
}

type cacheStats struct {
	Driver  string `json:"driver"`
	Entries int64  `json:"entries"`
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		store, err := openCache(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cacheStats{Driver: cfg.Cache.Driver, Entries: n})
	},
}

func init() {
	cacheCmd.AddCommand(cacheMigrateCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
