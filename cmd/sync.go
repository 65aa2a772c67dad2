package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/storesync/internal/catalog"
	"github.com/sells-group/storesync/internal/config"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/monitoring"
)

const catalogTimeout = 2 * time.Minute

var (
	syncCatalog        string
	syncSnapshotDriver string
	syncDryRun         bool
	syncOutput         string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Geocode a store catalog and sync geofences",
	Long:  "Loads a store catalog, resolves coordinates through the address cache, diffs against the previous snapshot, applies geofence creates and deletes, and saves the new snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applySyncFlags(cfg)
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		stores, err := catalog.NewLoader(catalogTimeout).Load(ctx, syncCatalog)
		if err != nil {
			return err
		}

		env, err := initSync(ctx, cfg, monitoring.NewAlerter(cfg.Monitoring))
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Run(ctx, stores)
		if err != nil {
			return err
		}

		if syncOutput != "" {
			if err := writeStoresFile(syncOutput, result.Stores); err != nil {
				return err
			}
		}

		return printJSON(cmd.OutOrStdout(), result.Summary)
	},
}

func applySyncFlags(c *config.Config) {
	if syncSnapshotDriver != "" {
		c.Snapshot.Driver = syncSnapshotDriver
	}
	if syncDryRun {
		c.Geofence.DryRun = true
	}
}

func writeStoresFile(path string, stores []model.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := catalog.WriteJSON(f, stores); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	syncCmd.Flags().StringVar(&syncCatalog, "catalog", "", "store catalog file or URL (json, yaml, csv, xlsx)")
	syncCmd.Flags().StringVar(&syncSnapshotDriver, "snapshot-driver", "", "snapshot driver: file or postgres (default from config)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "compute the geofence diff without writing to the provider")
	syncCmd.Flags().StringVar(&syncOutput, "out", "", "write the resolved stores to this JSON file")
	_ = syncCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(syncCmd)
}
