package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/storesync/internal/catalog"
	"github.com/sells-group/storesync/internal/geofence"
	"github.com/sells-group/storesync/internal/model"
)

var (
	diffCurrent  string
	diffPrevious string
	diffFormat   string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show which geofences a store list would create and delete",
	Long:  "Compares two store lists by geofence key. Without --previous the configured snapshot is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loader := catalog.NewLoader(catalogTimeout)

		current, err := loader.Load(ctx, diffCurrent)
		if err != nil {
			return err
		}
		previous, err := loadPrevious(ctx, loader)
		if err != nil {
			return err
		}

		radius := 0
		if cfg != nil {
			radius = cfg.Geofence.Radius
		}
		out, err := diffOutput(diffFormat, geofence.Diff(current, previous), radius)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

// diffOutput selects the rendering of d: "json" lists keys and
// descriptions, "geojson" emits a FeatureCollection of geofence centers.
func diffOutput(format string, d geofence.DiffResult, radius int) (any, error) {
	switch format {
	case "", "json":
		return newDiffReport(d), nil
	case "geojson":
		return geofence.Features(d, radius), nil
	default:
		return nil, eris.Errorf("diff: unknown format %q", format)
	}
}

func loadPrevious(ctx context.Context, loader *catalog.Loader) ([]model.Store, error) {
	if diffPrevious != "" {
		return loader.Load(ctx, diffPrevious)
	}
	snap, closeSnap, err := openSnapshot(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	defer closeSnap()
	return snap.Load(ctx)
}

type diffEntry struct {
	Key         geofence.Key `json:"key"`
	Description string       `json:"description"`
}

type diffReport struct {
	New     []diffEntry `json:"new"`
	Removed []diffEntry `json:"removed"`
}

func newDiffReport(d geofence.DiffResult) diffReport {
	entries := func(stores []model.Store) []diffEntry {
		out := make([]diffEntry, 0, len(stores))
		for _, s := range stores {
			out = append(out, diffEntry{Key: geofence.StoreKey(s), Description: geofence.Description(s)})
		}
		return out
	}
	return diffReport{New: entries(d.New), Removed: entries(d.Removed)}
}

func init() {
	diffCmd.Flags().StringVar(&diffCurrent, "current", "", "current store list file or URL")
	diffCmd.Flags().StringVar(&diffPrevious, "previous", "", "previous store list file or URL")
	diffCmd.Flags().StringVar(&diffFormat, "format", "json", "output format: json or geojson")
	_ = diffCmd.MarkFlagRequired("current")
	rootCmd.AddCommand(diffCmd)
}
