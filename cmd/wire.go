package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/config"
	"github.com/sells-group/storesync/internal/db"
	"github.com/sells-group/storesync/internal/geocache"
	"github.com/sells-group/storesync/internal/geofence"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/normalize"
	"github.com/sells-group/storesync/internal/pipeline"
	"github.com/sells-group/storesync/internal/resilience"
	"github.com/sells-group/storesync/internal/resolver"
	"github.com/sells-group/storesync/internal/snapshot"
	"github.com/sells-group/storesync/pkg/here"
	"github.com/sells-group/storesync/pkg/radar"
)

// syncEnv holds the wired pipeline and the stores it reads and writes.
type syncEnv struct {
	Pipeline *pipeline.Pipeline
	Snapshot snapshot.Store
	DryRun   bool

	closers []func()
}

// Close releases database handles.
func (e *syncEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Run diffs stores against the saved snapshot, runs the pipeline, and saves
// the resolved stores as the next snapshot. Dry runs and runs without
// geocoding leave the snapshot untouched.
func (e *syncEnv) Run(ctx context.Context, stores []model.Store) (*pipeline.RunResult, error) {
	previous, err := e.Snapshot.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load previous snapshot")
	}

	result, err := e.Pipeline.Run(ctx, stores, previous)
	if err != nil {
		return nil, err
	}

	if e.DryRun || !result.Summary.GeocodeEnabled {
		zap.L().Info("snapshot not saved",
			zap.String("run_id", result.Summary.RunID),
			zap.Bool("dry_run", e.DryRun),
		)
		return result, nil
	}
	if err := e.Snapshot.Save(ctx, result.Stores); err != nil {
		return result, eris.Wrap(err, "save snapshot")
	}
	return result, nil
}

// initSync wires clients, stores, and the pipeline from cfg. Callers must
// defer env.Close().
func initSync(ctx context.Context, c *config.Config, observers ...pipeline.Observer) (*syncEnv, error) {
	env := &syncEnv{DryRun: c.Geofence.DryRun}

	var res pipeline.Resolver
	if c.Geocode.Enabled {
		cache, err := openCache(ctx, c.Cache)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = cache.Close() })

		res = resolver.New(resolver.Config{
			Enabled:      true,
			BatchSize:    c.Geocode.BatchSize,
			PacingDelay:  c.Geocode.PacingDelay(),
			DedupeMisses: c.Geocode.DedupeMisses,
		}, cache, newGeocoder(c.Here), normalize.New(c.Normalize.LocaleToken, c.Normalize.Country))
	}

	var syncer pipeline.Syncer
	if c.Geofence.Enabled {
		syncer = geofence.NewSyncer(geofence.SyncConfig{
			BatchSize:   c.Geofence.BatchSize,
			PacingDelay: c.Geofence.PacingDelay(),
			Radius:      c.Geofence.Radius,
			Tag:         c.Geofence.Tag,
			DryRun:      c.Geofence.DryRun,
		}, newRadar(c.Radar))
	}

	snap, closeSnap, err := openSnapshot(ctx, c.Snapshot)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeSnap)
	env.Snapshot = snap

	env.Pipeline = pipeline.New(pipeline.Config{
		GeocodeEnabled:  c.Geocode.Enabled,
		GeofenceEnabled: c.Geofence.Enabled,
	}, res, syncer, observers...)
	if err := env.Pipeline.Validate(); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// openCache opens the address cache for the configured driver and creates
// its table.
func openCache(ctx context.Context, c config.CacheConfig) (geocache.Admin, error) {
	var store geocache.Admin
	switch c.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open cache")
		}
		store = geocache.NewPostgres(pool, c.Table)
	case "sqlite":
		s, err := geocache.NewSQLite(c.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "open cache")
		}
		store = s
	case "memory":
		store = geocache.NewMemory()
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", c.Driver)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}
	return store, nil
}

// openSnapshot opens the snapshot store for the configured driver.
func openSnapshot(ctx context.Context, c config.SnapshotConfig) (snapshot.Store, func(), error) {
	switch c.Driver {
	case "file":
		return snapshot.NewFile(c.Path), func() {}, nil
	case "postgres":
		pool, err := db.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open snapshot")
		}
		s := snapshot.NewPostgres(pool, c.Table, c.Name)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, eris.Wrap(err, "migrate snapshot")
		}
		return s, pool.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported snapshot driver: %s", c.Driver)
	}
}

func newGeocoder(c config.HereConfig) here.Client {
	return here.NewClient(c.APIKey,
		here.WithBaseURL(c.URL),
		here.WithTimeout(time.Duration(c.TimeoutSecs)*time.Second),
		here.WithRateLimit(c.RateLimit),
		here.WithRetry(resilience.FromSettings(c.MaxRetries, c.RetryBackoffMs)),
	)
}

func newRadar(c config.RadarConfig) radar.Client {
	return radar.NewClient(c.SecretKey,
		radar.WithBaseURL(c.URL),
		radar.WithTimeout(time.Duration(c.TimeoutSecs)*time.Second),
	)
}
