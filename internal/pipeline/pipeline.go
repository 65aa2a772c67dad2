// Package pipeline composes the resolver and the geofence syncer into one
// store-sync run.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/geofence"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/resolver"
)

// Skip reasons reported in RunSummary.GeofenceSkipped.
const (
	SkipDisabled        = "disabled"
	SkipGeocodeDisabled = "geocode_disabled"
)

// Config gates the pipeline stages.
type Config struct {
	GeocodeEnabled  bool
	GeofenceEnabled bool
}

// Resolver assigns coordinates to stores.
type Resolver interface {
	Resolve(ctx context.Context, stores []model.Store) *resolver.Result
}

// Syncer applies a geofence diff.
type Syncer interface {
	Sync(ctx context.Context, d geofence.DiffResult) *geofence.SyncResult
}

// Observer receives the summary of every completed run.
type Observer interface {
	ObserveRun(ctx context.Context, s *RunSummary)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, s *RunSummary)

// ObserveRun calls f.
func (f ObserverFunc) ObserveRun(ctx context.Context, s *RunSummary) { f(ctx, s) }

// Pipeline runs resolve, then diff and sync.
type Pipeline struct {
	cfg       Config
	resolver  Resolver
	syncer    Syncer
	observers []Observer
}

// New creates a Pipeline. res may be nil when geocoding is disabled and
// syncer may be nil when geofencing is disabled.
func New(cfg Config, res Resolver, syncer Syncer, observers ...Observer) *Pipeline {
	return &Pipeline{cfg: cfg, resolver: res, syncer: syncer, observers: observers}
}

// Validate reports configuration errors. It is the only failure path of Run.
func (p *Pipeline) Validate() error {
	if p.cfg.GeocodeEnabled && p.resolver == nil {
		return eris.New("pipeline: geocoding enabled without a resolver")
	}
	if p.cfg.GeocodeEnabled && p.cfg.GeofenceEnabled && p.syncer == nil {
		return eris.New("pipeline: geofencing enabled without a syncer")
	}
	return nil
}

// Run resolves stores and, when enabled, syncs geofences against previous.
// Partial failures never fail the run; they are reported in the summary.
func (p *Pipeline) Run(ctx context.Context, stores, previous []model.Store) (*RunResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Int("stores", len(stores)),
		zap.Int("previous", len(previous)),
		zap.Bool("geocode", p.cfg.GeocodeEnabled),
		zap.Bool("geofence", p.cfg.GeofenceEnabled),
	)

	result := &RunResult{
		Stores: stores,
		Summary: RunSummary{
			RunID:           runID,
			StartedAt:       time.Now().UTC(),
			GeocodeEnabled:  p.cfg.GeocodeEnabled,
			GeofenceEnabled: p.cfg.GeofenceEnabled,
		},
	}

	if !p.cfg.GeocodeEnabled {
		if p.cfg.GeofenceEnabled {
			log.Warn("pipeline: geofencing needs resolved coordinates, skipping")
			result.Summary.GeofenceSkipped = SkipGeocodeDisabled
		} else {
			result.Summary.GeofenceSkipped = SkipDisabled
		}
		return p.finish(ctx, result), nil
	}

	res := p.resolver.Resolve(ctx, stores)
	result.Stores = res.Stores
	result.Failures = res.Failures
	result.Summary.Resolve = res.Summary

	if !p.cfg.GeofenceEnabled {
		result.Summary.GeofenceSkipped = SkipDisabled
		return p.finish(ctx, result), nil
	}

	result.Diff = geofence.Diff(result.Stores, previous)
	result.Summary.Diff = DiffCounts{New: len(result.Diff.New), Removed: len(result.Diff.Removed)}
	log.Info("pipeline: geofence diff",
		zap.Int("new", result.Summary.Diff.New),
		zap.Int("removed", result.Summary.Diff.Removed),
	)

	synced := p.syncer.Sync(ctx, result.Diff)
	result.Items = synced.Items
	result.Summary.Sync = &synced.Summary

	return p.finish(ctx, result), nil
}

func (p *Pipeline) finish(ctx context.Context, result *RunResult) *RunResult {
	s := &result.Summary
	s.FinishedAt = time.Now().UTC()
	s.Output = len(result.Stores)

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", s.RunID),
		zap.Int("output", s.Output),
		zap.Int("geocode_failed", s.Resolve.Failed),
		zap.Int("geofence_failed", s.GeofenceFailures()),
		zap.Duration("duration", s.Duration()),
	)

	for _, o := range p.observers {
		o.ObserveRun(ctx, s)
	}
	return result
}
