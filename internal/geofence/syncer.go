package geofence

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/batch"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/pkg/radar"
)

// ErrWriteFailure marks a failed create or delete.
var ErrWriteFailure = eris.New("geofence: write failed")

// Provider is the geofencing API.
type Provider interface {
	CreateGeofence(ctx context.Context, g radar.Geofence) error
	DeleteGeofence(ctx context.Context, tag, externalID string) error
}

// Op is a sync operation.
type Op string

const (
	OpCreate Op = "create"
	OpDelete Op = "delete"
)

// WriteError wraps a provider error for one item. It matches ErrWriteFailure.
type WriteError struct {
	Op  Op
	Key Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("geofence: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrWriteFailure.
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailure }

// SyncConfig controls the syncer.
type SyncConfig struct {
	BatchSize   int
	PacingDelay time.Duration
	Radius      int
	Tag         string
	// DryRun computes items without calling the provider.
	DryRun bool
	Sleep  batch.Sleeper
}

// DefaultSyncConfig returns batches of 10 with 1s between batches, a 1000m
// radius, and the "supermarkets" tag.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:   10,
		PacingDelay: time.Second,
		Radius:      1000,
		Tag:         "supermarkets",
	}
}

// ItemResult is the outcome of one create or delete.
type ItemResult struct {
	Key   Key         `json:"key"`
	Op    Op          `json:"op"`
	Store model.Store `json:"store"`
	Err   error       `json:"-"`
}

// OK reports whether the item succeeded.
func (r ItemResult) OK() bool { return r.Err == nil }

// SyncSummary aggregates item results.
type SyncSummary struct {
	DryRun       bool          `json:"dry_run,omitempty"`
	Created      int           `json:"created"`
	CreateFailed int           `json:"create_failed"`
	Deleted      int           `json:"deleted"`
	DeleteFailed int           `json:"delete_failed"`
	Batches      int           `json:"batches"`
	Duration     time.Duration `json:"duration_ns"`
}

// Failed returns the number of failed items.
func (s SyncSummary) Failed() int { return s.CreateFailed + s.DeleteFailed }

// SyncResult is returned by Sync.
type SyncResult struct {
	Items   []ItemResult `json:"items"`
	Summary SyncSummary  `json:"summary"`
}

// Syncer applies a DiffResult to the provider.
type Syncer struct {
	cfg      SyncConfig
	provider Provider
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncConfig, provider Provider) *Syncer {
	def := DefaultSyncConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Tag == "" {
		cfg.Tag = def.Tag
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	return &Syncer{cfg: cfg, provider: provider}
}

// Sync creates geofences for d.New, then deletes those for d.Removed. Item
// failures are recorded and logged; nothing is retried or rolled back.
func (s *Syncer) Sync(ctx context.Context, d DiffResult) *SyncResult {
	start := time.Now()
	res := &SyncResult{
		Items:   make([]ItemResult, 0, len(d.New)+len(d.Removed)),
		Summary: SyncSummary{DryRun: s.cfg.DryRun},
	}

	created := s.phase(ctx, OpCreate, d.New, &res.Summary)
	if len(created) > 0 && len(d.Removed) > 0 && s.cfg.PacingDelay > 0 && !s.cfg.DryRun {
		sleep := s.cfg.Sleep
		if sleep == nil {
			sleep = batch.Sleep
		}
		_ = sleep(ctx, s.cfg.PacingDelay)
	}
	deleted := s.phase(ctx, OpDelete, d.Removed, &res.Summary)

	res.Items = append(append(res.Items, created...), deleted...)
	for _, it := range res.Items {
		switch {
		case it.Op == OpCreate && it.OK():
			res.Summary.Created++
		case it.Op == OpCreate:
			res.Summary.CreateFailed++
		case it.OK():
			res.Summary.Deleted++
		default:
			res.Summary.DeleteFailed++
		}
	}
	res.Summary.Duration = time.Since(start)

	zap.L().Info("geofence: sync complete",
		zap.Bool("dry_run", s.cfg.DryRun),
		zap.Int("created", res.Summary.Created),
		zap.Int("create_failed", res.Summary.CreateFailed),
		zap.Int("deleted", res.Summary.Deleted),
		zap.Int("delete_failed", res.Summary.DeleteFailed),
		zap.Duration("duration", res.Summary.Duration),
	)
	return res
}

func (s *Syncer) phase(ctx context.Context, op Op, stores []model.Store, sum *SyncSummary) []ItemResult {
	results := make([]ItemResult, len(stores))
	if s.cfg.DryRun {
		for i, st := range stores {
			results[i] = ItemResult{Key: StoreKey(st), Op: op, Store: st}
		}
		return results
	}

	stats := batch.Each(ctx, batch.Config{
		Size:  s.cfg.BatchSize,
		Delay: s.cfg.PacingDelay,
		Sleep: s.cfg.Sleep,
		Name:  "geofence_" + string(op),
	}, stores, func(ctx context.Context, i int, st model.Store) {
		results[i] = s.apply(ctx, op, st)
	})
	sum.Batches += stats.Batches
	return results
}

func (s *Syncer) apply(ctx context.Context, op Op, st model.Store) (res ItemResult) {
	key := StoreKey(st)
	res = ItemResult{Key: key, Op: op, Store: st}

	defer func() {
		if p := recover(); p != nil {
			res.Err = &WriteError{Op: op, Key: key, Err: fmt.Errorf("panic: %v", p)}
		}
		if res.Err != nil {
			zap.L().Warn("geofence: write failed",
				zap.String("op", string(op)),
				zap.String("key", string(key)),
				zap.String("description", Description(st)),
				zap.Error(res.Err),
			)
		}
	}()

	var err error
	switch op {
	case OpCreate:
		err = s.provider.CreateGeofence(ctx, Payload(st, s.cfg.Tag, s.cfg.Radius))
	case OpDelete:
		err = s.provider.DeleteGeofence(ctx, s.cfg.Tag, string(key))
	}
	if err != nil {
		res.Err = &WriteError{Op: op, Key: key, Err: err}
	}
	return res
}
