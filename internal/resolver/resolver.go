// Package resolver fills in store coordinates using a cache-aside lookup in
// front of a paid geocoding provider.
package resolver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/batch"
	"github.com/sells-group/storesync/internal/geocache"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/normalize"
	"github.com/sells-group/storesync/pkg/here"
)

// Geocoder resolves a free-text query to a position.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*here.Position, error)
}

// Config controls the resolver.
type Config struct {
	Enabled     bool
	BatchSize   int
	PacingDelay time.Duration
	// DedupeMisses issues one provider call per distinct address key instead
	// of one per store.
	DedupeMisses bool
	// Sleep overrides the pacing sleeper.
	Sleep batch.Sleeper
}

// DefaultConfig returns the provider-safe defaults: batches of 5 with 1.1s
// between batches.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		BatchSize:   5,
		PacingDelay: 1100 * time.Millisecond,
	}
}

// Result is the resolver output.
type Result struct {
	// Stores carry valid coordinates: cache hits in input order followed by
	// newly resolved stores in input order.
	Stores   []model.Store
	Failures []Failure
	Summary  Summary
}

// Failure records one store that could not be resolved.
type Failure struct {
	Store  model.Store
	Reason Reason
	Err    error
}

// Resolver is the cache-aside geocoding orchestrator.
type Resolver struct {
	cfg      Config
	cache    geocache.Store
	geocoder Geocoder
	norm     normalize.Normalizer
}

// New creates a Resolver.
func New(cfg Config, cache geocache.Store, geocoder Geocoder, norm normalize.Normalizer) *Resolver {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Resolver{cfg: cfg, cache: cache, geocoder: geocoder, norm: norm}
}

type miss struct {
	store model.Store
	key   normalize.AddressKey
}

type outcome struct {
	coords model.Coordinates
	reason Reason
	err    error
}

// Resolve assigns coordinates to stores. It never fails: cache and provider
// errors are logged, counted in the summary, and degrade the result.
func (r *Resolver) Resolve(ctx context.Context, stores []model.Store) *Result {
	start := time.Now()
	log := zap.L().With(zap.String("component", "resolver"))

	if !r.cfg.Enabled {
		out := append([]model.Store(nil), stores...)
		return &Result{
			Stores:  out,
			Summary: Summary{Input: len(stores), Output: len(out), Disabled: true},
		}
	}

	sum := Summary{Input: len(stores), Failures: map[Reason]int{}}

	idx, err := geocache.Load(ctx, r.cache, r.norm)
	if err != nil {
		log.Warn("resolver: cache unavailable, continuing with empty cache", zap.Error(err))
		sum.CacheUnavailable = true
		idx = geocache.Index{}
	}
	sum.CacheSize = len(idx)

	hits := make([]model.Store, 0, len(stores))
	misses := make([]miss, 0)
	for _, s := range stores {
		key := r.norm.Key(s)
		if c, ok := idx[key]; ok {
			hits = append(hits, s.WithCoordinates(c))
			continue
		}
		misses = append(misses, miss{store: s, key: key})
	}
	sum.CacheHits = len(hits)
	sum.CacheMisses = len(misses)

	calls, fanout := r.plan(misses)
	outcomes := make([]outcome, len(calls))
	var external atomic.Int64

	stats := batch.Each(ctx, batch.Config{
		Size:  r.cfg.BatchSize,
		Delay: r.cfg.PacingDelay,
		Sleep: r.cfg.Sleep,
		Name:  "geocode",
	}, calls, func(ctx context.Context, i int, m miss) {
		external.Add(1)
		outcomes[i] = r.resolveOne(ctx, m.store)
	})
	sum.ExternalCalls = int(external.Load())
	sum.Batches = stats.Batches

	res := &Result{Stores: hits}
	var fresh []geocache.Entry
	written := make(map[int]bool, len(calls))
	for i, m := range misses {
		call := fanout[i]
		o := outcomes[call]
		if o.reason != "" {
			sum.Failed++
			sum.Failures[o.reason]++
			res.Failures = append(res.Failures, Failure{Store: m.store, Reason: o.reason, Err: o.err})
			log.Warn("resolver: geocode failed",
				zap.String("brand", m.store.Brand),
				zap.String("address", m.store.Address),
				zap.String("city", m.store.City),
				zap.String("reason", string(o.reason)),
				zap.Error(o.err),
			)
			continue
		}
		sum.Resolved++
		res.Stores = append(res.Stores, m.store.WithCoordinates(o.coords))
		if !written[call] {
			written[call] = true
			fresh = append(fresh, geocache.Entry{
				Address:   r.norm.Query(m.store),
				Latitude:  o.coords.Latitude,
				Longitude: o.coords.Longitude,
			})
		}
	}

	if err := r.cache.Append(ctx, fresh); err != nil {
		log.Error("resolver: cache write failed", zap.Int("entries", len(fresh)), zap.Error(err))
		sum.CacheWriteFailed = true
	} else {
		sum.CacheWritten = len(fresh)
	}

	sum.Output = len(res.Stores)
	sum.Duration = time.Since(start)
	res.Summary = sum

	log.Info("resolver: complete",
		zap.Int("input", sum.Input),
		zap.Int("cache_hits", sum.CacheHits),
		zap.Int("cache_misses", sum.CacheMisses),
		zap.Int("resolved", sum.Resolved),
		zap.Int("failed", sum.Failed),
		zap.Int("external_calls", sum.ExternalCalls),
		zap.Duration("duration", sum.Duration),
	)
	return res
}

// plan returns the provider calls to issue and, for each miss, the index of
// the call that answers it.
func (r *Resolver) plan(misses []miss) ([]miss, []int) {
	fanout := make([]int, len(misses))
	if !r.cfg.DedupeMisses {
		for i := range misses {
			fanout[i] = i
		}
		return misses, fanout
	}

	calls := make([]miss, 0, len(misses))
	seen := make(map[normalize.AddressKey]int, len(misses))
	for i, m := range misses {
		if j, ok := seen[m.key]; ok {
			fanout[i] = j
			continue
		}
		seen[m.key] = len(calls)
		fanout[i] = len(calls)
		calls = append(calls, m)
	}
	return calls, fanout
}

func (r *Resolver) resolveOne(ctx context.Context, s model.Store) (o outcome) {
	defer func() {
		if p := recover(); p != nil {
			o = outcome{reason: ReasonPanic, err: fmt.Errorf("resolver: geocode panicked: %v", p)}
		}
	}()

	pos, err := r.geocoder.Geocode(ctx, r.norm.Query(s))
	if err != nil {
		return outcome{reason: Classify(err), err: err}
	}
	if pos == nil {
		return outcome{reason: ReasonBadResponse, err: here.ErrBadResponse}
	}
	c := model.Coordinates{Latitude: pos.Lat, Longitude: pos.Lng}
	if c.IsSentinel() {
		return outcome{reason: ReasonNoResult, err: here.ErrNoResult}
	}
	return outcome{coords: c}
}
