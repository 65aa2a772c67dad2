// Package batch runs items in fixed-size, sequential batches with bounded
// concurrency inside each batch and a pacing delay between batches.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config controls batch size and pacing.
type Config struct {
	// Size is the number of items per batch, which is also the concurrency
	// cap. Values below 1 are treated as 1.
	Size int
	// Delay is the pause between consecutive batches. No pause follows the
	// final batch.
	Delay time.Duration
	// Sleep overrides the pacing sleeper. Nil uses Sleep.
	Sleep Sleeper
	// Name labels log lines.
	Name string
}

// Stats describes a completed run.
type Stats struct {
	Items   int
	Batches int
	Paused  time.Duration
}

// Each calls fn for every item. Batches run one after another; items within a
// batch run concurrently. fn must handle its own failures: Each has no error
// path, so one item can never cancel its siblings.
func Each[T any](ctx context.Context, cfg Config, items []T, fn func(ctx context.Context, index int, item T)) Stats {
	size := cfg.Size
	if size < 1 {
		size = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	log := zap.L().With(zap.String("batch", cfg.Name))
	stats := Stats{Items: len(items)}

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))

		if start > 0 && cfg.Delay > 0 {
			if err := sleep(ctx, cfg.Delay); err != nil {
				// Keep going; calls in the remaining batches see the
				// canceled context and fail fast.
				log.Debug("batch: pacing interrupted", zap.Error(err))
			} else {
				stats.Paused += cfg.Delay
			}
		}

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i, items[i])
				return nil
			})
		}
		_ = g.Wait()

		stats.Batches++
		log.Debug("batch: completed",
			zap.Int("batch_number", stats.Batches),
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(items)),
		)
	}

	return stats
}

// Count returns the number of batches needed for n items.
func Count(n, size int) int {
	if size < 1 {
		size = 1
	}
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
