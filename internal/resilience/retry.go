// Package resilience classifies provider errors and retries transient ones.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// Policy controls retries of a single provider call. The zero value makes
// one attempt.
type Policy struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Backoff is the first wait; it doubles per retry up to MaxBackoff,
	// with ±25% jitter.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Notify, if set, is called before each wait.
	Notify func(retry int, err error)
}

// NoRetry makes exactly one attempt.
func NoRetry() Policy { return Policy{} }

// FromSettings builds a Policy from flat config values.
func FromSettings(retries, backoffMs int) Policy {
	p := Policy{Retries: max(retries, 0), Backoff: defaultBackoff, MaxBackoff: defaultMaxBackoff}
	if backoffMs > 0 {
		p.Backoff = time.Duration(backoffMs) * time.Millisecond
	}
	return p
}

// Retry calls fn until it succeeds, fails with a non-transient error, or
// the retries run out. It returns the last error. Cancellation stops it
// without further attempts.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for retry := 0; ; retry++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if retry >= p.Retries || ctx.Err() != nil || !IsTransient(err) {
			return zero, err
		}

		if p.Notify != nil {
			p.Notify(retry+1, err)
		}
		timer := time.NewTimer(p.wait(retry))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (p Policy) wait(retry int) time.Duration {
	base, ceiling := p.Backoff, p.MaxBackoff
	if base <= 0 {
		base = defaultBackoff
	}
	if ceiling <= 0 {
		ceiling = defaultMaxBackoff
	}

	d := base
	for i := 0; i < retry && d < ceiling; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.75 + rand.Float64()/2))
	return min(d, ceiling)
}

// LogRetries returns a Notify callback that logs each retry.
func LogRetries(service string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("resilience: retrying provider call",
			zap.String("service", service),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
