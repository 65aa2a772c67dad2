package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/storesync/internal/resilience"
	"github.com/sells-group/storesync/pkg/here"
)

// Reason classifies a per-store resolution failure.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonNoResult    Reason = "no_result"
	ReasonBadResponse Reason = "bad_response"
	ReasonTransport   Reason = "transport"
	ReasonCanceled    Reason = "canceled"
	ReasonPanic       Reason = "panic"
)

// Classify maps a geocoder error to a Reason.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case resilience.IsTimeout(err):
		return ReasonTimeout
	case errors.Is(err, here.ErrNoResult):
		return ReasonNoResult
	case errors.Is(err, here.ErrBadResponse):
		return ReasonBadResponse
	default:
		return ReasonTransport
	}
}

// Summary counts what happened during one Resolve call.
type Summary struct {
	Disabled         bool           `json:"disabled,omitempty"`
	Input            int            `json:"input"`
	Output           int            `json:"output"`
	CacheSize        int            `json:"cache_size"`
	CacheUnavailable bool           `json:"cache_unavailable,omitempty"`
	CacheHits        int            `json:"cache_hits"`
	CacheMisses      int            `json:"cache_misses"`
	ExternalCalls    int            `json:"external_calls"`
	Batches          int            `json:"batches"`
	Resolved         int            `json:"resolved"`
	Failed           int            `json:"failed"`
	Failures         map[Reason]int `json:"failures,omitempty"`
	CacheWritten     int            `json:"cache_written"`
	CacheWriteFailed bool           `json:"cache_write_failed,omitempty"`
	Duration         time.Duration  `json:"duration_ns"`
}
