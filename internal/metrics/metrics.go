// Package metrics exposes run outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/storesync/internal/pipeline"
)

const namespace = "storesync"

// Recorder records pipeline summaries. It implements pipeline.Observer.
type Recorder struct {
	registry *prometheus.Registry

	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	externalCalls prometheus.Counter
	geocodeFailed *prometheus.CounterVec
	cacheErrors   *prometheus.CounterVec
	geofenceOps   *prometheus.CounterVec
	lastOutput    prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewRecorder creates a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Address cache lookups by result.",
		}, []string{"result"}),
		externalCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_calls_total",
			Help:      "Calls made to the geocoding provider.",
		}),
		geocodeFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_failures_total",
			Help:      "Stores dropped because geocoding failed, by reason.",
		}, []string{"reason"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Address cache read and write failures.",
		}, []string{"op"}),
		geofenceOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geofence_operations_total",
			Help:      "Geofence writes by operation and status.",
		}, []string{"op", "status"}),
		lastOutput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_stores",
			Help:      "Stores carried by the most recent run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
	}

	r.registry.MustRegister(
		r.runs, r.runDuration, r.cacheLookups, r.externalCalls, r.geocodeFailed,
		r.cacheErrors, r.geofenceOps, r.lastOutput, r.lastSuccess,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records s.
func (r *Recorder) ObserveRun(_ context.Context, s *pipeline.RunSummary) {
	r.runs.Inc()
	r.runDuration.Observe(s.Duration().Seconds())
	r.lastOutput.Set(float64(s.Output))
	r.lastSuccess.Set(float64(s.FinishedAt.Unix()))

	res := s.Resolve
	r.cacheLookups.WithLabelValues("hit").Add(float64(res.CacheHits))
	r.cacheLookups.WithLabelValues("miss").Add(float64(res.CacheMisses))
	r.externalCalls.Add(float64(res.ExternalCalls))
	for reason, n := range res.Failures {
		r.geocodeFailed.WithLabelValues(string(reason)).Add(float64(n))
	}
	if res.CacheUnavailable {
		r.cacheErrors.WithLabelValues("read").Inc()
	}
	if res.CacheWriteFailed {
		r.cacheErrors.WithLabelValues("write").Inc()
	}

	if s.Sync != nil && !s.Sync.DryRun {
		r.geofenceOps.WithLabelValues("create", "ok").Add(float64(s.Sync.Created))
		r.geofenceOps.WithLabelValues("create", "failed").Add(float64(s.Sync.CreateFailed))
		r.geofenceOps.WithLabelValues("delete", "ok").Add(float64(s.Sync.Deleted))
		r.geofenceOps.WithLabelValues("delete", "failed").Add(float64(s.Sync.DeleteFailed))
	}
}
