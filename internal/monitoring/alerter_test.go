package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesync/internal/config"
	"github.com/sells-group/storesync/internal/geofence"
	"github.com/sells-group/storesync/internal/pipeline"
	"github.com/sells-group/storesync/internal/resolver"
)

func defaultMonitoring() config.MonitoringConfig {
	return config.MonitoringConfig{
		GeocodeFailureRateThreshold: 0.25,
		MinGeocodeSample:            5,
		GeofenceFailureThreshold:    0,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(defaultMonitoring())

	s := &pipeline.RunSummary{
		Resolve: resolver.Summary{CacheHits: 90, CacheMisses: 10, Resolved: 9, Failed: 1},
		Sync:    &geofence.SyncSummary{Created: 9},
	}

	assert.Empty(t, a.Evaluate(s))
}

func TestAlerter_Evaluate_GeocodeFailureRate(t *testing.T) {
	a := NewAlerter(defaultMonitoring())

	s := &pipeline.RunSummary{
		RunID: "run-42",
		Resolve: resolver.Summary{
			CacheMisses: 20,
			Resolved:    12,
			Failed:      8,
			Failures:    map[resolver.Reason]int{resolver.ReasonTimeout: 8},
		},
	}

	alerts := a.Evaluate(s)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertGeocodeFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "run-42", alerts[0].RunID)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumSampleRequired(t *testing.T) {
	a := NewAlerter(defaultMonitoring())

	// Only 3 lookups, below the 5-lookup minimum.
	s := &pipeline.RunSummary{Resolve: resolver.Summary{CacheMisses: 3, Failed: 3}}
	assert.Empty(t, a.Evaluate(s))
}

func TestAlerter_Evaluate_CacheProblems(t *testing.T) {
	a := NewAlerter(defaultMonitoring())

	s := &pipeline.RunSummary{Resolve: resolver.Summary{
		CacheUnavailable: true,
		CacheWriteFailed: true,
		CacheMisses:      4,
		Resolved:         4,
	}}

	alerts := a.Evaluate(s)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertCacheUnavailable, alerts[0].Type)
	assert.Equal(t, AlertCacheWriteFailure, alerts[1].Type)
	assert.Equal(t, "medium", alerts[1].Severity)
}

func TestAlerter_Evaluate_GeofenceFailures(t *testing.T) {
	cfg := defaultMonitoring()
	cfg.GeofenceFailureThreshold = 2
	a := NewAlerter(cfg)

	s := &pipeline.RunSummary{Sync: &geofence.SyncSummary{CreateFailed: 1, DeleteFailed: 1}}
	assert.Empty(t, a.Evaluate(s))

	s.Sync.DeleteFailed = 2
	alerts := a.Evaluate(s)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertGeofenceFailures, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "3 geofence")
}

func TestAlerter_ObserveRun_SendsWebhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertCacheUnavailable, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := defaultMonitoring()
	cfg.WebhookURL = ts.URL
	a := NewAlerter(cfg)

	a.ObserveRun(context.Background(), &pipeline.RunSummary{Resolve: resolver.Summary{CacheUnavailable: true}})
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertGeocodeFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertGeofenceFailures, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertGeocodeFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertGeofenceFailures, Message: "test"}})
	assert.Equal(t, 0, sent)
}
