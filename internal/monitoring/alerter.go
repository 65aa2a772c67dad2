// Package monitoring turns run summaries into webhook alerts.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/config"
	"github.com/sells-group/storesync/internal/pipeline"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertGeocodeFailureRate AlertType = "geocode_failure_rate"
	AlertCacheUnavailable   AlertType = "cache_unavailable"
	AlertCacheWriteFailure  AlertType = "cache_write_failure"
	AlertGeofenceFailures   AlertType = "geofence_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSummary against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the summary against thresholds and returns any alerts.
func (a *Alerter) Evaluate(s *pipeline.RunSummary) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	res := s.Resolve

	// Check geocoding failure rate over this run's cache misses.
	minSample := a.cfg.MinGeocodeSample
	if minSample < 1 {
		minSample = 1
	}
	if res.CacheMisses >= minSample {
		rate := float64(res.Failed) / float64(res.CacheMisses)
		if rate > a.cfg.GeocodeFailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertGeocodeFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Geocoding failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d looked up)",
					rate*100, a.cfg.GeocodeFailureRateThreshold*100, res.Failed, res.CacheMisses,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.GeocodeFailureRateThreshold,
					"failed":       res.Failed,
					"looked_up":    res.CacheMisses,
					"reasons":      res.Failures,
				},
				Timestamp: now,
			})
		}
	}

	// Check cache health.
	if res.CacheUnavailable {
		alerts = append(alerts, Alert{
			Type:      AlertCacheUnavailable,
			Severity:  "high",
			Message:   fmt.Sprintf("Address cache unreadable; %d stores were geocoded without it", res.CacheMisses),
			Details:   map[string]any{"external_calls": res.ExternalCalls},
			Timestamp: now,
		})
	}
	if res.CacheWriteFailed {
		alerts = append(alerts, Alert{
			Type:      AlertCacheWriteFailure,
			Severity:  "medium",
			Message:   fmt.Sprintf("Failed to persist %d new cache entries", res.Resolved),
			Timestamp: now,
		})
	}

	// Check geofence writes.
	if failed := s.GeofenceFailures(); failed > a.cfg.GeofenceFailureThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertGeofenceFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d geofence write(s) failed (threshold %d)",
				failed, a.cfg.GeofenceFailureThreshold,
			),
			Details: map[string]any{
				"create_failed": s.Sync.CreateFailed,
				"delete_failed": s.Sync.DeleteFailed,
			},
			Timestamp: now,
		})
	}

	for i := range alerts {
		alerts[i].RunID = s.RunID
	}
	return alerts
}

// ObserveRun evaluates s and sends any resulting alerts.
func (a *Alerter) ObserveRun(ctx context.Context, s *pipeline.RunSummary) {
	alerts := a.Evaluate(s)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered", zap.String("run_id", s.RunID))
		return
	}

	sent := a.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.String("run_id", s.RunID),
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
