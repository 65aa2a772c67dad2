package pipeline

import (
	"time"

	"github.com/sells-group/storesync/internal/geofence"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/resolver"
)

// RunResult is the best-effort output of a run.
type RunResult struct {
	Stores   []model.Store         `json:"stores"`
	Failures []resolver.Failure    `json:"-"`
	Diff     geofence.DiffResult   `json:"-"`
	Items    []geofence.ItemResult `json:"-"`
	Summary  RunSummary            `json:"summary"`
}

// DiffCounts is the size of a geofence diff.
type DiffCounts struct {
	New     int `json:"new"`
	Removed int `json:"removed"`
}

// RunSummary describes one run for logs, metrics, and alerts.
type RunSummary struct {
	RunID           string                `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      time.Time             `json:"finished_at"`
	GeocodeEnabled  bool                  `json:"geocode_enabled"`
	GeofenceEnabled bool                  `json:"geofence_enabled"`
	GeofenceSkipped string                `json:"geofence_skipped,omitempty"`
	Output          int                   `json:"output"`
	Resolve         resolver.Summary      `json:"resolve"`
	Diff            DiffCounts            `json:"diff"`
	Sync            *geofence.SyncSummary `json:"sync,omitempty"`
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// GeofenceFailures returns the number of failed geofence writes.
func (s *RunSummary) GeofenceFailures() int {
	if s.Sync == nil {
		return 0
	}
	return s.Sync.Failed()
}
