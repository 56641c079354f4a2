package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/netsheet-cli/internal/intake"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal          int     `json:"runs_total"`
	RunsComplete       int     `json:"runs_complete"`
	RunsFailed         int     `json:"runs_failed"`
	RunsInFlight       int     `json:"runs_in_flight"`
	RunsNeedingReview  int     `json:"runs_needing_review"`
	FailRate           float64 `json:"fail_rate"`
	ReviewRate         float64 `json:"review_rate"`
	CostUSD            float64 `json:"cost_usd"`
	AvgFieldsExtracted float64 `json:"avg_fields_extracted"`

	// Intake health, when a poller is running.
	Intake *intake.HealthSnapshot `json:"intake,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// HealthReporter exposes the intake poller health.
type HealthReporter interface {
	Snapshot() intake.HealthSnapshot
}

// Collector gathers metrics from the store and the intake health state.
type Collector struct {
	store  store.Store
	health HealthReporter
}

// NewCollector creates a new metrics collector. health may be nil.
func NewCollector(st store.Store, health HealthReporter) *Collector {
	return &Collector{store: st, health: health}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalFields, withResult int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsInFlight++
		}
		if r.Result != nil {
			withResult++
			snap.CostUSD += r.Result.CostUSD
			totalFields += r.Result.FieldsExtracted
			if r.Result.NeedsReview {
				snap.RunsNeedingReview++
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if withResult > 0 {
		snap.ReviewRate = float64(snap.RunsNeedingReview) / float64(withResult)
		snap.AvgFieldsExtracted = float64(totalFields) / float64(withResult)
	}

	if c.health != nil {
		h := c.health.Snapshot()
		snap.Intake = &h
	}

	return snap, nil
}
