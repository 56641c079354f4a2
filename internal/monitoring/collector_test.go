package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/netsheet-cli/internal/intake"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	runs    []model.Run
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []model.Run
	for _, r := range m.runs {
		if !filter.CreatedAfter.IsZero() && r.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// Unused store methods satisfy the interface.
func (m *mockStore) CreateRun(context.Context, string) (*model.Run, error)         { return nil, nil }
func (m *mockStore) UpdateRunStatus(context.Context, string, model.RunStatus) error { return nil }
func (m *mockStore) FinishRun(context.Context, string, model.RunStatus, *model.RunResult) error {
	return nil
}
func (m *mockStore) GetRun(context.Context, string) (*model.Run, error) { return nil, nil }
func (m *mockStore) RecordAttempt(context.Context, string, model.ExtractionAttempt) error {
	return nil
}
func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func TestCollector_EmptyStore(t *testing.T) {
	st := &mockStore{}
	c := NewCollector(st, nil)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Equal(t, 0, snap.RunsFailed)
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 0.0, snap.CostUSD)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Nil(t, snap.Intake)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_RunMetrics(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusComplete, CreatedAt: now.Add(-1 * time.Hour), Result: &model.RunResult{CostUSD: 0.12, FieldsExtracted: 28}},
			{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-2 * time.Hour), Result: &model.RunResult{CostUSD: 0.08, FieldsExtracted: 18, NeedsReview: true}},
			{ID: "3", Status: model.RunStatusFailed, CreatedAt: now.Add(-3 * time.Hour), Result: &model.RunResult{CostUSD: 0.30, NeedsReview: true}},
			{ID: "4", Status: model.RunStatusExtracting, CreatedAt: now.Add(-30 * time.Minute)},
			// Outside lookback window, filtered out.
			{ID: "5", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour), Result: &model.RunResult{CostUSD: 9}},
		},
	}

	c := NewCollector(st, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsInFlight)
	assert.Equal(t, 2, snap.RunsNeedingReview)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 0.001)
	assert.InDelta(t, 2.0/3.0, snap.ReviewRate, 0.001)
	assert.InDelta(t, 0.50, snap.CostUSD, 0.001)
	assert.InDelta(t, 46.0/3.0, snap.AvgFieldsExtracted, 0.001)
}

func TestCollector_IntakeHealth(t *testing.T) {
	health := intake.NewHealthState(1)
	health.RecordFailure(errors.New("inbox unreachable"))

	c := NewCollector(&mockStore{}, health)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	require.NotNil(t, snap.Intake)
	assert.True(t, snap.Intake.Degraded)
	assert.Equal(t, "inbox unreachable", snap.Intake.LastError)
}

func TestCollector_ListError(t *testing.T) {
	c := NewCollector(&mockStore{listErr: errors.New("db down")}, nil)
	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusQueued, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunStatusCalculating, CreatedAt: now.Add(-2 * time.Hour)},
		},
	}

	c := NewCollector(st, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	// No finished runs, so failure rate should be 0.
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 2, snap.RunsInFlight)
}
