// Package store persists document runs and their extraction attempt logs
// for diagnostics. SQLite serves single-host installs; Postgres serves the
// shared deployment.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/netsheet-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Document     string          `json:"document,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for document runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, document string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Attempts are appended in order and never updated.
	RecordAttempt(ctx context.Context, runID string, attempt model.ExtractionAttempt) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// StatusFor maps an extraction outcome to the terminal run status.
func StatusFor(outcome model.Outcome) model.RunStatus {
	if outcome == model.OutcomeFailure {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
