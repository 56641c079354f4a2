package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of a document run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusExtracting  RunStatus = "extracting"
	RunStatusCalculating RunStatus = "calculating"
	RunStatusReporting   RunStatus = "reporting"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run is one document passing through the pipeline.
type Run struct {
	ID        string              `json:"id"`
	Document  string              `json:"document"`
	Status    RunStatus           `json:"status"`
	Result    *RunResult          `json:"result,omitempty"`
	Attempts  []ExtractionAttempt `json:"attempts,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// RunResult is the persisted summary of a finished run.
type RunResult struct {
	Outcome         Outcome           `json:"outcome"`
	FinalMethod     Method            `json:"final_method"`
	FieldsExtracted int               `json:"fields_extracted"`
	TotalFields     int               `json:"total_fields"`
	NeedsReview     bool              `json:"needs_review"`
	CostUSD         float64           `json:"cost_usd"`
	Error           string            `json:"error,omitempty"`
	Data            FieldMap          `json:"data,omitempty"`
	NetSheet        json.RawMessage   `json:"net_sheet,omitempty"`
	Links           map[string]string `json:"links,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
}

// NewRunResult summarizes an extraction result. Net sheet and links are
// filled in by later stages.
func NewRunResult(r *RobustExtractionResult) *RunResult {
	if r == nil {
		return &RunResult{Outcome: OutcomeFailure, FinalMethod: MethodNone}
	}
	return &RunResult{
		Outcome:         r.Outcome,
		FinalMethod:     r.FinalMethod,
		FieldsExtracted: r.FieldsExtracted,
		TotalFields:     r.TotalFields,
		NeedsReview:     r.NeedsReview(),
		CostUSD:         r.TotalCostUSD(),
		Error:           r.Error,
		Data:            r.Data,
		DurationMs:      r.Duration.Milliseconds(),
	}
}
