package model

import "time"

// Method identifies the strategy that produced an attempt or a final result.
type Method string

const (
	MethodPrimary   Method = "primary-model"
	MethodSecondary Method = "secondary-model"
	MethodMinimal   Method = "minimal-fallback"

	// MethodBestPartial labels a partial result whose data came from a
	// primary or secondary attempt.
	MethodBestPartial Method = "best-partial"
	// MethodMinimalPartial labels a partial result whose data came from the
	// minimal fallback. Downstream review treats it with less trust.
	MethodMinimalPartial Method = "minimal-fallback-partial"
	MethodNone           Method = "none"
)

// IsModel reports whether m is one of the full-schema model strategies.
func (m Method) IsModel() bool {
	return m == MethodPrimary || m == MethodSecondary
}

// Outcome classifies a robust extraction run.
type Outcome string

const (
	OutcomeFullSuccess    Outcome = "FULL_SUCCESS"
	OutcomePartialSuccess Outcome = "PARTIAL_SUCCESS"
	OutcomeFailure        Outcome = "FAILURE"
)

// TokenUsage tracks backend token consumption.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// PageResult is the merged output of one page-extraction pass over a document.
type PageResult struct {
	Data            FieldMap            `json:"data"`
	FieldsExtracted int                 `json:"fields_extracted"`
	TotalFields     int                 `json:"total_fields"`
	PagesAttempted  int                 `json:"pages_attempted"`
	PagesFailed     int                 `json:"pages_failed"`
	Corrections     []AppliedCorrection `json:"corrections,omitempty"`
	Usage           TokenUsage          `json:"usage"`
	Model           string              `json:"model,omitempty"`
	// Success is false when every page failed even though the document itself
	// was readable.
	Success bool `json:"success"`
}

// AppliedCorrection records a post-extraction correction rule that changed
// the field map.
type AppliedCorrection struct {
	Rule  string `json:"rule"`
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
	// Fuzzy marks heuristics whose accuracy is unverified; reviewers should
	// double-check the affected field.
	Fuzzy bool `json:"fuzzy"`
}

// ExtractionAttempt is one try of one strategy against one document. It is
// immutable once appended to an attempt log.
type ExtractionAttempt struct {
	AttemptNumber   int           `json:"attempt_number"`
	Method          Method        `json:"method"`
	Success         bool          `json:"success"`
	FieldsExtracted int           `json:"fields_extracted"`
	Error           string        `json:"error,omitempty"`
	TimedOut        bool          `json:"timed_out,omitempty"`
	Duration        time.Duration `json:"duration"`
	StartedAt       time.Time     `json:"started_at"`
	CostUSD         float64       `json:"cost_usd"`
	CachedResult    *PageResult   `json:"cached_result,omitempty"`
}

// RobustExtractionResult is the orchestrator's final output for one document.
type RobustExtractionResult struct {
	Outcome         Outcome             `json:"outcome"`
	Data            FieldMap            `json:"data"`
	FieldsExtracted int                 `json:"fields_extracted"`
	TotalFields     int                 `json:"total_fields"`
	Attempts        []ExtractionAttempt `json:"attempts"`
	FinalMethod     Method              `json:"final_method"`
	Error           string              `json:"error,omitempty"`
	Corrections     []AppliedCorrection `json:"corrections,omitempty"`
	Duration        time.Duration       `json:"duration"`
}

// Completeness returns FieldsExtracted / TotalFields, or 0 when the schema
// size is unknown.
func (r *RobustExtractionResult) Completeness() float64 {
	if r == nil || r.TotalFields <= 0 {
		return 0
	}
	return float64(r.FieldsExtracted) / float64(r.TotalFields)
}

// TotalCostUSD sums the estimated backend cost of every attempt.
func (r *RobustExtractionResult) TotalCostUSD() float64 {
	var total float64
	for _, a := range r.Attempts {
		total += a.CostUSD
	}
	return total
}

// NeedsReview reports whether a human should check the data before the net
// sheet is sent anywhere.
func (r *RobustExtractionResult) NeedsReview() bool {
	return r.Outcome != OutcomeFullSuccess || len(r.Corrections) > 0 && hasFuzzy(r.Corrections)
}

func hasFuzzy(cs []AppliedCorrection) bool {
	for _, c := range cs {
		if c.Fuzzy {
			return true
		}
	}
	return false
}
