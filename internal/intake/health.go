package intake

import (
	"sync"
	"time"
)

// HealthState tracks poller health across cycles. It is safe for concurrent
// use; each Poller owns its own instance.
type HealthState struct {
	mu                sync.Mutex
	maxConsecutive    int
	consecutiveErrors int
	lastProcessed     time.Time
	lastError         string
	lastErrorAt       time.Time
	processed         int
	failed            int
	now               func() time.Time
}

// HealthSnapshot is a point-in-time copy of a HealthState.
type HealthSnapshot struct {
	Degraded          bool      `json:"degraded"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastProcessed     time.Time `json:"last_processed,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	LastErrorAt       time.Time `json:"last_error_at,omitempty"`
	Processed         int       `json:"processed"`
	Failed            int       `json:"failed"`
}

// NewHealthState creates a HealthState that reports degraded after
// maxConsecutive errors in a row. Values below 1 are treated as 1.
func NewHealthState(maxConsecutive int) *HealthState {
	if maxConsecutive < 1 {
		maxConsecutive = 1
	}
	return &HealthState{maxConsecutive: maxConsecutive, now: time.Now}
}

// RecordSuccess clears the consecutive error count and stamps the last
// processed time. The last error message is kept for diagnostics.
func (h *HealthState) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors = 0
	h.processed++
	h.lastProcessed = h.now().UTC()
}

// RecordFailure counts one more consecutive error.
func (h *HealthState) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors++
	h.failed++
	h.lastErrorAt = h.now().UTC()
	if err != nil {
		h.lastError = err.Error()
	}
}

// Reset returns the state to its initial values.
func (h *HealthState) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors = 0
	h.processed = 0
	h.failed = 0
	h.lastProcessed = time.Time{}
	h.lastError = ""
	h.lastErrorAt = time.Time{}
}

// Degraded reports whether the consecutive error count reached the limit.
func (h *HealthState) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutiveErrors >= h.maxConsecutive
}

// Snapshot returns a copy of the current state.
func (h *HealthState) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Degraded:          h.consecutiveErrors >= h.maxConsecutive,
		ConsecutiveErrors: h.consecutiveErrors,
		LastProcessed:     h.lastProcessed,
		LastError:         h.lastError,
		LastErrorAt:       h.lastErrorAt,
		Processed:         h.processed,
		Failed:            h.failed,
	}
}
