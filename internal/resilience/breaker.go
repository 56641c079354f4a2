// Package resilience wraps model backend calls with rate limiting, a circuit
// breaker and transient-error retries.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a backend breaker.
type BreakerState int

const (
	// StateClosed lets calls through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown has elapsed.
	StateOpen
	// StateHalfOpen lets a single probe call through.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBackendUnavailable is returned without calling the backend while its
// breaker is open or a half-open probe is already in flight.
var ErrBackendUnavailable = eris.New("resilience: backend unavailable")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive transient failures that open
	// the breaker. Default: 5.
	Threshold int
	// Cooldown is how long the breaker stays open before probing. Default: 60s.
	Cooldown time.Duration
	// OnStateChange is called with the breaker lock held; it must not call
	// back into the breaker.
	OnStateChange func(from, to BreakerState)
}

// Breaker tracks the health of one model backend. Only transient failures
// (rate limits, 5xx, network errors) count against it: a backend that
// rejects a malformed request is still up.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker returns a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Guard runs fn if b admits the call and records the outcome.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(ctx, err)
	return v, err
}

// State reports the breaker's position. An open breaker whose cooldown has
// passed reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledDown() {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current run of consecutive transient failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if !b.cooledDown() {
			return ErrBackendUnavailable
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrBackendUnavailable
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == StateHalfOpen
	b.probing = false

	// A call abandoned by its caller says nothing about the backend.
	if err != nil && ctx.Err() != nil {
		return
	}

	if err == nil || !IsTransient(err) {
		b.failures = 0
		if wasProbe {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			b.setState(StateOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}
