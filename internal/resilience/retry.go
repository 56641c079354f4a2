package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls in-call retries with exponential backoff and jitter.
// These retries sit inside a single extraction attempt and only fire for
// transient errors; attempt-level escalation is the orchestrator's job.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction spreads each delay by up to ±fraction.
	JitterFraction float64

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool
	// OnRetry is called before each backoff sleep with the 1-based retry
	// number.
	OnRetry func(retry int, err error)
}

// DefaultRetryConfig returns the retry settings used for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 750 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsTransient
	}
	return c
}

// delay is the wait before retry n (0-based). unit is a jitter sample in
// [0, 1); 0.5 means no jitter.
func (c RetryConfig) delay(n int, unit float64) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(n))
	d = math.Min(d, float64(c.MaxBackoff))
	d += (unit*2 - 1) * d * c.JitterFraction
	return time.Duration(math.Max(d, 0))
}

// DoVal calls fn until it succeeds or returns an error that is not worth
// retrying, the attempts run out, or ctx is done. The last error is
// returned with T's zero value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var err error
	for n := 0; n < cfg.MaxAttempts; n++ {
		if n > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(n, err)
			}
			if Sleep(ctx, cfg.delay(n-1, rand.Float64())) != nil {
				return zero, err
			}
		}

		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return zero, err
		}
	}
	return zero, err
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
// latter case. A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(backend, model string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("retrying backend call",
			zap.String("backend", backend),
			zap.String("model", model),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
