package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Policy guards calls to one model backend. A call waits on the rate
// limiter, passes through the breaker, and is retried on transient errors.
// A nil *Policy calls fn directly.
type Policy struct {
	Name    string
	limiter *rate.Limiter
	breaker *Breaker
	retry   RetryConfig
}

// NewPolicy builds a Policy. rps <= 0 disables rate limiting.
func NewPolicy(name string, rps float64, retry RetryConfig, breaker BreakerConfig) *Policy {
	p := &Policy{
		Name:    name,
		breaker: NewBreaker(breaker),
		retry:   retry,
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return p
}

// Breaker exposes the backend's breaker.
func (p *Policy) Breaker() *Breaker {
	return p.breaker
}

// Call runs fn under p. Each retry re-enters the limiter and the breaker.
func Call[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	retry := p.retry
	if retry.ShouldRetry == nil {
		// An open breaker is not worth hammering.
		retry.ShouldRetry = func(err error) bool {
			return !eris.Is(err, ErrBackendUnavailable) && IsTransient(err)
		}
	}
	return DoVal(ctx, retry, func(ctx context.Context) (T, error) {
		var zero T
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return zero, eris.Wrapf(err, "resilience: %s rate limit wait", p.Name)
			}
		}
		return Guard(ctx, p.breaker, fn)
	})
}
