package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/config"
)

// FromRetryConfig converts config values to a RetryConfig.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if jitterFraction >= 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}

// FromBreakerConfig converts config values to a BreakerConfig. Zero values
// keep the NewBreaker defaults.
func FromBreakerConfig(threshold, cooldownSecs int) BreakerConfig {
	var cfg BreakerConfig
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// PolicyFor builds the call policy for one backend from extraction settings.
// CallRetries counts retries after the first call.
func PolicyFor(name, model string, rps float64, cfg config.ExtractionConfig) *Policy {
	retry := FromRetryConfig(cfg.CallRetries+1, 0, 0, 0, -1)
	retry.OnRetry = RetryLogger(name, model)

	breaker := FromBreakerConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs)
	breaker.OnStateChange = func(from, to BreakerState) {
		zap.L().Warn("backend circuit state change",
			zap.String("backend", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return NewPolicy(name, rps, retry, breaker)
}
