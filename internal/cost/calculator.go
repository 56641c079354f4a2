package cost

import (
	"strings"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/model"
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Rates holds pricing keyed by model ID.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// Calculator computes costs for model API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// FromConfig layers configured pricing over DefaultRates.
func FromConfig(cfg config.PricingConfig) *Calculator {
	rates := DefaultRates()
	for id, p := range cfg.Models {
		r := rates.Models[id]
		r.Input, r.Output = p.Input, p.Output
		rates.Models[id] = r
	}
	return NewCalculator(rates)
}

// Rate returns the pricing for modelID. Dated model IDs fall back to their
// undated family prefix, so "gemini-2.5-flash-001" uses "gemini-2.5-flash".
func (c *Calculator) Rate(modelID string) (ModelRate, bool) {
	if r, ok := c.rates.Models[modelID]; ok {
		return r, true
	}
	best := ""
	for id := range c.rates.Models {
		if strings.HasPrefix(modelID, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return c.rates.Models[best], true
}

// Tokens computes the cost of a call. Unknown models cost 0.
func (c *Calculator) Tokens(modelID string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.Rate(modelID)
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// Usage computes the cost of accumulated usage for modelID.
func (c *Calculator) Usage(modelID string, u model.TokenUsage) float64 {
	return c.Tokens(modelID, u.InputTokens, u.OutputTokens, 0, 0)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"gemini-2.5-flash": {
				Input: 0.30, Output: 2.50,
			},
			"gemini-2.5-pro": {
				Input: 1.25, Output: 10.00,
			},
		},
	}
}
