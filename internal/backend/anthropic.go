package backend

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/resilience"
	"github.com/sells-group/netsheet-cli/pkg/anthropic"
)

// Anthropic extracts fields with a Claude model.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	policy    *resilience.Policy
}

// NewAnthropic creates a Claude-backed extractor for modelID.
func NewAnthropic(client anthropic.Client, modelID string, maxTokens int64, policy *resilience.Policy) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Anthropic{client: client, model: modelID, maxTokens: maxTokens, policy: policy}
}

// AnthropicFromConfig builds the primary or secondary Claude extractor. All
// Claude extractors built from one client share a policy so the breaker and
// limiter see every call to the API.
func AnthropicFromConfig(client anthropic.Client, modelID string, cfg *config.Config, policy *resilience.Policy) *Anthropic {
	if policy == nil {
		policy = resilience.PolicyFor("anthropic", modelID, cfg.Anthropic.RateLimitRPS, cfg.Extraction)
	}
	return NewAnthropic(client, modelID, cfg.Anthropic.MaxTokens, policy)
}

// Model returns the Claude model ID.
func (a *Anthropic) Model() string { return a.model }

// ExtractFields sends the page image and prompt as one user turn.
func (a *Anthropic) ExtractFields(ctx context.Context, req Request) (*Response, error) {
	data, err := req.Image.Bytes()
	if err != nil {
		return nil, err
	}
	temp := 0.0
	msg := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(req.System),
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []anthropic.Image{{MediaType: req.Image.MediaType, Data: data}},
		}},
	}

	resp, err := resilience.Call(ctx, a.policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		r, err := a.client.CreateMessage(ctx, msg)
		if err != nil {
			return nil, resilience.ClassifyStatus(err, anthropic.StatusCode(err))
		}
		return r, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "backend: anthropic page %d", req.Image.Page)
	}

	resp.Usage.LogUsage(a.model, "page_extraction")
	return &Response{
		Text:  resp.Text(),
		Model: a.model,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
