package backend

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/resilience"
	"github.com/sells-group/netsheet-cli/pkg/gemini"
)

// Gemini extracts fields with a Gemini model in JSON response mode.
type Gemini struct {
	client gemini.Client
	model  string
	policy *resilience.Policy
}

// NewGemini creates a Gemini-backed extractor.
func NewGemini(client gemini.Client, modelID string, policy *resilience.Policy) *Gemini {
	return &Gemini{client: client, model: modelID, policy: policy}
}

// GeminiFromConfig builds the secondary extractor from config.
func GeminiFromConfig(client gemini.Client, cfg *config.Config) *Gemini {
	policy := resilience.PolicyFor("gemini", cfg.Gemini.Model, cfg.Gemini.RateLimitRPS, cfg.Extraction)
	return NewGemini(client, cfg.Gemini.Model, policy)
}

// Model returns the Gemini model ID.
func (g *Gemini) Model() string { return g.model }

// ExtractFields sends the page image and prompt.
func (g *Gemini) ExtractFields(ctx context.Context, req Request) (*Response, error) {
	data, err := req.Image.Bytes()
	if err != nil {
		return nil, err
	}
	greq := gemini.Request{
		Model:  g.model,
		System: req.System,
		Prompt: req.Prompt,
		Images: []gemini.Image{{MediaType: req.Image.MediaType, Data: data}},
		JSON:   true,
	}

	resp, err := resilience.Call(ctx, g.policy, func(ctx context.Context) (*gemini.Response, error) {
		r, err := g.client.GenerateContent(ctx, greq)
		if err != nil {
			return nil, resilience.ClassifyStatus(err, gemini.StatusCode(err))
		}
		return r, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "backend: gemini page %d", req.Image.Page)
	}

	return &Response{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: model.TokenUsage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}, nil
}
