// Package gemini wraps the Google Gen AI SDK for single-image JSON extraction.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client defines the Gemini API operations used for extraction.
type Client interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

// Request is one vision prompt.
type Request struct {
	Model  string
	System string
	Prompt string
	Images []Image
	// JSON asks the model for an application/json response body.
	JSON bool
}

// Image is raw image data sent inline.
type Image struct {
	MediaType string
	Data      []byte
}

// Response is our own response type.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// APIError carries the HTTP status of a failed call.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Config holds client settings. BaseURL overrides the API endpoint.
type Config struct {
	APIKey  string
	BaseURL string
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, buildContents(req), buildConfig(req))
	if err != nil {
		wrapped := eris.Wrap(err, "gemini: generate content")
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.Code, Err: wrapped}
		}
		return nil, wrapped
	}
	return fromSDKResponse(resp, req.Model), nil
}

func buildContents(req Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MediaType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    genai.Ptr[float32](0),
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func fromSDKResponse(resp *genai.GenerateContentResponse, requested string) *Response {
	out := &Response{Text: resp.Text(), Model: resp.ModelVersion}
	if out.Model == "" {
		out.Model = requested
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int64(u.PromptTokenCount)
		out.OutputTokens = int64(u.CandidatesTokenCount)
	}
	return out
}
