// Package backend adapts vision model APIs to a single field-extraction call.
package backend

import (
	"context"

	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/raster"
)

// Request is one page-level extraction call.
type Request struct {
	Image  raster.Image
	System string
	Prompt string
}

// Response is the raw model output. Text may be malformed, fenced, truncated
// or empty; callers parse defensively.
type Response struct {
	Text  string
	Usage model.TokenUsage
	Model string
}

// FieldExtractor sends a page image plus a field prompt to a model.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req Request) (*Response, error)
	// Model returns the model ID used for cost attribution.
	Model() string
}
