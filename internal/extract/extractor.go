package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/backend"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/raster"
)

// DocumentError is a document-level failure (unreadable file, zero pages,
// nothing rasterized). No strategy can recover from it.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("extract: document %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// IsDocumentError reports whether err is or wraps a DocumentError.
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}

// documentErr classifies a rasterizer failure. Cancellation is the caller's
// timeout, not a property of the document.
func documentErr(ctx context.Context, path string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &DocumentError{Path: path, Err: err}
}

// Extractor runs one extraction pass: rasterize the bound pages, call the
// backend once per page, merge the page maps and apply corrections.
type Extractor struct {
	rasterizer  raster.Rasterizer
	backend     backend.FieldExtractor
	schema      *Schema
	corrections []Correction
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCorrections replaces the default correction rules.
func WithCorrections(rules []Correction) Option {
	return func(e *Extractor) { e.corrections = rules }
}

// New creates an Extractor. A nil schema uses DefaultSchema.
func New(r raster.Rasterizer, b backend.FieldExtractor, schema *Schema, opts ...Option) *Extractor {
	if schema == nil {
		schema = DefaultSchema()
	}
	e := &Extractor{rasterizer: r, backend: b, schema: schema}
	e.corrections = DefaultCorrections(schema)
	for _, o := range opts {
		o(e)
	}
	return e
}

// Schema returns the extractor's field schema.
func (e *Extractor) Schema() *Schema { return e.schema }

// Extract runs bindings against docPath. A page whose backend call or parse
// fails contributes nothing; only document-level failures return an error.
// The temp page directory is removed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, docPath string, bindings []PageBinding) (*model.PageResult, error) {
	log := zap.L().With(zap.String("document", filepath.Base(docPath)), zap.String("model", e.backend.Model()))

	count, err := e.rasterizer.PageCount(ctx, docPath)
	if err != nil {
		return nil, documentErr(ctx, docPath, err)
	}
	if count == 0 {
		return nil, &DocumentError{Path: docPath, Err: eris.New("document has zero pages")}
	}

	usable := make([]PageBinding, 0, len(bindings))
	for _, b := range bindings {
		if b.Page > count {
			log.Warn("extract: binding beyond page count",
				zap.Int("page", b.Page), zap.Int("page_count", count), zap.String("group", b.Group))
			continue
		}
		usable = append(usable, b)
	}
	if len(usable) == 0 {
		return nil, &DocumentError{Path: docPath, Err: eris.Errorf("no bound pages within %d-page document", count)}
	}

	set, err := e.rasterizer.Rasterize(ctx, docPath, Pages(usable))
	if err != nil {
		return nil, documentErr(ctx, docPath, err)
	}
	defer set.CloseQuietly()

	images := make(map[int]raster.Image, len(set.Images))
	for _, img := range set.Images {
		images[img.Page] = img
	}

	result := &model.PageResult{
		TotalFields: e.schema.TotalFields(),
		Model:       e.backend.Model(),
	}
	merged := model.FieldMap{}
	for _, b := range usable {
		if ctx.Err() != nil {
			break
		}
		result.PagesAttempted++

		img, ok := images[b.Page]
		if !ok {
			result.PagesFailed++
			log.Warn("extract: page not rendered", zap.Int("page", b.Page))
			continue
		}

		fields, usage, err := e.extractPage(ctx, img, b.Group)
		result.Usage.Add(usage)
		if err != nil {
			result.PagesFailed++
			log.Warn("extract: page failed", zap.Int("page", b.Page), zap.String("group", b.Group), zap.Error(err))
			continue
		}
		merged = model.Merge(merged, fields)
	}

	corrected, applied := ApplyCorrections(merged, e.corrections)
	final, dropped := e.schema.Sanitize(corrected, e.schema.Keys(), true)
	if len(dropped) > 0 {
		log.Warn("extract: dropped values outside field enums", zap.Strings("fields", dropped))
	}

	result.Data = final
	result.FieldsExtracted = model.CountFields(final)
	result.Corrections = applied
	result.Success = result.PagesAttempted > result.PagesFailed

	log.Info("extract: pass complete",
		zap.Int("pages", result.PagesAttempted),
		zap.Int("pages_failed", result.PagesFailed),
		zap.Int("fields", result.FieldsExtracted),
		zap.Int("corrections", len(applied)),
	)
	return result, nil
}

func (e *Extractor) extractPage(ctx context.Context, img raster.Image, group string) (model.FieldMap, model.TokenUsage, error) {
	defs, ok := e.schema.Group(group)
	if !ok {
		return nil, model.TokenUsage{}, eris.Errorf("extract: unknown field group %q", group)
	}

	resp, err := e.backend.ExtractFields(ctx, backend.Request{
		Image:  img,
		System: SystemPrompt,
		Prompt: BuildPagePrompt(img.Page, defs),
	})
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	raw, err := ParseObject(resp.Text)
	if err != nil {
		return nil, resp.Usage, err
	}

	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	clean, dropped := e.schema.Sanitize(coerce(raw, defs), keys, false)
	if len(dropped) > 0 {
		zap.L().Debug("extract: dropped mistyped fields",
			zap.Int("page", img.Page), zap.Strings("fields", dropped))
	}
	return clean, resp.Usage, nil
}
