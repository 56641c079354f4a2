// Package raster turns PDF pages into image files for vision extraction.
package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Image is one rasterized page on disk.
type Image struct {
	Page      int
	Path      string
	MediaType string
}

// Bytes reads the image file.
func (i Image) Bytes() ([]byte, error) {
	b, err := os.ReadFile(i.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read page %d image", i.Page)
	}
	return b, nil
}

// PageSet owns the temporary directory holding a document's rendered pages.
// Close must be called on every exit path.
type PageSet struct {
	Dir       string
	Images    []Image
	PageCount int
}

// Close removes the temporary directory. It is safe to call more than once.
func (p *PageSet) Close() error {
	if p == nil || p.Dir == "" {
		return nil
	}
	dir := p.Dir
	p.Dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return eris.Wrapf(err, "raster: remove temp dir %s", dir)
	}
	return nil
}

// CloseQuietly calls Close and logs, rather than returns, any failure.
func (p *PageSet) CloseQuietly() {
	if err := p.Close(); err != nil {
		zap.L().Warn("raster: temp cleanup failed", zap.Error(err))
	}
}

// Rasterizer renders selected PDF pages to images.
type Rasterizer interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context, docPath string) (int, error)
	// Rasterize renders the given 1-indexed pages, ordered by page number.
	Rasterize(ctx context.Context, docPath string, pages []int) (*PageSet, error)
}

// RasterizationError reports a document that cannot be rendered at all.
type RasterizationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *RasterizationError) Error() string {
	msg := fmt.Sprintf("raster: %s: %s", filepath.Base(e.Path), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RasterizationError) Unwrap() error {
	return e.Err
}

func newRasterizationError(path, reason string, err error) *RasterizationError {
	return &RasterizationError{Path: path, Reason: reason, Err: err}
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
