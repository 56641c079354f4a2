// Package report renders a computed net sheet into CSV, XLSX, HTML and PDF
// artifacts and hands them to an uploader.
package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
)

// Sheet is a net sheet plus the property and extraction context shown with it.
type Sheet struct {
	RunID       string
	Address     string
	Outcome     model.Outcome
	NeedsReview bool
	Output      netsheet.Output
	GeneratedAt time.Time
}

// Artifacts lists the files written for one sheet. PDF is empty when no
// renderer is configured.
type Artifacts struct {
	CSV  string `json:"csv"`
	XLSX string `json:"xlsx"`
	HTML string `json:"html"`
	PDF  string `json:"pdf,omitempty"`
}

// Paths returns every non-empty artifact path.
func (a Artifacts) Paths() []string {
	var out []string
	for _, p := range []string{a.CSV, a.XLSX, a.HTML, a.PDF} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Generate writes all artifacts for s into dir. A nil renderer skips the PDF.
// A PDF failure is logged and does not fail the other artifacts.
func Generate(ctx context.Context, dir string, s Sheet, renderer Renderer) (Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, eris.Wrap(err, "report: create output dir")
	}
	base := filepath.Join(dir, baseName(s))

	var a Artifacts
	a.CSV = base + ".csv"
	if err := writeFile(a.CSV, func(f *os.File) error { return WriteCSV(f, s) }); err != nil {
		return Artifacts{}, err
	}

	a.XLSX = base + ".xlsx"
	if err := WriteXLSX(a.XLSX, s); err != nil {
		return Artifacts{}, err
	}

	a.HTML = base + ".html"
	if err := writeFile(a.HTML, func(f *os.File) error { return RenderHTML(f, s) }); err != nil {
		return Artifacts{}, err
	}

	if renderer == nil {
		return a, nil
	}
	html, err := os.ReadFile(a.HTML)
	if err != nil {
		return Artifacts{}, eris.Wrap(err, "report: read html")
	}
	pdf, err := renderer.RenderPDF(ctx, html)
	if err != nil {
		zap.L().Warn("report: pdf render failed", zap.String("run_id", s.RunID), zap.Error(err))
		return a, nil
	}
	a.PDF = base + ".pdf"
	if err := os.WriteFile(a.PDF, pdf, 0o644); err != nil {
		return Artifacts{}, eris.Wrap(err, "report: write pdf")
	}
	return a, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", filepath.Base(path))
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "report: close %s", filepath.Base(path))
	}
	return nil
}

// baseName builds "netsheet-<address slug>-<run id prefix>".
func baseName(s Sheet) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s.Address)
	slug = strings.Trim(collapseDashes(slug), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	if slug == "" {
		slug = "property"
	}
	id := s.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return "netsheet-" + slug
	}
	return "netsheet-" + slug + "-" + id
}

func collapseDashes(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}
