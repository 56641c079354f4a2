package raster

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/config"
)

// Runner executes an external command. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Pdftoppm renders pages with the poppler pdftoppm CLI.
type Pdftoppm struct {
	binPath   string
	dpi       int
	tempDir   string
	runner    Runner
	countFunc func(path string) (int, error)
}

// NewPdftoppm creates a Pdftoppm rasterizer. Empty settings fall back to
// "pdftoppm" at 150 DPI in the OS temp dir.
func NewPdftoppm(cfg config.RasterConfig) *Pdftoppm {
	p := &Pdftoppm{
		binPath:   cfg.PdftoppmPath,
		dpi:       cfg.DPI,
		tempDir:   cfg.TempDir,
		runner:    execRunner{},
		countFunc: countPDFPages,
	}
	if p.binPath == "" {
		p.binPath = "pdftoppm"
	}
	if p.dpi <= 0 {
		p.dpi = 150
	}
	return p
}

// PageCount opens the PDF and returns its page count.
func (p *Pdftoppm) PageCount(_ context.Context, docPath string) (int, error) {
	n, err := p.countFunc(docPath)
	if err != nil {
		return 0, newRasterizationError(docPath, "unreadable document", err)
	}
	return n, nil
}

func countPDFPages(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close() //nolint:errcheck
		}
		return 0, err
	}
	defer f.Close() //nolint:errcheck
	return r.NumPage(), nil
}

// Rasterize renders each requested page to PNG inside a fresh temp dir.
// A page that fails to render is skipped; if none render the whole call
// fails and the temp dir is removed.
func (p *Pdftoppm) Rasterize(ctx context.Context, docPath string, pages []int) (*PageSet, error) {
	if len(pages) == 0 {
		return nil, newRasterizationError(docPath, "no pages requested", nil)
	}

	count, err := p.PageCount(ctx, docPath)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, newRasterizationError(docPath, "document has zero pages", nil)
	}

	wanted := slices.Clone(pages)
	slices.Sort(wanted)
	wanted = slices.Compact(wanted)
	if wanted[0] < 1 || wanted[len(wanted)-1] > count {
		return nil, newRasterizationError(docPath,
			"requested page "+strconv.Itoa(wanted[len(wanted)-1])+" exceeds page count "+strconv.Itoa(count), nil)
	}

	dir, err := os.MkdirTemp(p.tempDir, "netsheet-pages-*")
	if err != nil {
		return nil, eris.Wrap(err, "raster: create temp dir")
	}
	set := &PageSet{Dir: dir, PageCount: count}

	log := zap.L().With(zap.String("document", filepath.Base(docPath)))
	for _, page := range wanted {
		if ctx.Err() != nil {
			set.CloseQuietly()
			return nil, eris.Wrap(ctx.Err(), "raster: cancelled")
		}
		img, err := p.renderPage(ctx, docPath, dir, page)
		if err != nil {
			log.Warn("raster: page render failed", zap.Int("page", page), zap.Error(err))
			continue
		}
		set.Images = append(set.Images, img)
	}

	if len(set.Images) == 0 {
		set.CloseQuietly()
		return nil, newRasterizationError(docPath, "no pages rendered", nil)
	}
	return set, nil
}

func (p *Pdftoppm) renderPage(ctx context.Context, docPath, dir string, page int) (Image, error) {
	prefix := filepath.Join(dir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <dir/page-N>
	_, stderr, err := p.runner.Run(ctx, p.binPath,
		"-f", n, "-l", n, "-r", strconv.Itoa(p.dpi), "-png", "-singlefile", docPath, prefix)
	if err != nil {
		return Image{}, eris.Wrapf(err, "raster: pdftoppm page %d: %s", page, string(stderr))
	}
	path := prefix + ".png"
	if _, err := os.Stat(path); err != nil {
		return Image{}, eris.Wrapf(err, "raster: pdftoppm produced no image for page %d", page)
	}
	return Image{Page: page, Path: path, MediaType: mediaTypeFor(path)}, nil
}
