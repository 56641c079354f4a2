package extract

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/netsheet-cli/internal/backend"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/raster"
)

// fakeRasterizer writes one placeholder PNG per requested page into dir.
type fakeRasterizer struct {
	dir       string
	pageCount int
	countErr  error
	rasterErr error
	skipPages map[int]bool
	lastSet   *raster.PageSet
	lastPages []int
}

func (f *fakeRasterizer) PageCount(context.Context, string) (int, error) {
	return f.pageCount, f.countErr
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, pages []int) (*raster.PageSet, error) {
	f.lastPages = pages
	if f.rasterErr != nil {
		return nil, f.rasterErr
	}
	dir, err := os.MkdirTemp(f.dir, "pages-*")
	if err != nil {
		return nil, err
	}
	set := &raster.PageSet{Dir: dir, PageCount: f.pageCount}
	for _, p := range pages {
		if f.skipPages[p] {
			continue
		}
		path := filepath.Join(dir, "page-"+strconv.Itoa(p)+".png")
		if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		set.Images = append(set.Images, raster.Image{Page: p, Path: path, MediaType: "image/png"})
	}
	f.lastSet = set
	return set, nil
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ExtractFields(ctx context.Context, req backend.Request) (*backend.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Response), args.Error(1)
}

func (m *mockBackend) Model() string { return "test-model" }

// onPage matches a backend request for a specific page.
func onPage(page int) any {
	return mock.MatchedBy(func(req backend.Request) bool {
		return req.Image.Page == page && strings.Contains(req.Prompt, "page "+strconv.Itoa(page)+" ")
	})
}

func reply(text string) *backend.Response {
	return &backend.Response{Text: text, Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 10}, Model: "test-model"}
}
