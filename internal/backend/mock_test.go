package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/netsheet-cli/internal/raster"
	"github.com/sells-group/netsheet-cli/pkg/anthropic"
	"github.com/sells-group/netsheet-cli/pkg/gemini"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockGemini struct {
	mock.Mock
}

func (m *mockGemini) GenerateContent(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Response), args.Error(1)
}

func writePage(t *testing.T, page int) raster.Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG-page"), 0o644))
	return raster.Image{Page: page, Path: path, MediaType: "image/png"}
}
