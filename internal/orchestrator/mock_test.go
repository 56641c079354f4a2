package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/model"
)

// script returns a RunFunc that replays results in order and then repeats
// the last one.
type script struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	res *model.PageResult
	err error
}

func (s *script) run(_ context.Context, _ string) (*model.PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].res, s.steps[i].err
}

func fields(n int) *model.PageResult {
	data := model.FieldMap{}
	for i := 1; i <= n; i++ {
		data[fmt.Sprintf("field_%02d", i)] = fmt.Sprintf("value %d", i)
	}
	return &model.PageResult{
		Data:            data,
		FieldsExtracted: n,
		TotalFields:     extract.TotalFields,
		PagesAttempted:  1,
		Success:         true,
		Model:           "claude-haiku-4-5-20251001",
		Usage:           model.TokenUsage{InputTokens: 1_000_000},
	}
}

func ok(n int) step { return step{res: fields(n)} }

func fail(msg string) step { return step{err: fmt.Errorf("%s", msg)} }

// sleeps records requested delays without waiting.
type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.d = append(s.d, d)
	s.mu.Unlock()
	return ctx.Err()
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, docPath string, bindings []extract.PageBinding) (*model.PageResult, error) {
	args := m.Called(ctx, docPath, bindings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PageResult), args.Error(1)
}
