package intake

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/pipeline"
)

// --- MailSource Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListUnread(ctx context.Context) ([]MessageRef, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]MessageRef), args.Error(1)
}

func (m *mockSource) Fetch(ctx context.Context, ref MessageRef) (*Message, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

func (m *mockSource) MarkSeen(ctx context.Context, ref MessageRef) error {
	return m.Called(ctx, ref).Error(0)
}

// --- Notifying MailSource Mock ---

type mockNotifyingSource struct {
	mockSource
}

func (m *mockNotifyingSource) Notify(ctx context.Context, msg *Message, reports []*pipeline.Report) error {
	return m.Called(ctx, msg, reports).Error(0)
}

// --- Processor Mock ---

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, doc model.Document) (*pipeline.Report, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Report), args.Error(1)
}
