package main

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, document string) (*model.Run, error) {
	args := m.Called(ctx, document)
	if r := args.Get(0); r != nil {
		return r.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	return m.Called(ctx, runID, status, result).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if r := args.Get(0); r != nil {
		return r.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if r := args.Get(0); r != nil {
		return r.([]model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) RecordAttempt(ctx context.Context, runID string, attempt model.ExtractionAttempt) error {
	return m.Called(ctx, runID, attempt).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// staticListings is a listing source backed by a map keyed on the raw address.
type staticListings map[string]listing.Record

func (s staticListings) LookupByAddress(_ context.Context, address string) (*listing.Record, error) {
	rec, ok := s[strings.TrimSpace(address)]
	if !ok {
		return nil, listing.ErrNotFound
	}
	return &rec, nil
}
