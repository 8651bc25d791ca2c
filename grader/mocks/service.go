package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
)

var _ grader.Service = (*MockService)(nil)

// MockService is a mock implementation of the grader.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) QueueUngraded(ctx context.Context, sub contest.Submission, cb grader.Callback) {
	m.Called(ctx, sub, cb)
}

func (m *MockService) CancelUngraded(ctx context.Context, team, problemID string) bool {
	args := m.Called(ctx, team, problemID)

	return args.Bool(0)
}

func (m *MockService) GetWork(ctx context.Context, node string) (*grader.Work, error) {
	args := m.Called(ctx, node)
	if w := args.Get(0); w != nil {
		return w.(*grader.Work), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockService) ReturnWork(ctx context.Context, node string) error {
	args := m.Called(ctx, node)

	return args.Error(0)
}

func (m *MockService) FinishWork(ctx context.Context, node string, report grader.Report) error {
	args := m.Called(ctx, node, report)

	return args.Error(0)
}

func (m *MockService) Sweep(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockService) Stats(ctx context.Context) grader.Stats {
	args := m.Called(ctx)

	return args.Get(0).(grader.Stats)
}

func (m *MockService) Start(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockService) Close(ctx context.Context) {
	m.Called(ctx)
}
