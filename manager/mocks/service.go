package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/scorer"
)

var _ manager.Service = (*MockService)(nil)

// MockService is a mock implementation of the manager.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) ListContests(ctx context.Context) ([]manager.HostState, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.([]manager.HostState), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockService) GetContest(ctx context.Context, id string) (manager.HostState, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(manager.HostState), args.Error(1)
}

func (m *MockService) Scoreboard(ctx context.Context, id string, live bool) ([]scorer.Entry, error) {
	args := m.Called(ctx, id, live)
	if e := args.Get(0); e != nil {
		return e.([]scorer.Entry), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockService) Submit(ctx context.Context, id string, req manager.SubmitRequest) (manager.SubmitResult, error) {
	args := m.Called(ctx, id, req)

	return args.Get(0).(manager.SubmitResult), args.Error(1)
}

func (m *MockService) Reload(ctx context.Context, id string) (manager.HostState, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(manager.HostState), args.Error(1)
}

func (m *MockService) EndContest(ctx context.Context, id string, complete bool) error {
	args := m.Called(ctx, id, complete)

	return args.Error(0)
}

func (m *MockService) Discover(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockService) JudgeStats(ctx context.Context) grader.Stats {
	args := m.Called(ctx)

	return args.Get(0).(grader.Stats)
}

func (m *MockService) Start(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockService) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
