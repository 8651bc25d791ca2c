package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/wwppc/contestd/manager"
)

var _ manager.Notifier = (*MockNotifier)(nil)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ev manager.Event) error {
	args := m.Called(ctx, ev)

	return args.Error(0)
}
