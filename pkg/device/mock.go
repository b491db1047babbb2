package device

import (
	"context"

	"github.com/octobridge/octobridge/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockControl is a mock implementation of Control.
type MockControl struct {
	mock.Mock
}

func (m *MockControl) ChangeDeviceSuspension(ctx context.Context, deviceID string, action types.SuspensionAction) (bool, error) {
	args := m.Called(ctx, deviceID, action)
	return args.Bool(0), args.Error(1)
}
