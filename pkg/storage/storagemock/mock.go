// Package storagemock provides a mock implementation of the storage.Database
// interface for testing.
package storagemock

import (
	"context"
	"time"

	"github.com/octobridge/octobridge/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockDatabase is a mock implementation of storage.Database.
type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) UpsertRate(ctx context.Context, accountNumber string, rate types.RatePoint) error {
	args := m.Called(ctx, accountNumber, rate)
	return args.Error(0)
}

func (m *MockDatabase) GetRateHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.RatePoint, error) {
	args := m.Called(ctx, accountNumber, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.RatePoint), args.Error(1)
}

func (m *MockDatabase) GetLatestRateTime(ctx context.Context, accountNumber string) (time.Time, error) {
	args := m.Called(ctx, accountNumber)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDatabase) InsertDeviceAction(ctx context.Context, accountNumber string, action types.DeviceAction) error {
	args := m.Called(ctx, accountNumber, action)
	return args.Error(0)
}

func (m *MockDatabase) GetDeviceActionHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.DeviceAction, error) {
	args := m.Called(ctx, accountNumber, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DeviceAction), args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
