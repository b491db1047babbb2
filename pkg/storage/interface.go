package storage

import (
	"context"
	"time"

	"github.com/octobridge/octobridge/pkg/types"
)

// Database defines the interface for persisting observed rates and device
// control actions per account.
type Database interface {
	// UpsertRate adds or updates one resolved rate observation.
	UpsertRate(ctx context.Context, accountNumber string, rate types.RatePoint) error

	// GetRateHistory returns rate observations within [start, end).
	GetRateHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.RatePoint, error)

	// GetLatestRateTime returns the timestamp of the most recent stored rate,
	// or the zero time when none exist.
	GetLatestRateTime(ctx context.Context, accountNumber string) (time.Time, error)

	// InsertDeviceAction records one control request and its outcome.
	InsertDeviceAction(ctx context.Context, accountNumber string, action types.DeviceAction) error

	// GetDeviceActionHistory returns control actions within [start, end).
	GetDeviceActionHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.DeviceAction, error)

	// Lifecycle
	Close() error
}
