package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/types"
)

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, none)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "none":
			p.Database = Noop{}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// Noop is a Database that stores nothing and returns empty history. It backs
// deployments that only want the live values.
type Noop struct{}

var _ Database = Noop{}

func (Noop) UpsertRate(ctx context.Context, accountNumber string, rate types.RatePoint) error {
	return nil
}

func (Noop) GetRateHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.RatePoint, error) {
	return nil, nil
}

func (Noop) GetLatestRateTime(ctx context.Context, accountNumber string) (time.Time, error) {
	return time.Time{}, nil
}

func (Noop) InsertDeviceAction(ctx context.Context, accountNumber string, action types.DeviceAction) error {
	return nil
}

func (Noop) GetDeviceActionHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.DeviceAction, error) {
	return nil, nil
}

func (Noop) Close() error { return nil }
