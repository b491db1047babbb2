package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/types"
)

// ConfiguredControl sets up the device control backend based on flags.
func ConfiguredControl() Control {
	provider := lflag.String("device-control", "dryrun", "Device control backend to use (available: dryrun)")

	var c struct{ Control }

	lflag.Do(func() {
		switch *provider {
		case "dryrun":
			c.Control = DryRun{}
		default:
			panic(fmt.Sprintf("unknown device control backend: %s", *provider))
		}
	})

	return &c
}

// DryRun is a Control that accepts every request without talking to the
// retailer. It backs local development and environments without control
// credentials.
type DryRun struct{}

var _ Control = DryRun{}

// ChangeDeviceSuspension implements Control.
func (DryRun) ChangeDeviceSuspension(ctx context.Context, deviceID string, action types.SuspensionAction) (bool, error) {
	log.Ctx(ctx).InfoContext(ctx, "dry-run suspension change",
		slog.String("deviceID", deviceID),
		slog.String("action", string(action)),
	)
	return true, nil
}
