// Package recorder persists resolved unit rates on every snapshot refresh so
// rate history survives restarts.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"
	"github.com/octobridge/octobridge/pkg/tariff"
	"github.com/octobridge/octobridge/pkg/types"
)

// minRecordInterval throttles writes so the extra refreshes device toggles
// trigger don't duplicate points already stored this cycle.
const minRecordInterval = time.Minute

// Recorder writes one RatePoint per account and fuel after each refresh.
type Recorder struct {
	provider snapshot.Provider
	db       storage.Database

	// overridable for tests
	now func() time.Time
}

// New returns a Recorder subscribed to the provider.
func New(provider snapshot.Provider, db storage.Database) *Recorder {
	r := &Recorder{
		provider: provider,
		db:       db,
		now:      time.Now,
	}
	provider.Subscribe(r.record)
	return r
}

func (r *Recorder) record() {
	if !r.provider.LastUpdateSuccess() {
		return
	}
	ctx := context.Background()
	now := r.now()
	for accountNumber, snap := range r.provider.Data() {
		ctx := log.WithAccount(ctx, accountNumber)
		latest, err := r.db.GetLatestRateTime(ctx, accountNumber)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to get latest rate time", slog.Any("error", err))
			continue
		}
		if !latest.IsZero() && now.Sub(latest) < minRecordInterval {
			continue
		}
		r.recordFuel(ctx, accountNumber, types.FuelElectricity, snap.Products, now)
		r.recordFuel(ctx, accountNumber, types.FuelGas, snap.GasProducts, now)
	}
}

func (r *Recorder) recordFuel(ctx context.Context, accountNumber string, fuel types.Fuel, products []types.Product, now time.Time) {
	p, ok := tariff.ActiveProduct(products, now)
	if !ok {
		return
	}
	rate, ok := tariff.ActiveRate(p, now)
	if !ok {
		return
	}

	point := types.RatePoint{
		AccountNumber: accountNumber,
		Fuel:          fuel,
		TS:            now,
		EURPerKWH:     rate,
		ProductCode:   p.Code,
		ProductType:   string(p.Type),
	}
	if slot, ok := tariff.ActiveTimeslot(p, now); ok {
		point.Timeslot = slot.Name
	}

	if err := r.db.UpsertRate(ctx, accountNumber, point); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to record rate",
			slog.String("fuel", string(fuel)),
			slog.Any("error", err),
		)
	}
}
