// Package device exposes controllable account devices as switches with
// optimistic state. A toggle is reflected immediately, held while the
// retailer catches up, and reconciled against the next snapshot refresh.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"
	"github.com/octobridge/octobridge/pkg/types"
)

const (
	// defaultConfirmDelay is how long after a successful control call we
	// wait before requesting a snapshot refresh, giving the retailer time
	// to apply the change.
	defaultConfirmDelay = 3 * time.Second

	// defaultPendingTimeout bounds how long the optimistic state is
	// reported before falling back to the snapshot truth.
	defaultPendingTimeout = 5 * time.Minute
)

// Control issues suspension changes to the retailer.
type Control interface {
	// ChangeDeviceSuspension requests the device be suspended or
	// unsuspended. It returns false when the retailer rejected the
	// request without a transport error.
	ChangeDeviceSuspension(ctx context.Context, deviceID string, action types.SuspensionAction) (bool, error)
}

// Switch is the smart-control toggle for one device. A device is "on" when
// it is not suspended.
type Switch struct {
	provider      snapshot.Provider
	control       Control
	db            storage.Database
	accountNumber string
	deviceID      string

	mu           sync.Mutex
	isSwitching  bool
	pendingState bool
	pendingUntil time.Time

	// overridable for tests
	now            func() time.Time
	confirmDelay   time.Duration
	pendingTimeout time.Duration
}

// NewSwitch returns a Switch for the given device on the given account.
func NewSwitch(provider snapshot.Provider, control Control, db storage.Database, accountNumber, deviceID string) *Switch {
	return &Switch{
		provider:       provider,
		control:        control,
		db:             db,
		accountNumber:  accountNumber,
		deviceID:       deviceID,
		now:            time.Now,
		confirmDelay:   defaultConfirmDelay,
		pendingTimeout: defaultPendingTimeout,
	}
}

// UniqueID returns the stable identifier for this switch.
func (s *Switch) UniqueID() string {
	return fmt.Sprintf("octopus_%s_%s_smart_control", s.accountNumber, s.deviceID)
}

// Name returns the display name for this switch.
func (s *Switch) Name() string {
	if d, ok := s.device(); ok && d.Name != "" {
		return fmt.Sprintf("Octopus %s %s Smart Control", s.accountNumber, d.Name)
	}
	return fmt.Sprintf("Octopus %s Smart Control", s.accountNumber)
}

// DeviceID returns the retailer device ID this switch controls.
func (s *Switch) DeviceID() string {
	return s.deviceID
}

// AccountNumber returns the account the device belongs to.
func (s *Switch) AccountNumber() string {
	return s.accountNumber
}

func (s *Switch) device() (types.Device, bool) {
	data := s.provider.Data()
	snap, ok := data[s.accountNumber]
	if !ok {
		return types.Device{}, false
	}
	for _, d := range snap.Devices {
		if d.ID == s.deviceID {
			return d, true
		}
	}
	return types.Device{}, false
}

// IsOn reports the state of the switch. While a toggle is pending and within
// its deadline the optimistic target state wins; otherwise the snapshot is
// the source of truth.
func (s *Switch) IsOn() bool {
	s.mu.Lock()
	if s.isSwitching {
		if s.now().Before(s.pendingUntil) {
			state := s.pendingState
			s.mu.Unlock()
			return state
		}
		// optimistic window expired without confirmation
		s.isSwitching = false
	}
	s.mu.Unlock()

	d, ok := s.device()
	if !ok {
		return false
	}
	return !d.Status.IsSuspended
}

// Pending reports whether an unconfirmed toggle is still within its
// deadline.
func (s *Switch) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSwitching && s.now().Before(s.pendingUntil)
}

// Available reports whether the switch can be shown: the last refresh
// succeeded and the device is still on the account.
func (s *Switch) Available() bool {
	if !s.provider.LastUpdateSuccess() {
		return false
	}
	_, ok := s.device()
	return ok
}

// TurnOn unsuspends the device.
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.toggle(ctx, true)
}

// TurnOff suspends the device.
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.toggle(ctx, false)
}

func (s *Switch) toggle(ctx context.Context, on bool) error {
	action := types.ActionSuspend
	if on {
		action = types.ActionUnsuspend
	}

	// optimistic: report the target state before the retailer confirms
	s.mu.Lock()
	s.isSwitching = true
	s.pendingState = on
	s.pendingUntil = s.now().Add(s.pendingTimeout)
	s.mu.Unlock()

	ok, err := s.control.ChangeDeviceSuspension(ctx, s.deviceID, action)

	rec := types.DeviceAction{
		AccountNumber: s.accountNumber,
		DeviceID:      s.deviceID,
		Action:        action,
		Timestamp:     s.now(),
		Success:       err == nil && ok,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if dbErr := s.db.InsertDeviceAction(ctx, s.accountNumber, rec); dbErr != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to record device action",
			slog.String("deviceID", s.deviceID),
			slog.Any("error", dbErr),
		)
	}

	if err != nil || !ok {
		// revert immediately, the retailer never accepted the change
		s.mu.Lock()
		s.isSwitching = false
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to change suspension for device %s: %w", s.deviceID, err)
		}
		return fmt.Errorf("retailer rejected suspension change for device %s", s.deviceID)
	}

	log.Ctx(ctx).InfoContext(ctx, "device suspension changed",
		slog.String("deviceID", s.deviceID),
		slog.String("action", string(action)),
	)

	// give the retailer a moment to apply before we re-read
	bgctx := context.WithoutCancel(ctx)
	time.AfterFunc(s.confirmDelay, func() {
		s.provider.RequestRefresh(bgctx)
	})
	return nil
}

// HandleUpdate reconciles the switch against a fresh snapshot. A snapshot
// matching the pending target confirms the toggle; one that does not match
// is ignored until the pending window expires.
func (s *Switch) HandleUpdate() {
	d, ok := s.device()
	if !ok {
		return
	}
	on := !d.Status.IsSuspended

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSwitching && on == s.pendingState {
		s.isSwitching = false
	}
}

// Attributes returns the extra state attributes exposed alongside the
// switch state.
func (s *Switch) Attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"device_id": s.deviceID,
	}
	d, ok := s.device()
	if !ok {
		return attrs
	}
	attrs["name"] = d.Name
	attrs["provider"] = d.Provider
	attrs["vehicle_model"] = d.VehicleVariant.Model
	attrs["vehicle_battery_size_in_kwh"] = d.VehicleVariant.BatterySize
	attrs["current_state"] = d.Status.CurrentState
	attrs["is_suspended"] = d.Status.IsSuspended
	return attrs
}
