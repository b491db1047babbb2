package sensor

import (
	"fmt"
	"strings"
	"time"

	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/types"
)

// BalanceSensor reports one ledger balance in EUR.
type BalanceSensor struct {
	base
	label string
	key   string
	get   func(types.AccountSnapshot) float64
}

var _ Sensor = (*BalanceSensor)(nil)

// NewBalanceSensor creates a balance sensor with a dedicated snapshot field,
// e.g. NewBalanceSensor(acc, p, "Electricity", "electricity", ...).
func NewBalanceSensor(accountNumber string, provider snapshot.Provider, label, key string, get func(types.AccountSnapshot) float64) *BalanceSensor {
	return &BalanceSensor{
		base:  base{provider: provider, accountNumber: accountNumber},
		label: label,
		key:   key,
		get:   get,
	}
}

// NewLedgerBalanceSensor creates a balance sensor for a raw ledger type from
// the account's other ledgers, e.g. "HEAT_PUMP_LEDGER".
func NewLedgerBalanceSensor(accountNumber string, provider snapshot.Provider, ledgerType string) *BalanceSensor {
	return &BalanceSensor{
		base:  base{provider: provider, accountNumber: accountNumber},
		label: ledgerDisplayName(ledgerType),
		key:   strings.ToLower(ledgerType),
		get: func(s types.AccountSnapshot) float64 {
			return s.OtherLedgers[ledgerType]
		},
	}
}

func (b *BalanceSensor) UniqueID() string {
	return fmt.Sprintf("octopus_%s_%s_balance", b.accountNumber, b.key)
}

func (b *BalanceSensor) Name() string {
	return fmt.Sprintf("Octopus %s %s Balance", b.accountNumber, b.label)
}

func (b *BalanceSensor) Unit() string        { return unitEUR }
func (b *BalanceSensor) DeviceClass() string { return DeviceClassMonetary }
func (b *BalanceSensor) StateClass() string  { return StateClassTotal }

func (b *BalanceSensor) Value(now time.Time) (float64, bool) {
	snap, ok := b.snapshot()
	if !ok {
		return 0, false
	}
	return b.get(snap), true
}

func (b *BalanceSensor) Attributes(now time.Time) map[string]any {
	return map[string]any{
		"account_number": b.accountNumber,
	}
}
