// Package sensor exposes read-only views over the latest account snapshot:
// unit prices, ledger balances, and consumption totals. Sensors hold no
// state of their own; every read re-evaluates against the provider's current
// data and degrades to "not ok" instead of erroring when data is missing.
package sensor

import (
	"sort"
	"strings"
	"time"

	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/types"
)

const (
	DeviceClassMonetary = "monetary"
	DeviceClassEnergy   = "energy"

	StateClassTotal       = "total"
	StateClassMeasurement = "measurement"

	unitEURPerKWH = "€/kWh"
	unitEUR       = "€"
	unitKWH       = "kWh"

	unknown = "Unknown"
)

// Sensor is one read-only numeric value derived from an account snapshot.
type Sensor interface {
	// UniqueID is the stable identifier derived from the account number.
	UniqueID() string
	Name() string
	Unit() string
	DeviceClass() string
	StateClass() string

	// Value returns the sensor state at now, or false when it cannot be
	// resolved from the current snapshot.
	Value(now time.Time) (float64, bool)

	// Attributes returns the extra state attributes at now.
	Attributes(now time.Time) map[string]any

	// Available reports whether the last refresh succeeded and the account
	// is present in the snapshot.
	Available() bool
}

// fuelSpec selects the per-fuel fields out of an AccountSnapshot so the
// price and consumption sensors can be written once instead of per fuel.
type fuelSpec struct {
	fuel  types.Fuel
	label string
	// attrPrefix prefixes fuel-specific attribute keys ("gas_" for gas).
	attrPrefix string

	products          func(types.AccountSnapshot) []types.Product
	meter             func(types.AccountSnapshot) *types.Meter
	maloNumber        func(types.AccountSnapshot) string
	meloNumber        func(types.AccountSnapshot) string
	balance           func(types.AccountSnapshot) float64
	consumption       func(types.AccountSnapshot) float64
	yearlyConsumption func(types.AccountSnapshot) float64
	readings          func(types.AccountSnapshot) []types.MeterReading
}

var electricitySpec = fuelSpec{
	fuel:              types.FuelElectricity,
	label:             "Electricity",
	products:          func(s types.AccountSnapshot) []types.Product { return s.Products },
	meter:             func(s types.AccountSnapshot) *types.Meter { return s.Meter },
	maloNumber:        func(s types.AccountSnapshot) string { return s.MaloNumber },
	meloNumber:        func(s types.AccountSnapshot) string { return s.MeloNumber },
	balance:           func(s types.AccountSnapshot) float64 { return s.ElectricityBalance },
	consumption:       func(s types.AccountSnapshot) float64 { return s.ElectricityConsumption },
	yearlyConsumption: func(s types.AccountSnapshot) float64 { return s.ElectricityYearlyConsumption },
	readings:          func(s types.AccountSnapshot) []types.MeterReading { return s.ElectricityMeterReadings },
}

var gasSpec = fuelSpec{
	fuel:              types.FuelGas,
	label:             "Gas",
	attrPrefix:        "gas_",
	products:          func(s types.AccountSnapshot) []types.Product { return s.GasProducts },
	meter:             func(s types.AccountSnapshot) *types.Meter { return s.GasMeter },
	maloNumber:        func(s types.AccountSnapshot) string { return s.GasMaloNumber },
	meloNumber:        func(s types.AccountSnapshot) string { return s.GasMeloNumber },
	balance:           func(s types.AccountSnapshot) float64 { return s.GasBalance },
	consumption:       func(s types.AccountSnapshot) float64 { return s.GasConsumption },
	yearlyConsumption: func(s types.AccountSnapshot) float64 { return s.GasYearlyConsumption },
	readings:          func(s types.AccountSnapshot) []types.MeterReading { return s.GasMeterReadings },
}

// base carries the provider plumbing shared by all sensors.
type base struct {
	provider      snapshot.Provider
	accountNumber string
}

func (b base) snapshot() (types.AccountSnapshot, bool) {
	data := b.provider.Data()
	if data == nil {
		return types.AccountSnapshot{}, false
	}
	s, ok := data[b.accountNumber]
	return s, ok
}

func (b base) Available() bool {
	if !b.provider.LastUpdateSuccess() {
		return false
	}
	data := b.provider.Data()
	if data == nil {
		return false
	}
	_, ok := data[b.accountNumber]
	return ok
}

// ForAccount builds every sensor the account's snapshot warrants: price
// sensors when the fuel has products, balance sensors for non-zero ledgers,
// consumption sensors when a meter or readings exist, and one generic
// balance sensor per non-zero other ledger.
func ForAccount(accountNumber string, snap types.AccountSnapshot, provider snapshot.Provider) []Sensor {
	var sensors []Sensor

	if len(snap.Products) > 0 {
		sensors = append(sensors, NewPriceSensor(accountNumber, provider, types.FuelElectricity))
	}
	if len(snap.GasProducts) > 0 {
		sensors = append(sensors, NewPriceSensor(accountNumber, provider, types.FuelGas))
	}
	if snap.ElectricityBalance != 0 {
		sensors = append(sensors, NewBalanceSensor(accountNumber, provider, "Electricity", "electricity",
			func(s types.AccountSnapshot) float64 { return s.ElectricityBalance }))
	}
	if snap.Meter != nil || len(snap.ElectricityMeterReadings) > 0 {
		sensors = append(sensors, NewConsumptionSensor(accountNumber, provider, types.FuelElectricity))
	}
	if snap.GasBalance != 0 {
		sensors = append(sensors, NewBalanceSensor(accountNumber, provider, "Gas", "gas",
			func(s types.AccountSnapshot) float64 { return s.GasBalance }))
	}
	if snap.GasMeter != nil || len(snap.GasMeterReadings) > 0 {
		sensors = append(sensors, NewConsumptionSensor(accountNumber, provider, types.FuelGas))
	}
	if snap.HeatBalance != 0 {
		sensors = append(sensors, NewBalanceSensor(accountNumber, provider, "Heat", "heat",
			func(s types.AccountSnapshot) float64 { return s.HeatBalance }))
	}

	ledgers := make([]string, 0, len(snap.OtherLedgers))
	for ledger, balance := range snap.OtherLedgers {
		if balance != 0 {
			ledgers = append(ledgers, ledger)
		}
	}
	sort.Strings(ledgers)
	for _, ledger := range ledgers {
		sensors = append(sensors, NewLedgerBalanceSensor(accountNumber, provider, ledger))
	}

	return sensors
}

// ledgerDisplayName turns a raw ledger type like "HEAT_PUMP_LEDGER" into
// "Heat Pump".
func ledgerDisplayName(ledgerType string) string {
	name := strings.ReplaceAll(ledgerType, "_LEDGER", "")
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
