package sensor

import (
	"fmt"
	"time"

	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/tariff"
	"github.com/octobridge/octobridge/pkg/types"
)

// PriceSensor reports the account's current unit price for one fuel. It is
// the one price implementation for both electricity and gas; the fuelSpec
// picks which product list and identifiers to read.
type PriceSensor struct {
	base
	spec fuelSpec
}

var _ Sensor = (*PriceSensor)(nil)

// NewPriceSensor creates a price sensor for the given fuel.
func NewPriceSensor(accountNumber string, provider snapshot.Provider, fuel types.Fuel) *PriceSensor {
	spec := electricitySpec
	if fuel == types.FuelGas {
		spec = gasSpec
	}
	return &PriceSensor{
		base: base{provider: provider, accountNumber: accountNumber},
		spec: spec,
	}
}

func (p *PriceSensor) UniqueID() string {
	return fmt.Sprintf("octopus_%s_%s_price", p.accountNumber, p.spec.fuel)
}

func (p *PriceSensor) Name() string {
	return fmt.Sprintf("Octopus %s %s Price", p.accountNumber, p.spec.label)
}

func (p *PriceSensor) Unit() string        { return unitEURPerKWH }
func (p *PriceSensor) DeviceClass() string { return DeviceClassMonetary }
func (p *PriceSensor) StateClass() string  { return StateClassTotal }

// Value resolves the currently valid product and its rate at now.
func (p *PriceSensor) Value(now time.Time) (float64, bool) {
	snap, ok := p.snapshot()
	if !ok {
		return 0, false
	}
	product, ok := tariff.ActiveProduct(p.spec.products(snap), now)
	if !ok {
		return 0, false
	}
	return tariff.ActiveRate(product, now)
}

// Attributes describes the active product, the meter, and for time-of-use
// products the full timeslot schedule plus the slot active at now. When no
// valid product exists every product field reads "Unknown".
func (p *PriceSensor) Attributes(now time.Time) map[string]any {
	attrs := map[string]any{
		"code":           unknown,
		"name":           unknown,
		"description":    unknown,
		"type":           unknown,
		"valid_from":     unknown,
		"valid_to":       unknown,
		"meter_id":       unknown,
		"meter_number":   unknown,
		"meter_type":     unknown,
		"account_number": p.accountNumber,
	}
	if p.spec.fuel == types.FuelGas {
		attrs["fuel_type"] = "gas"
	}

	snap, ok := p.snapshot()
	if !ok {
		return attrs
	}

	if meter := p.spec.meter(snap); meter != nil {
		attrs["meter_id"] = meter.ID
		attrs["meter_number"] = meter.Number
		attrs["meter_type"] = meter.MeterType
	}

	product, ok := tariff.ActiveProduct(p.spec.products(snap), now)
	if !ok {
		return attrs
	}

	attrs["code"] = product.Code
	attrs["name"] = product.Name
	attrs["description"] = product.Description
	attrs["type"] = string(product.Type)
	attrs["valid_from"] = product.ValidFrom
	attrs["active_tariff_type"] = string(product.Type)
	if product.ValidTo != "" {
		attrs["valid_to"] = product.ValidTo
	}

	if product.Type == types.ProductTypeTimeOfUse {
		timeslots := make([]map[string]any, 0, len(product.Timeslots))
		for _, ts := range product.Timeslots {
			rules := make([]map[string]string, 0, len(ts.ActivationRules))
			for _, rule := range ts.ActivationRules {
				rules = append(rules, map[string]string{
					"from_time": rule.FromTime,
					"to_time":   rule.ToTime,
				})
			}
			timeslots = append(timeslots, map[string]any{
				"name":             ts.Name,
				"rate":             ts.Rate,
				"activation_rules": rules,
			})
		}
		attrs["timeslots"] = timeslots

		if slot, ok := tariff.ActiveTimeslot(product, now); ok {
			attrs["active_timeslot"] = slot.Name
			attrs["active_timeslot_rate"] = slot.EURPerKWH
			attrs["active_timeslot_from"] = slot.From
			attrs["active_timeslot_to"] = slot.To
		}
	}

	attrs[p.spec.attrPrefix+"malo_number"] = orUnknown(p.spec.maloNumber(snap))
	attrs[p.spec.attrPrefix+"melo_number"] = orUnknown(p.spec.meloNumber(snap))
	attrs[string(p.spec.fuel)+"_balance"] = fmt.Sprintf("%.2f €", p.spec.balance(snap))

	return attrs
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
