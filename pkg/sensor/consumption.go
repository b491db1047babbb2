package sensor

import (
	"fmt"
	"time"

	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/types"
)

// gasConversionFactor converts gas kWh to cubic meters.
const gasConversionFactor = 10.0

// ConsumptionSensor reports the yearly consumption for one fuel, with the
// latest meter reading details as attributes.
type ConsumptionSensor struct {
	base
	spec fuelSpec
}

var _ Sensor = (*ConsumptionSensor)(nil)

// NewConsumptionSensor creates a consumption sensor for the given fuel.
func NewConsumptionSensor(accountNumber string, provider snapshot.Provider, fuel types.Fuel) *ConsumptionSensor {
	spec := electricitySpec
	if fuel == types.FuelGas {
		spec = gasSpec
	}
	return &ConsumptionSensor{
		base: base{provider: provider, accountNumber: accountNumber},
		spec: spec,
	}
}

func (c *ConsumptionSensor) UniqueID() string {
	return fmt.Sprintf("octopus_%s_%s_consumption", c.accountNumber, c.spec.fuel)
}

func (c *ConsumptionSensor) Name() string {
	return fmt.Sprintf("Octopus %s %s Consumption", c.accountNumber, c.spec.label)
}

func (c *ConsumptionSensor) Unit() string        { return unitKWH }
func (c *ConsumptionSensor) DeviceClass() string { return DeviceClassEnergy }
func (c *ConsumptionSensor) StateClass() string  { return StateClassMeasurement }

func (c *ConsumptionSensor) Value(now time.Time) (float64, bool) {
	snap, ok := c.snapshot()
	if !ok {
		return 0, false
	}
	return c.spec.yearlyConsumption(snap), true
}

func (c *ConsumptionSensor) Attributes(now time.Time) map[string]any {
	snap, ok := c.snapshot()
	if !ok {
		return map[string]any{}
	}

	readings := c.spec.readings(snap)
	attrs := map[string]any{
		"account_number": c.accountNumber,
		"readings_count": len(readings),
	}
	if c.spec.fuel == types.FuelGas {
		attrs["period_consumption_kwh"] = c.spec.consumption(snap)
		attrs["yearly_consumption_kwh"] = c.spec.yearlyConsumption(snap)
		attrs["period_consumption_m3"] = c.spec.consumption(snap) / gasConversionFactor
		attrs["yearly_consumption_m3"] = c.spec.yearlyConsumption(snap) / gasConversionFactor
		attrs["conversion_factor"] = gasConversionFactor
	} else {
		attrs["period_consumption"] = c.spec.consumption(snap)
		attrs["yearly_consumption"] = c.spec.yearlyConsumption(snap)
	}

	if len(readings) > 0 {
		latest := readings[0]
		attrs["last_read_at"] = latest.ReadAt
		attrs["meter_id"] = latest.MeterID
		attrs["register_obis_code"] = latest.RegisterObisCode
		attrs["type_of_read"] = latest.TypeOfRead
		attrs["origin"] = latest.Origin
	}

	return attrs
}
