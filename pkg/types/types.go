package types

import "time"

// ProductType distinguishes how a product's unit rate is determined.
type ProductType string

const (
	ProductTypeSimple    ProductType = "Simple"
	ProductTypeTimeOfUse ProductType = "TimeOfUse"
)

// Product represents a tariff the retailer has (or had) on the account.
// ValidFrom/ValidTo are kept as the raw ISO-8601 strings the upstream API
// returns; validity filtering compares them lexicographically, so they must
// never be reformatted or parsed into instants.
type Product struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        ProductType `json:"type"`
	ValidFrom   string      `json:"validFrom"`
	ValidTo     string      `json:"validTo,omitempty"`

	// GrossRate is the unit rate in cents, as a decimal string.
	GrossRate string `json:"grossRate"`

	// Timeslots is only populated for ProductTypeTimeOfUse.
	Timeslots []Timeslot `json:"timeslots,omitempty"`
}

// Timeslot is a named rate window of a time-of-use product.
type Timeslot struct {
	Name string `json:"name"`
	// Rate is the slot's unit rate in cents, as a decimal string.
	Rate            string           `json:"rate"`
	ActivationRules []ActivationRule `json:"activationRules"`
}

// ActivationRule is a daily recurring window in which a timeslot applies.
// FromTime and ToTime are HH:MM:SS strings. A ToTime of 00:00:00 means
// "until midnight"; if FromTime is also 00:00:00 the rule covers the whole
// day.
type ActivationRule struct {
	FromTime string `json:"fromTime"`
	ToTime   string `json:"toTime"`
}

// Meter identifies a physical meter on the account.
type Meter struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	MeterType string `json:"meterType"`
}

// MeterReading is a single submitted or measured register reading.
type MeterReading struct {
	ReadAt           string `json:"readAt"`
	MeterID          string `json:"meterId"`
	RegisterObisCode string `json:"registerObisCode"`
	TypeOfRead       string `json:"typeOfRead"`
	Origin           string `json:"origin"`
}

// VehicleVariant describes the vehicle model backing a smart-control device.
type VehicleVariant struct {
	Model       string  `json:"model"`
	BatterySize float64 `json:"batterySize"`
}

// DeviceStatus is the retailer-reported control state of a device.
type DeviceStatus struct {
	IsSuspended  bool   `json:"isSuspended"`
	CurrentState string `json:"currentState"`
}

// Device is a controllable device (typically an EV) attached to the account.
type Device struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Provider       string         `json:"provider"`
	VehicleVariant VehicleVariant `json:"vehicleVariant"`
	Status         DeviceStatus   `json:"status"`
}

// AccountSnapshot is the normalized view of one retailer account as of the
// last coordinator refresh. Snapshots are replaced wholesale on every
// refresh; consumers only ever read the latest one.
type AccountSnapshot struct {
	Products    []Product `json:"products"`
	GasProducts []Product `json:"gasProducts,omitempty"`

	Meter    *Meter `json:"meter,omitempty"`
	GasMeter *Meter `json:"gasMeter,omitempty"`

	MaloNumber    string `json:"maloNumber,omitempty"`
	MeloNumber    string `json:"meloNumber,omitempty"`
	GasMaloNumber string `json:"gasMaloNumber,omitempty"`
	GasMeloNumber string `json:"gasMeloNumber,omitempty"`

	// Ledger balances in EUR.
	ElectricityBalance float64 `json:"electricityBalance"`
	GasBalance         float64 `json:"gasBalance"`
	HeatBalance        float64 `json:"heatBalance"`
	// OtherLedgers maps raw ledger type names (e.g. "DEPOSIT_LEDGER") to
	// balances for ledgers without a dedicated field.
	OtherLedgers map[string]float64 `json:"otherLedgers,omitempty"`

	// Consumption totals in kWh.
	ElectricityConsumption       float64 `json:"electricityConsumption"`
	ElectricityYearlyConsumption float64 `json:"electricityYearlyConsumption"`
	GasConsumption               float64 `json:"gasConsumption"`
	GasYearlyConsumption         float64 `json:"gasYearlyConsumption"`

	ElectricityMeterReadings []MeterReading `json:"electricityMeterReadings,omitempty"`
	GasMeterReadings         []MeterReading `json:"gasMeterReadings,omitempty"`

	Devices []Device `json:"devices,omitempty"`
}

// Fuel names the utility type a rate or sensor belongs to.
type Fuel string

const (
	FuelElectricity Fuel = "electricity"
	FuelGas         Fuel = "gas"
)

// RatePoint is one resolved unit rate observation for an account, as
// persisted by the recorder.
type RatePoint struct {
	AccountNumber string    `json:"accountNumber"`
	Fuel          Fuel      `json:"fuel"`
	TS            time.Time `json:"ts"`
	EURPerKWH     float64   `json:"eurPerKWH"`
	ProductCode   string    `json:"productCode"`
	ProductType   string    `json:"productType"`
	Timeslot      string    `json:"timeslot,omitempty"`
}

// SuspensionAction is the control verb sent to the retailer for a device.
type SuspensionAction string

const (
	ActionSuspend   SuspensionAction = "SUSPEND"
	ActionUnsuspend SuspensionAction = "UNSUSPEND"
)

// DeviceAction records one control request issued for a device.
type DeviceAction struct {
	AccountNumber string           `json:"accountNumber"`
	DeviceID      string           `json:"deviceID"`
	Action        SuspensionAction `json:"action"`
	Timestamp     time.Time        `json:"timestamp"`
	Success       bool             `json:"success"`
	Error         string           `json:"error,omitempty"`
}
