package model

// Mode is the operating mode of the pack. Exactly one mode is active at a
// time, so charging and discharging can never both be set.
type Mode string

const (
	ModeIdle        Mode = "idle"
	ModeCharging    Mode = "charging"
	ModeDischarging Mode = "discharging"
)

// BatteryState is a snapshot of the electrical and thermal state of the pack.
type BatteryState struct {
	Capacity           float64 `json:"capacity"`            // Ah
	NominalVoltage     float64 `json:"nominal_voltage"`     // V
	MaxVoltage         float64 `json:"max_voltage"`         // V
	MinVoltage         float64 `json:"min_voltage"`         // V
	SoC                float64 `json:"soc"`                 // percent in [0,100]
	Voltage            float64 `json:"voltage"`             // terminal voltage, V
	Current            float64 `json:"current"`             // A, positive while charging
	Temperature        float64 `json:"temperature"`         // °C
	AmbientTemperature float64 `json:"ambient_temperature"` // °C
	R0                 float64 `json:"internal_resistance"` // ohmic resistance, Ω
	R1                 float64 `json:"polarization_resistance"`
	C1                 float64 `json:"polarization_capacitance"`
	Vp                 float64 `json:"polarization_voltage"` // voltage across the RC branch, V
	Mode               Mode    `json:"mode"`
}

// IsCharging reports whether the pack is in charging mode.
func (s BatteryState) IsCharging() bool { return s.Mode == ModeCharging }

// IsDischarging reports whether the pack is in discharging mode.
func (s BatteryState) IsDischarging() bool { return s.Mode == ModeDischarging }
