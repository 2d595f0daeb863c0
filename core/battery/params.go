package battery

// Params configures the pack. Field tags match the configuration file keys.
type Params struct {
	Capacity               float64 `json:"capacity"`                 // Ah
	NominalVoltage         float64 `json:"nominal_voltage"`          // V
	MaxVoltage             float64 `json:"max_voltage"`              // V
	MinVoltage             float64 `json:"min_voltage"`              // V
	OCVKneeVoltage         float64 `json:"ocv_knee_voltage"`         // OCV at 90% SoC, V
	MaxChargingCurrent     float64 `json:"max_charging_current"`     // A
	MaxDischargingCurrent  float64 `json:"max_discharging_current"`  // A, magnitude
	InternalResistance     float64 `json:"internal_resistance"`      // R0 at 25 °C, Ω
	PolarizationResistance float64 `json:"polarization_resistance"`  // R1 at 25 °C, Ω
	PolarizationCapacity   float64 `json:"polarization_capacitance"` // C1, F
	ThermalCapacity        float64 `json:"thermal_capacity"`         // J/K
	ThermalResistance      float64 `json:"thermal_resistance"`       // K/W
	AmbientTemperature     float64 `json:"ambient_temperature"`      // °C
	TemperatureCoefficient float64 `json:"temperature_coefficient"`  // 1/°C
	ChargingEfficiency     float64 `json:"charging_efficiency"`
	DischargingEfficiency  float64 `json:"discharging_efficiency"`
	SelfDischargeRate      float64 `json:"self_discharge_rate"` // %/h
}

// DefaultParams returns the 400 V / 80 Ah reference pack.
func DefaultParams() Params {
	return Params{
		Capacity:               80,
		NominalVoltage:         375,
		MaxVoltage:             400,
		MinVoltage:             290,
		OCVKneeVoltage:         395,
		MaxChargingCurrent:     80,
		MaxDischargingCurrent:  100,
		InternalResistance:     0.1,
		PolarizationResistance: 0.05,
		PolarizationCapacity:   1000,
		ThermalCapacity:        1500,
		ThermalResistance:      0.05,
		AmbientTemperature:     25,
		TemperatureCoefficient: 0.005,
		ChargingEfficiency:     0.95,
		DischargingEfficiency:  0.95,
		SelfDischargeRate:      0.01,
	}
}

// ParamUpdate is a partial configuration update. Nil fields are left
// untouched. Values are not validated; the model clamps during ticks.
type ParamUpdate struct {
	Capacity              *float64 `json:"capacity,omitempty"`
	NominalVoltage        *float64 `json:"nominal_voltage,omitempty"`
	MaxVoltage            *float64 `json:"max_voltage,omitempty"`
	MinVoltage            *float64 `json:"min_voltage,omitempty"`
	MaxChargingCurrent    *float64 `json:"max_charging_current,omitempty"`
	MaxDischargingCurrent *float64 `json:"max_discharging_current,omitempty"`
	InternalResistance    *float64 `json:"internal_resistance,omitempty"`
	AmbientTemperature    *float64 `json:"ambient_temperature,omitempty"`
}

// Empty reports whether the update carries no field.
func (u ParamUpdate) Empty() bool {
	return u.Capacity == nil && u.NominalVoltage == nil && u.MaxVoltage == nil &&
		u.MinVoltage == nil && u.MaxChargingCurrent == nil &&
		u.MaxDischargingCurrent == nil && u.InternalResistance == nil &&
		u.AmbientTemperature == nil
}

// Apply returns p with the present fields of u overwritten.
func (u ParamUpdate) Apply(p Params) Params {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Capacity, u.Capacity)
	set(&p.NominalVoltage, u.NominalVoltage)
	set(&p.MaxVoltage, u.MaxVoltage)
	set(&p.MinVoltage, u.MinVoltage)
	set(&p.MaxChargingCurrent, u.MaxChargingCurrent)
	set(&p.MaxDischargingCurrent, u.MaxDischargingCurrent)
	set(&p.InternalResistance, u.InternalResistance)
	set(&p.AmbientTemperature, u.AmbientTemperature)
	return p
}

// Float is a helper for building a ParamUpdate literal.
func Float(v float64) *float64 { return &v }
