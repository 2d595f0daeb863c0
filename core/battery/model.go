package battery

import (
	"math"

	"github.com/kilianp07/battsim/core/model"
)

// MinTimeStep is the floor applied to the RC relaxation time step.
const MinTimeStep = 1e-3

// minResistanceScale keeps R0 and R1 strictly positive at very low
// temperatures.
const minResistanceScale = 0.1

// Model owns the battery state and advances it one tick at a time.
type Model struct {
	params Params
	state  model.BatteryState
	r0Base float64
	r1Base float64
}

// New creates a model at rest at the ambient temperature with the given SoC.
func New(p Params, soc float64) *Model {
	m := &Model{params: p}
	m.Reset(soc)
	return m
}

// Params returns the current configuration.
func (m *Model) Params() Params { return m.params }

// State returns a snapshot of the current state.
func (m *Model) State() model.BatteryState { return m.state }

// OCV returns the open-circuit voltage at the current SoC.
func (m *Model) OCV() float64 { return OCV(m.params, m.state.SoC) }

// Reset restores the initial electrical and thermal state with the given SoC.
func (m *Model) Reset(soc float64) {
	p := m.params
	m.r0Base = p.InternalResistance
	m.r1Base = p.PolarizationResistance
	soc = clamp(soc, 0, 100)
	m.state = model.BatteryState{
		Capacity:           p.Capacity,
		NominalVoltage:     p.NominalVoltage,
		MaxVoltage:         p.MaxVoltage,
		MinVoltage:         p.MinVoltage,
		SoC:                soc,
		Voltage:            clamp(OCV(p, soc), p.MinVoltage, p.MaxVoltage),
		Temperature:        p.AmbientTemperature,
		AmbientTemperature: p.AmbientTemperature,
		R0:                 p.InternalResistance,
		R1:                 p.PolarizationResistance,
		C1:                 p.PolarizationCapacity,
		Mode:               model.ModeIdle,
	}
}

// SetMode switches the operating mode without advancing time. Leaving a
// charging or discharging mode zeroes the current.
func (m *Model) SetMode(mode model.Mode) {
	m.state.Mode = mode
	if mode == model.ModeIdle {
		m.state.Current = 0
	}
}

// UpdateParams overwrites the fields present in u. Setting the internal
// resistance also replaces the 25 °C base used for thermal rescaling.
func (m *Model) UpdateParams(u ParamUpdate) {
	m.params = u.Apply(m.params)
	s := &m.state
	s.Capacity = m.params.Capacity
	s.NominalVoltage = m.params.NominalVoltage
	s.MaxVoltage = m.params.MaxVoltage
	s.MinVoltage = m.params.MinVoltage
	s.AmbientTemperature = m.params.AmbientTemperature
	if u.InternalResistance != nil {
		m.r0Base = *u.InternalResistance
		s.R0 = m.r0Base * m.resistanceScale()
	}
}

// Tick advances the state by elapsed seconds with the given current command
// (A, positive to charge) under mode and returns the resulting snapshot.
func (m *Model) Tick(elapsed, command float64, mode model.Mode) model.BatteryState {
	p := m.params
	s := &m.state
	if !(elapsed > 0) {
		elapsed = 0
	}
	dt := math.Max(elapsed, MinTimeStep)

	s.Mode = mode
	current := m.legalCurrent(command, mode)

	switch mode {
	case model.ModeCharging:
		if p.Capacity != 0 {
			delta := current * elapsed / 3600 / p.Capacity * 100
			s.SoC += delta * p.ChargingEfficiency
		}
	case model.ModeDischarging:
		if p.Capacity != 0 {
			delta := current * elapsed / 3600 / p.Capacity * 100
			if p.DischargingEfficiency != 0 {
				delta /= p.DischargingEfficiency
			}
			s.SoC += delta
		}
	default:
		s.SoC -= p.SelfDischargeRate * elapsed / 3600
	}
	s.SoC = clamp(s.SoC, 0, 100)

	ocv := OCV(p, s.SoC)

	tau := s.R1 * s.C1
	if tau > 0 {
		decay := math.Exp(-dt / tau)
		s.Vp = s.Vp*decay + current*s.R1*(1-decay)
	} else {
		s.Vp = current * s.R1
	}

	s.Voltage = clamp(ocv+current*s.R0+s.Vp, p.MinVoltage, p.MaxVoltage)

	s.Temperature = m.thermalStep(current, elapsed)
	scale := m.resistanceScale()
	s.R0 = m.r0Base * scale
	s.R1 = m.r1Base * scale

	s.Current = current
	return *s
}

// thermalStep integrates C·dT/dt = I²·(R0 + 0.5·R1) − (T − Ta)/Rth over
// elapsed seconds. With dissipation the exact first-order solution is used,
// so the temperature relaxes toward Ta + P·Rth for any step length.
func (m *Model) thermalStep(current, elapsed float64) float64 {
	p := m.params
	s := &m.state
	if !(p.ThermalCapacity > 0) {
		return s.Temperature
	}
	power := current * current * (s.R0 + 0.5*s.R1)
	if !(p.ThermalResistance > 0) {
		return s.Temperature + power*elapsed/p.ThermalCapacity
	}
	eq := s.AmbientTemperature + power*p.ThermalResistance
	decay := math.Exp(-elapsed / (p.ThermalResistance * p.ThermalCapacity))
	return eq + (s.Temperature-eq)*decay
}

func (m *Model) resistanceScale() float64 {
	scale := 1 + m.params.TemperatureCoefficient*(m.state.Temperature-25)
	if !(scale > minResistanceScale) {
		return minResistanceScale
	}
	return scale
}

func (m *Model) legalCurrent(command float64, mode model.Mode) float64 {
	switch mode {
	case model.ModeCharging:
		return clamp(command, 0, math.Max(0, m.params.MaxChargingCurrent))
	case model.ModeDischarging:
		return clamp(command, -math.Max(0, m.params.MaxDischargingCurrent), 0)
	default:
		return 0
	}
}
