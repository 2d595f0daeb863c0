// Package health tracks cycle aging of the pack and derives condition
// reports from recent history.
package health

import (
	"math"
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// Config holds the aging parameters.
type Config struct {
	DegradationPerCycle       float64 `json:"degradation_per_cycle"`       // % per full cycle
	TemperatureAgingFactor    float64 `json:"temperature_aging_factor"`    // % per °C above threshold
	TemperatureAgingThreshold float64 `json:"temperature_aging_threshold"` // °C
	MinSoCDelta               float64 `json:"min_soc_delta"`               // percentage points
	InitialCycleCount         float64 `json:"initial_cycle_count"`
}

// DefaultConfig returns the reference aging parameters.
func DefaultConfig() Config {
	return Config{
		DegradationPerCycle:       0.02,
		TemperatureAgingFactor:    0.01,
		TemperatureAgingThreshold: 45,
		MinSoCDelta:               5,
	}
}

// Tracker accumulates full-equivalent cycles from closed charging sessions
// and keeps a health estimate that only decreases until Recalibrate is
// called.
type Tracker struct {
	cfg     Config
	state   model.HealthState
	maxTemp float64
	offset  float64
}

// NewTracker creates a tracker with the configured initial cycle count.
func NewTracker(cfg Config, now time.Time) *Tracker {
	t := &Tracker{cfg: cfg, maxTemp: math.Inf(-1)}
	t.state = model.HealthState{
		CycleCount:    math.Max(0, cfg.InitialCycleCount),
		Health:        100,
		LastEvaluated: now,
	}
	t.state.Health = t.compute()
	return t
}

// State returns a copy of the health state.
func (t *Tracker) State() model.HealthState { return t.state }

// SimpleRUL is the RUL fallback used when no predictor is available. It is
// expressed in percent and equals the current health.
func (t *Tracker) SimpleRUL() float64 { return t.state.Health }

// MaxObservedTemperature returns the highest temperature passed to Observe,
// or -Inf if none was.
func (t *Tracker) MaxObservedTemperature() float64 { return t.maxTemp }

// Observe records a temperature sample. Health itself only changes when a
// session closes.
func (t *Tracker) Observe(temp float64) {
	if temp > t.maxTemp {
		t.maxTemp = temp
	}
}

// OnSessionClosed accounts the SoC gained over s. It reports whether the
// session was long enough to count towards the cycle total.
func (t *Tracker) OnSessionClosed(s model.ChargingSession) bool {
	if !s.Closed() || s.FinalSoC == nil {
		return false
	}
	if s.MaxTemperature > t.maxTemp {
		t.maxTemp = s.MaxTemperature
	}
	t.state.LastEvaluated = *s.EndTime
	delta := s.SoCGain()
	counted := delta > t.cfg.MinSoCDelta
	if counted {
		t.state.CycleCount += delta / 100
	}
	if h := t.compute(); h < t.state.Health {
		t.state.Health = h
	}
	return counted
}

// Recalibrate replaces the health estimate and cycle count, for example after
// a capacity test. Later sessions degrade from the new reference.
func (t *Tracker) Recalibrate(health, cycles float64, at time.Time) {
	health = clamp(health, 0, 100)
	t.state.CycleCount = math.Max(0, cycles)
	t.offset = 0
	t.offset = health - t.raw()
	t.state.Health = health
	t.state.LastEvaluated = at
}

func (t *Tracker) compute() float64 { return clamp(t.raw(), 0, 100) }

func (t *Tracker) raw() float64 {
	cycleDeg := t.cfg.DegradationPerCycle * t.state.CycleCount
	var tempDeg float64
	if !math.IsInf(t.maxTemp, -1) {
		tempDeg = t.cfg.TemperatureAgingFactor * math.Max(0, t.maxTemp-t.cfg.TemperatureAgingThreshold)
	}
	return 100 + t.offset - cycleDeg - tempDeg
}

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
