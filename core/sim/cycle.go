package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// ErrCycleIncomplete is returned by RunCycle when a phase does not finish
// within the tick budget.
var ErrCycleIncomplete = errors.New("sim: cycle incomplete")

// CycleResult summarises one full charge and discharge.
type CycleResult struct {
	SessionID      string        `json:"session_id"`
	ChargeTicks    int           `json:"charge_ticks"`
	DischargeTicks int           `json:"discharge_ticks"`
	ChargeTime     time.Duration `json:"charge_time"`
	MaxTemperature float64       `json:"max_temperature"`
	Health         float64       `json:"health"`
	CycleCount     float64       `json:"cycle_count"`
	EstimatedRUL   float64       `json:"estimated_rul"`
	RULSource      string        `json:"rul_source"`
}

// RunCycle charges until the charger closes the session, then discharges to
// the cutoff, advancing dt simulated seconds per tick. Each phase gets at
// most maxTicks ticks.
func (c *SimulationContext) RunCycle(dt float64, maxTicks int) (CycleResult, error) {
	var r CycleResult
	id, ok := c.StartCharging()
	if !ok {
		return r, fmt.Errorf("%w: charging did not start", ErrCycleIncomplete)
	}
	r.SessionID = id
	begin := c.now

	var tel model.Telemetry
	for r.ChargeTicks < maxTicks {
		tel = c.Tick(dt)
		r.ChargeTicks++
		if tel.Battery.Temperature > r.MaxTemperature {
			r.MaxTemperature = tel.Battery.Temperature
		}
		if !tel.IsCharging {
			break
		}
	}
	if tel.IsCharging {
		c.Stop()
		return r, fmt.Errorf("%w: charge still running after %d ticks", ErrCycleIncomplete, maxTicks)
	}
	r.ChargeTime = c.now.Sub(begin)

	if c.StartDischarging() {
		for r.DischargeTicks < maxTicks {
			tel = c.Tick(dt)
			r.DischargeTicks++
			if !tel.IsDischarging {
				break
			}
		}
		if tel.IsDischarging {
			c.Stop()
			return r, fmt.Errorf("%w: discharge still running after %d ticks", ErrCycleIncomplete, maxTicks)
		}
	}

	hs := c.tracker.State()
	r.Health = hs.Health
	r.CycleCount = hs.CycleCount
	r.EstimatedRUL = tel.EstimatedRUL
	r.RULSource = tel.RULSource
	return r, nil
}
