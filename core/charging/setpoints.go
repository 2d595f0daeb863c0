package charging

import (
	"math"

	"github.com/kilianp07/battsim/core/model"
)

// setpoints are the effective targets for the current tick.
type setpoints struct {
	ccCurrent      float64
	ccToCV         float64
	cvVoltage      float64
	cvToTrickle    float64
	trickleCurrent float64
	trickleVoltage float64
	maxSoC         float64
}

func (c *Controller) staticSetpoints() setpoints {
	p := c.battery.Params()
	cv := c.cfg.CVVoltage
	if cv <= 0 {
		cv = p.MaxVoltage
	}
	tv := c.cfg.TrickleVoltage
	if tv <= 0 {
		tv = p.MaxVoltage
	}
	return setpoints{
		ccCurrent:      p.MaxChargingCurrent,
		ccToCV:         c.cfg.CCToCVVoltage,
		cvVoltage:      cv,
		cvToTrickle:    c.cfg.CVToTrickleCurrent,
		trickleCurrent: c.cfg.TrickleCurrent,
		trickleVoltage: tv,
		maxSoC:         math.Inf(1),
	}
}

// currentSetpoints is used when a session opens: the last valid adjustment
// while optimisation is on, the static configuration otherwise.
func (c *Controller) currentSetpoints() setpoints {
	if c.rulOptimized && c.lastGood != nil {
		return c.fromAdjustment(*c.lastGood)
	}
	return c.staticSetpoints()
}

// adaptiveSetpoints consults the adaptive controller. A fallback answer
// keeps the last valid adjustment, or the static configuration if there is
// none yet.
func (c *Controller) adaptiveSetpoints(s model.BatteryState, rul float64, history []model.Sample) setpoints {
	if c.adaptive == nil {
		return c.staticSetpoints()
	}
	adj := c.adaptive.Adjust(s, history, rul)
	c.adjusted = &adj
	if !adj.Fallback {
		good := adj
		c.lastGood = &good
	}
	if c.lastGood == nil {
		return c.staticSetpoints()
	}
	return c.fromAdjustment(*c.lastGood)
}

func (c *Controller) fromAdjustment(adj model.ChargingParameters) setpoints {
	sp := c.staticSetpoints()
	sp.ccCurrent = math.Min(adj.CCCurrent, sp.ccCurrent)
	sp.cvVoltage = adj.CVVoltage
	sp.ccToCV = math.Min(sp.ccToCV, 0.98*adj.CVVoltage)
	sp.cvToTrickle = adj.TerminationCurrent
	sp.trickleCurrent = adj.TrickleCurrent
	sp.trickleVoltage = adj.TrickleVoltage
	if adj.MaxSoC < 100 {
		sp.maxSoC = adj.MaxSoC
	}
	return sp
}
