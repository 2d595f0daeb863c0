package adaptive

import (
	"math"

	"github.com/kilianp07/battsim/core/model"
)

// Config sets the nominal parameters the factors are applied to. Rates are
// C-rates relative to the pack capacity. Zero voltages default to the pack
// max voltage.
type Config struct {
	BaseCCRate          float64 `json:"base_cc_rate"`
	BaseTrickleRate     float64 `json:"base_trickle_rate"`
	BaseTerminationRate float64 `json:"base_termination_rate"`
	BaseCVVoltage       float64 `json:"base_cv_voltage"`
	BaseTrickleVoltage  float64 `json:"base_trickle_voltage"`
	MinHistory          int     `json:"min_history"`
}

// DefaultConfig returns 0.5 C constant current, 0.05 C trickle and
// termination, and a five sample history gate.
func DefaultConfig() Config {
	return Config{
		BaseCCRate:          0.5,
		BaseTrickleRate:     0.05,
		BaseTerminationRate: 0.05,
		MinHistory:          5,
	}
}

// Safety bounds applied to every output.
const (
	minCCRate          = 0.05
	maxCCRate          = 1.0
	minTrickleRate     = 0.01
	maxTrickleRate     = 0.1
	minTerminationRate = 0.01
	maxTerminationRate = 0.2
	minCVFraction      = 0.9
)

// Controller computes adjusted charging parameters. It holds only its
// configuration and is safe to share.
type Controller struct {
	cfg Config
}

// New creates a Controller.
func New(cfg Config) *Controller {
	if cfg.MinHistory < 0 {
		cfg.MinHistory = 0
	}
	return &Controller{cfg: cfg}
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// Adjust maps the state, the recent history and an RUL percentage to
// charging parameters. Invalid input or a history shorter than MinHistory
// yields Defaults with Fallback set.
func (c *Controller) Adjust(s model.BatteryState, history []model.Sample, rul float64) model.ChargingParameters {
	if !valid(s, rul) || len(history) < c.cfg.MinHistory {
		return c.Defaults(s, rul)
	}
	rul = clamp(rul, 0, 100)

	f := model.AdjustmentFactors{
		RUL:                clamp(rul/100, 0.2, 1),
		Temperature:        temperatureFactor(s.Temperature),
		SoC:                socFactor(s.SoC),
		InternalResistance: resistanceFactor(s.R0),
		Voltage:            voltageFactor(s.Voltage, s.MaxVoltage),
	}
	f.Combined = f.RUL * f.Temperature * f.SoC * f.InternalResistance * f.Voltage

	strategy := SelectStrategy(rul, s.Temperature)
	m := multipliersFor(strategy)
	b := c.base(s)

	p := model.ChargingParameters{
		CCCurrent:          b.cc * f.Combined * m.cc,
		CVVoltage:          b.cv * (0.95 + 0.05*f.RUL) * m.cv,
		TrickleCurrent:     b.trickle * f.Combined * m.trickle,
		TerminationCurrent: b.termination * (0.9 + 0.1*f.RUL) * m.termination,
		MaxSoC:             m.maxSoC,
		Strategy:           strategy,
		RULPercentage:      rul,
		Factors:            f,
		Advice:             advice(s, rul),
	}
	c.bound(&p, s, b)
	return p
}

// Defaults returns the nominal parameters with identity factors and the
// standard strategy.
func (c *Controller) Defaults(s model.BatteryState, rul float64) model.ChargingParameters {
	b := c.base(s)
	p := model.ChargingParameters{
		CCCurrent:          b.cc,
		CVVoltage:          b.cv,
		TrickleCurrent:     b.trickle,
		TerminationCurrent: b.termination,
		MaxSoC:             100,
		Strategy:           model.StrategyStandard,
		RULPercentage:      clamp(rul, 0, 100),
		Factors: model.AdjustmentFactors{
			RUL: 1, Temperature: 1, SoC: 1, InternalResistance: 1, Voltage: 1, Combined: 1,
		},
		Fallback: true,
	}
	c.bound(&p, s, b)
	return p
}

type base struct {
	capacity    float64
	cc          float64
	cv          float64
	trickle     float64
	trickleV    float64
	termination float64
}

func (c *Controller) base(s model.BatteryState) base {
	capacity := s.Capacity
	if !(capacity > 0) || math.IsInf(capacity, 0) {
		capacity = 0
	}
	maxV := finiteOr(s.MaxVoltage, 0)
	cv := c.cfg.BaseCVVoltage
	if cv <= 0 || cv > maxV {
		cv = maxV
	}
	tv := c.cfg.BaseTrickleVoltage
	if tv <= 0 || tv > maxV {
		tv = maxV
	}
	return base{
		capacity:    capacity,
		cc:          c.cfg.BaseCCRate * capacity,
		cv:          cv,
		trickle:     c.cfg.BaseTrickleRate * capacity,
		trickleV:    tv,
		termination: c.cfg.BaseTerminationRate * capacity,
	}
}

func (c *Controller) bound(p *model.ChargingParameters, s model.BatteryState, b base) {
	p.CCCurrent = clamp(p.CCCurrent, minCCRate*b.capacity, maxCCRate*b.capacity)
	p.TrickleCurrent = clamp(p.TrickleCurrent, minTrickleRate*b.capacity, maxTrickleRate*b.capacity)
	p.TerminationCurrent = clamp(p.TerminationCurrent, minTerminationRate*b.capacity, maxTerminationRate*b.capacity)

	maxV := finiteOr(s.MaxVoltage, 0)
	lowV := math.Max(finiteOr(s.MinVoltage, 0), minCVFraction*maxV)
	if lowV > maxV {
		lowV = maxV
	}
	p.CVVoltage = clamp(p.CVVoltage, lowV, maxV)
	p.TrickleVoltage = math.Min(b.trickleV, p.CVVoltage)
}

func valid(s model.BatteryState, rul float64) bool {
	for _, v := range []float64{rul, s.Temperature, s.SoC, s.Voltage, s.R0, s.Capacity, s.MaxVoltage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.Capacity > 0 && s.MaxVoltage > 0
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return def
	}
	return v
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
