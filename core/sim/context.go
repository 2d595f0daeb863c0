package sim

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/battsim/core/adaptive"
	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/charging"
	"github.com/kilianp07/battsim/core/health"
	"github.com/kilianp07/battsim/core/history"
	"github.com/kilianp07/battsim/core/logger"
	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/prediction"
)

// RUL sources reported in telemetry.
const (
	RULFromPredictor = "predictor"
	RULFromHealth    = "health"
)

// Option customises a SimulationContext.
type Option func(*SimulationContext)

// WithPredictor injects an RUL predictor. Without one the health estimate
// is used.
func WithPredictor(p prediction.Predictor) Option {
	return func(c *SimulationContext) { c.predictor = p }
}

// WithRecorder receives charging session snapshots.
func WithRecorder(r charging.SessionRecorder) Option {
	return func(c *SimulationContext) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *SimulationContext) { c.log = logger.OrNop(l) }
}

// WithStartTime sets the simulated clock origin.
func WithStartTime(t time.Time) Option {
	return func(c *SimulationContext) { c.now = t }
}

// SimulationContext owns the complete simulation state.
type SimulationContext struct {
	cfg       Config
	battery   *battery.Model
	tracker   *health.Tracker
	adaptive  *adaptive.Controller
	charging  *charging.Controller
	predictor prediction.Predictor
	recorder  charging.SessionRecorder
	history   *history.Ring[model.Sample]
	log       logger.Logger

	now       time.Time
	rul       float64
	rulSource string
}

// New builds a SimulationContext. The simulated clock starts at the wall
// clock unless WithStartTime is given and advances only through Tick.
func New(cfg Config, opts ...Option) *SimulationContext {
	c := &SimulationContext{
		cfg:       cfg,
		predictor: prediction.Unavailable{},
		log:       logger.Nop{},
		now:       time.Now(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.predictor == nil {
		c.predictor = prediction.Unavailable{}
	}
	c.battery = battery.New(cfg.Battery, cfg.InitialSoC)
	c.tracker = health.NewTracker(cfg.Health, c.now)
	c.adaptive = adaptive.New(cfg.Adaptive)
	c.history = history.NewRing[model.Sample](cfg.HistorySize)
	c.charging = charging.New(cfg.Charging, charging.Deps{
		Battery:  c.battery,
		Adaptive: c.adaptive,
		Health:   c.tracker,
		Recorder: c.recorder,
		Logger:   c.log,
		Clock:    c.clock,
	})
	c.charging.SetRULOptimization(cfg.RULOptimized)
	c.rul, c.rulSource = c.tracker.SimpleRUL(), RULFromHealth
	return c
}

func (c *SimulationContext) clock() time.Time { return c.now }

// Now returns the simulated time.
func (c *SimulationContext) Now() time.Time { return c.now }

// Tick advances the simulation by elapsed simulated seconds and returns the
// resulting telemetry. Callers apply any time acceleration to elapsed.
func (c *SimulationContext) Tick(elapsed float64) model.Telemetry {
	if elapsed > 0 {
		c.now = c.now.Add(time.Duration(elapsed * float64(time.Second)))
	}
	hist := c.history.Snapshot()
	c.rul, c.rulSource = c.estimateRUL(hist)
	st := c.charging.Step(elapsed, c.rul, hist)
	c.tracker.Observe(st.Temperature)
	c.history.Push(model.SampleOf(c.now, st, c.charging.Phase()))
	return c.GetState()
}

// estimateRUL asks the predictor when it is available and enough history
// exists. Any failure falls back to the health estimate.
func (c *SimulationContext) estimateRUL(hist []model.Sample) (float64, string) {
	fallback := c.tracker.SimpleRUL()
	if len(hist) < c.cfg.MinPredictorHistory || !c.predictor.IsAvailable() {
		return fallback, RULFromHealth
	}
	hs := c.tracker.State()
	est, err := c.predictor.Predict(hist, prediction.StaticFeatures{
		CycleCount:     hs.CycleCount,
		Health:         hs.Health,
		AvgTemperature: avgTemperature(hist),
	})
	if err != nil {
		c.log.Debugf("rul predictor failed, using health estimate: %v", err)
		return fallback, RULFromHealth
	}
	return est.Percentage(), RULFromPredictor
}

func avgTemperature(hist []model.Sample) float64 {
	if len(hist) == 0 {
		return 0
	}
	temps := make([]float64, len(hist))
	for i, s := range hist {
		temps[i] = s.Temperature
	}
	return stat.Mean(temps, nil)
}

// GetState returns the telemetry snapshot of the current state.
func (c *SimulationContext) GetState() model.Telemetry {
	s := c.battery.State()
	hist := c.history.Snapshot()
	report := health.Evaluate(hist, c.rul)
	t := model.Telemetry{
		Timestamp:        c.now,
		Battery:          s,
		IsCharging:       c.charging.IsCharging(),
		IsDischarging:    c.charging.IsDischarging(),
		Phase:            c.charging.Phase(),
		Health:           c.tracker.State(),
		EstimatedRUL:     c.rul,
		RULSource:        c.rulSource,
		RULOptimized:     c.charging.RULOptimized(),
		DisplayCurrent:   s.Current,
		DisplayVoltage:   s.Voltage,
		TimeAcceleration: 1,
		Report:           report,
		Warnings:         health.Warnings(s, report),
	}
	if sess, ok := c.charging.Session(); ok {
		t.SessionID = sess.ID
	}
	if t.RULOptimized {
		adj, ok := c.charging.LastAdjustment()
		if !ok {
			adj = c.adaptive.Adjust(s, hist, c.rul)
		}
		t.Parameters = &adj
	}
	return t
}

// History returns the recent samples, oldest first.
func (c *SimulationContext) History() []model.Sample { return c.history.Snapshot() }

// Health returns the current health state.
func (c *SimulationContext) Health() model.HealthState { return c.tracker.State() }

// Params returns the current battery parameters.
func (c *SimulationContext) Params() battery.Params { return c.battery.Params() }

// LastSession returns the most recently closed charging session.
func (c *SimulationContext) LastSession() (model.ChargingSession, bool) {
	return c.charging.LastSession()
}

// StartCharging opens a charging session. It returns false when one is
// already open.
func (c *SimulationContext) StartCharging() (string, bool) { return c.charging.StartCharging() }

// StopCharging closes the open session. Repeated calls return false.
func (c *SimulationContext) StopCharging() bool { return c.charging.StopCharging() }

// StartDischarging enters the discharging mode.
func (c *SimulationContext) StartDischarging() bool { return c.charging.StartDischarging() }

// StopDischarging leaves the discharging mode.
func (c *SimulationContext) StopDischarging() bool { return c.charging.StopDischarging() }

// Stop ends whichever mode is active.
func (c *SimulationContext) Stop() bool { return c.charging.Stop() }

// UpdateParams applies a partial battery configuration.
func (c *SimulationContext) UpdateParams(u battery.ParamUpdate) {
	c.battery.UpdateParams(u)
	c.log.Infof("battery parameters updated")
}

// ApplyRates sets a capacity-relative charging profile.
func (c *SimulationContext) ApplyRates(r charging.Rates) { c.charging.ApplyRates(r) }

// SetRULOptimization toggles adaptive charging parameters.
func (c *SimulationContext) SetRULOptimization(enabled bool) {
	c.charging.SetRULOptimization(enabled)
}

// Recalibrate overrides the health estimate.
func (c *SimulationContext) Recalibrate(healthPct, cycles float64) {
	c.tracker.Recalibrate(healthPct, cycles, c.now)
	if c.rulSource == RULFromHealth {
		c.rul = c.tracker.SimpleRUL()
	}
}

// Reset stops any active mode, clears the history and restores the
// initial battery state. Aging is kept.
func (c *SimulationContext) Reset() {
	c.charging.Stop()
	c.battery.Reset(c.cfg.InitialSoC)
	c.history.Reset()
	c.rul, c.rulSource = c.tracker.SimpleRUL(), RULFromHealth
	c.log.Infof("simulation reset to soc %.1f%%", c.cfg.InitialSoC)
}
