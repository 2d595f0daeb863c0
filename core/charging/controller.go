package charging

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/kilianp07/battsim/core/adaptive"
	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/logger"
	"github.com/kilianp07/battsim/core/model"
)

// FSM event names.
const (
	EventStart          = "start_charging"
	EventVoltageReached = "voltage_reached"
	EventCurrentTapered = "current_tapered"
	EventStop           = "stop_charging"
)

// SessionRecorder receives session snapshots as they open, change phase and
// close. Implementations must not block.
type SessionRecorder interface {
	RecordSessionEvent(ev model.SessionEvent)
}

// HealthObserver is notified when a session closes.
type HealthObserver interface {
	OnSessionClosed(s model.ChargingSession) bool
}

// NopRecorder discards session events.
type NopRecorder struct{}

func (NopRecorder) RecordSessionEvent(model.SessionEvent) {}

// Deps groups the collaborators of a Controller. Battery is required; the
// others may be nil.
type Deps struct {
	Battery  *battery.Model
	Adaptive *adaptive.Controller
	Health   HealthObserver
	Recorder SessionRecorder
	Logger   logger.Logger
	Clock    func() time.Time
}

// Controller drives the battery through the charging phases and the
// discharging mode. It is not safe for concurrent use.
type Controller struct {
	cfg      Config
	battery  *battery.Model
	adaptive *adaptive.Controller
	health   HealthObserver
	recorder SessionRecorder
	log      logger.Logger
	now      func() time.Time

	machine      *fsm.FSM
	session      *model.ChargingSession
	last         *model.ChargingSession
	sp           setpoints
	rulOptimized bool
	adjusted     *model.ChargingParameters
	lastGood     *model.ChargingParameters
}

// New creates a Controller in the none phase.
func New(cfg Config, d Deps) *Controller {
	c := &Controller{
		cfg:      cfg,
		battery:  d.Battery,
		adaptive: d.Adaptive,
		health:   d.Health,
		recorder: d.Recorder,
		log:      logger.OrNop(d.Logger),
		now:      d.Clock,
	}
	if c.recorder == nil {
		c.recorder = NopRecorder{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	none, cc, cv, trickle := string(model.PhaseNone), string(model.PhaseCC), string(model.PhaseCV), string(model.PhaseTrickle)
	c.machine = fsm.NewFSM(none,
		fsm.Events{
			{Name: EventStart, Src: []string{none}, Dst: cc},
			{Name: EventVoltageReached, Src: []string{cc}, Dst: cv},
			{Name: EventCurrentTapered, Src: []string{cv}, Dst: trickle},
			{Name: EventStop, Src: []string{cc, cv, trickle}, Dst: none},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.onTransition(model.Phase(e.Src), model.Phase(e.Dst))
			},
		},
	)
	c.sp = c.staticSetpoints()
	return c
}

// Phase returns the active charging phase.
func (c *Controller) Phase() model.Phase { return model.Phase(c.machine.Current()) }

// IsCharging reports whether a charging session is open.
func (c *Controller) IsCharging() bool { return c.Phase() != model.PhaseNone }

// IsDischarging reports whether the discharging mode is active.
func (c *Controller) IsDischarging() bool { return c.battery.State().IsDischarging() }

// Config returns the current thresholds.
func (c *Controller) Config() Config { return c.cfg }

// Session returns a copy of the open session, if any.
func (c *Controller) Session() (model.ChargingSession, bool) {
	if c.session == nil {
		return model.ChargingSession{}, false
	}
	return c.session.Clone(), true
}

// LastSession returns a copy of the most recently closed session.
func (c *Controller) LastSession() (model.ChargingSession, bool) {
	if c.last == nil {
		return model.ChargingSession{}, false
	}
	return c.last.Clone(), true
}

// RULOptimized reports whether adaptive parameters are applied.
func (c *Controller) RULOptimized() bool { return c.rulOptimized }

// SetRULOptimization enables or disables adaptive parameters. Disabling
// drops the last adjustment.
func (c *Controller) SetRULOptimization(enabled bool) {
	if c.rulOptimized == enabled {
		return
	}
	c.rulOptimized = enabled
	if !enabled {
		c.adjusted = nil
		c.lastGood = nil
	}
	c.log.Infof("rul optimised charging %s", onOff(enabled))
}

// LastAdjustment returns the latest adaptive output while optimisation is
// enabled.
func (c *Controller) LastAdjustment() (model.ChargingParameters, bool) {
	if c.adjusted == nil {
		return model.ChargingParameters{}, false
	}
	p := *c.adjusted
	p.Advice = append([]string(nil), p.Advice...)
	return p, true
}

// ApplyRates sets the charging profile from capacity-relative rates. Zero
// fields are ignored.
func (c *Controller) ApplyRates(r Rates) {
	capacity := c.battery.Params().Capacity
	if r.CCRate > 0 {
		c.battery.UpdateParams(battery.ParamUpdate{MaxChargingCurrent: battery.Float(r.CCRate * capacity)})
	}
	if r.CVVoltage > 0 {
		c.cfg.CVVoltage = r.CVVoltage
		c.cfg.CCToCVVoltage = r.CVVoltage * 0.98
	}
	if r.TrickleRate > 0 {
		c.cfg.TrickleCurrent = r.TrickleRate * capacity
	}
	if r.TerminationRate > 0 {
		c.cfg.CVToTrickleCurrent = r.TerminationRate * capacity
	}
	if !c.IsCharging() {
		c.sp = c.staticSetpoints()
	}
}

// StartCharging opens a session and enters CC. It returns false without
// side effects when a session is already open. An active discharge is
// stopped first.
func (c *Controller) StartCharging() (string, bool) {
	if c.IsCharging() {
		return "", false
	}
	if c.IsDischarging() {
		c.StopDischarging()
	}
	s := c.battery.State()
	now := c.now()
	c.sp = c.currentSetpoints()
	c.session = &model.ChargingSession{
		ID:                 uuid.NewString(),
		StartTime:          now,
		InitialSoC:         s.SoC,
		InitialTemperature: s.Temperature,
		MaxTemperature:     s.Temperature,
		InitialR0:          s.R0,
		InitialR1:          s.R1,
		RULOptimized:       c.rulOptimized,
	}
	c.battery.SetMode(model.ModeCharging)
	if !c.fire(EventStart) {
		c.session = nil
		c.battery.SetMode(model.ModeIdle)
		return "", false
	}
	c.log.Infof("charging session %s started at soc %.2f%%", c.session.ID, s.SoC)
	return c.session.ID, true
}

// StopCharging closes the open session. A second call is a no-op that
// returns false.
func (c *Controller) StopCharging() bool {
	if !c.IsCharging() {
		return false
	}
	c.fire(EventStop)
	c.battery.SetMode(model.ModeIdle)
	return true
}

// StartDischarging enters the discharging mode, closing any open charging
// session. It returns false if already discharging.
func (c *Controller) StartDischarging() bool {
	if c.IsDischarging() {
		return false
	}
	if c.IsCharging() {
		c.StopCharging()
	}
	c.battery.SetMode(model.ModeDischarging)
	c.log.Infof("discharging started at soc %.2f%%", c.battery.State().SoC)
	return true
}

// StopDischarging leaves the discharging mode. A second call returns false.
func (c *Controller) StopDischarging() bool {
	if !c.IsDischarging() {
		return false
	}
	c.battery.SetMode(model.ModeIdle)
	c.log.Infof("discharging stopped at soc %.2f%%", c.battery.State().SoC)
	return true
}

// Stop ends whichever mode is active.
func (c *Controller) Stop() bool {
	return c.StopCharging() || c.StopDischarging()
}

// Step advances the battery by elapsed seconds. rul is the current RUL
// percentage and history the recent samples, both used only when RUL
// optimisation is enabled.
func (c *Controller) Step(elapsed, rul float64, history []model.Sample) model.BatteryState {
	switch {
	case c.IsCharging():
		return c.stepCharging(elapsed, rul, history)
	case c.IsDischarging():
		return c.stepDischarging(elapsed)
	default:
		return c.battery.Tick(elapsed, 0, model.ModeIdle)
	}
}

func (c *Controller) stepCharging(elapsed, rul float64, history []model.Sample) model.BatteryState {
	s := c.battery.State()
	if c.rulOptimized {
		c.sp = c.adaptiveSetpoints(s, rul, history)
	} else {
		c.sp = c.staticSetpoints()
	}
	if s.SoC >= c.sp.maxSoC {
		c.finish("target soc reached")
		return c.battery.Tick(elapsed, 0, model.ModeIdle)
	}

	// Transitions cascade within a tick so a pack that is already past a
	// threshold does not spend a tick in a stale phase.
	var command float64
	for i := 0; i < 3; i++ {
		switch c.Phase() {
		case model.PhaseCC:
			command = c.sp.ccCurrent
			if s.Voltage >= c.sp.ccToCV {
				c.fire(EventVoltageReached)
				continue
			}
		case model.PhaseCV:
			command = c.cvCurrent(s)
			if command < c.sp.cvToTrickle {
				c.fire(EventCurrentTapered)
				continue
			}
		case model.PhaseTrickle:
			command = c.trickleCurrent(s.SoC)
			if s.SoC >= c.cfg.FullSoC || command < c.cfg.TerminationCurrent {
				c.finish("charge complete")
				return c.battery.Tick(elapsed, 0, model.ModeIdle)
			}
		}
		break
	}

	st := c.battery.Tick(elapsed, command, model.ModeCharging)
	if c.session != nil && st.Temperature > c.session.MaxTemperature {
		c.session.MaxTemperature = st.Temperature
	}
	return st
}

func (c *Controller) stepDischarging(elapsed float64) model.BatteryState {
	current := c.cfg.DischargeCurrent
	if current <= 0 {
		current = c.battery.Params().MaxDischargingCurrent
	}
	st := c.battery.Tick(elapsed, -current, model.ModeDischarging)
	if st.SoC <= c.cfg.DischargeCutoffSoC {
		c.StopDischarging()
		st = c.battery.State()
	}
	return st
}

// cvCurrent is the Ohm's law current holding the terminal at the CV target.
func (c *Controller) cvCurrent(s model.BatteryState) float64 {
	if !(s.R0 > 0) {
		return 0
	}
	i := (c.sp.cvVoltage - c.battery.OCV()) / s.R0
	return clamp(i, 0, math.Max(0, c.battery.Params().MaxChargingCurrent))
}

// trickleCurrent tapers linearly to zero within the final band below 100%.
func (c *Controller) trickleCurrent(soc float64) float64 {
	base := c.sp.trickleCurrent
	band := c.cfg.TaperBand
	if band > 0 && soc > 100-band {
		return clamp(base*(100-soc)/band, 0, base)
	}
	return clamp(base, 0, base)
}

func (c *Controller) finish(reason string) {
	id := c.session.ID
	c.StopCharging()
	c.log.Infof("charging session %s stopped: %s", id, reason)
}

func (c *Controller) fire(event string) bool {
	if err := c.machine.Event(context.Background(), event); err != nil {
		c.log.Warnf("charging transition %s from %s rejected: %v", event, c.machine.Current(), err)
		return false
	}
	return true
}

// onTransition maintains the phase records of the open session.
func (c *Controller) onTransition(from, to model.Phase) {
	if c.session == nil {
		return
	}
	now := c.now()
	s := c.battery.State()
	if n := len(c.session.Phases); n > 0 && c.session.Phases[n-1].EndTime == nil {
		end := now
		c.session.Phases[n-1].EndTime = &end
	}
	c.log.Debugw("charging phase transition", map[string]any{
		"session": c.session.ID,
		"from":    string(from),
		"to":      string(to),
		"soc":     s.SoC,
		"voltage": s.Voltage,
	})

	if to == model.PhaseNone {
		end := now
		soc, temp := s.SoC, s.Temperature
		c.session.EndTime = &end
		c.session.FinalSoC = &soc
		c.session.FinalTemperature = &temp
		closed := c.session.Clone()
		c.last = &closed
		c.session = nil
		if c.health != nil {
			c.health.OnSessionClosed(closed.Clone())
		}
		c.recorder.RecordSessionEvent(model.SessionEvent{
			Kind: model.SessionClosed, From: from, To: to, Time: now, Session: closed.Clone(),
		})
		return
	}

	c.session.Phases = append(c.session.Phases, model.PhaseRecord{
		Phase:              to,
		StartTime:          now,
		InitialSoC:         s.SoC,
		InitialTemperature: s.Temperature,
		Targets:            c.targets(to),
	})
	kind := model.SessionPhaseChanged
	if from == model.PhaseNone {
		kind = model.SessionOpened
	}
	c.recorder.RecordSessionEvent(model.SessionEvent{
		Kind: kind, From: from, To: to, Time: now, Session: c.session.Clone(),
	})
}

func (c *Controller) targets(p model.Phase) model.PhaseTargets {
	switch p {
	case model.PhaseCC:
		return model.PhaseTargets{CCCurrent: c.sp.ccCurrent}
	case model.PhaseCV:
		return model.PhaseTargets{CVVoltage: c.sp.cvVoltage}
	case model.PhaseTrickle:
		return model.PhaseTargets{TrickleCurrent: c.sp.trickleCurrent, TrickleVoltage: c.sp.trickleVoltage}
	}
	return model.PhaseTargets{}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
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
