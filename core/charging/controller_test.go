package charging

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/adaptive"
	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/health"
	"github.com/kilianp07/battsim/core/model"
)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(sec float64) {
	c.t = c.t.Add(time.Duration(sec * float64(time.Second)))
}

type eventLog struct{ events []model.SessionEvent }

func (r *eventLog) RecordSessionEvent(ev model.SessionEvent) { r.events = append(r.events, ev) }

func (r *eventLog) kinds(k model.SessionEventKind) []model.SessionEvent {
	var out []model.SessionEvent
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	bat     *battery.Model
	ctrl    *Controller
	clock   *fakeClock
	events  *eventLog
	tracker *health.Tracker
}

func newFixture(t *testing.T, soc float64) *fixture {
	t.Helper()
	clock := newClock()
	bat := battery.New(battery.DefaultParams(), soc)
	ev := &eventLog{}
	tr := health.NewTracker(health.DefaultConfig(), clock.Now())
	ctrl := New(DefaultConfig(), Deps{
		Battery:  bat,
		Adaptive: adaptive.New(adaptive.DefaultConfig()),
		Health:   tr,
		Recorder: ev,
		Clock:    clock.Now,
	})
	return &fixture{bat: bat, ctrl: ctrl, clock: clock, events: ev, tracker: tr}
}

func (f *fixture) step(dt, rul float64, hist []model.Sample) model.BatteryState {
	f.clock.Advance(dt)
	return f.ctrl.Step(dt, rul, hist)
}

func TestScenarioFullChargeProfile(t *testing.T) {
	f := newFixture(t, 20)
	p := f.bat.Params()
	id, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	require.NotEmpty(t, id)
	assert.Equal(t, model.PhaseCC, f.ctrl.Phase())

	phases := []model.Phase{model.PhaseCC}
	prev := f.bat.State()
	for i := 0; i < 50000 && f.ctrl.IsCharging(); i++ {
		st := f.step(1, 100, nil)
		require.GreaterOrEqual(t, st.SoC, 0.0)
		require.LessOrEqual(t, st.SoC, 100.0)
		require.GreaterOrEqual(t, st.Voltage, p.MinVoltage)
		require.LessOrEqual(t, st.Voltage, p.MaxVoltage)

		ph := f.ctrl.Phase()
		if ph != phases[len(phases)-1] {
			switch ph {
			case model.PhaseCV:
				assert.GreaterOrEqual(t, prev.Voltage, 395.0)
			case model.PhaseTrickle:
				cv := (p.MaxVoltage - battery.OCV(p, prev.SoC)) / prev.R0
				assert.Less(t, cv, 3.0)
			}
			phases = append(phases, ph)
		}
		prev = st
	}

	assert.Equal(t, []model.Phase{model.PhaseCC, model.PhaseCV, model.PhaseTrickle, model.PhaseNone}, phases)
	assert.False(t, f.ctrl.IsCharging())
	assert.False(t, f.bat.State().IsCharging())
	assert.GreaterOrEqual(t, f.bat.State().SoC, 99.98)

	last, ok := f.ctrl.LastSession()
	require.True(t, ok)
	assert.Equal(t, id, last.ID)
	require.Len(t, last.Phases, 3)
	for _, rec := range last.Phases {
		assert.True(t, rec.Closed())
	}
	assert.Equal(t, model.PhaseTargets{CCCurrent: 80}, last.Phases[0].Targets)
	assert.Equal(t, model.PhaseTargets{CVVoltage: 400}, last.Phases[1].Targets)
	assert.Equal(t, model.PhaseTargets{TrickleCurrent: 2.5, TrickleVoltage: 400}, last.Phases[2].Targets)
	assert.Greater(t, last.MaxTemperature, last.InitialTemperature)
	assert.InDelta(t, 20, last.InitialSoC, 1e-9)

	assert.Len(t, f.events.kinds(model.SessionOpened), 1)
	assert.Len(t, f.events.kinds(model.SessionPhaseChanged), 2)
	assert.Len(t, f.events.kinds(model.SessionClosed), 1)
	assert.InDelta(t, (*last.FinalSoC-20)/100, f.tracker.State().CycleCount, 1e-9)
}

func TestStopChargingIdempotent(t *testing.T) {
	f := newFixture(t, 50)
	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		f.step(1, 100, nil)
	}
	require.True(t, f.ctrl.StopCharging())
	state := f.bat.State()
	last, _ := f.ctrl.LastSession()

	assert.False(t, f.ctrl.StopCharging())
	assert.Equal(t, state, f.bat.State())
	again, _ := f.ctrl.LastSession()
	assert.Equal(t, last, again)
	assert.Len(t, f.events.kinds(model.SessionClosed), 1)
	assert.Zero(t, f.bat.State().Current)
	assert.False(t, f.ctrl.StopDischarging())
}

func TestStartChargingTwiceFails(t *testing.T) {
	f := newFixture(t, 50)
	id, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	id2, ok := f.ctrl.StartCharging()
	assert.False(t, ok)
	assert.Empty(t, id2)
	s, open := f.ctrl.Session()
	require.True(t, open)
	assert.Equal(t, id, s.ID)
	assert.Len(t, f.events.kinds(model.SessionOpened), 1)
}

func TestModesAreMutuallyExclusive(t *testing.T) {
	f := newFixture(t, 50)
	require.True(t, f.ctrl.StartDischarging())
	assert.False(t, f.ctrl.StartDischarging())
	f.step(1, 100, nil)

	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	assert.False(t, f.ctrl.IsDischarging())
	assert.True(t, f.ctrl.IsCharging())

	require.True(t, f.ctrl.StartDischarging())
	assert.False(t, f.ctrl.IsCharging())
	assert.True(t, f.ctrl.IsDischarging())
	assert.Len(t, f.events.kinds(model.SessionClosed), 1)

	assert.True(t, f.ctrl.Stop())
	assert.False(t, f.ctrl.Stop())
}

func TestDischargeAutoStopsAtCutoff(t *testing.T) {
	f := newFixture(t, 8)
	require.True(t, f.ctrl.StartDischarging())
	var st model.BatteryState
	for i := 0; i < 1000 && f.ctrl.IsDischarging(); i++ {
		st = f.step(1, 100, nil)
		if f.ctrl.IsDischarging() {
			assert.Equal(t, -100.0, st.Current)
		}
	}
	assert.False(t, f.ctrl.IsDischarging())
	assert.LessOrEqual(t, st.SoC, 5.0)
	assert.Greater(t, st.SoC, 4.9)
	assert.Zero(t, st.Current)
	assert.Equal(t, model.ModeIdle, st.Mode)
}

func TestTrickleTaperClamped(t *testing.T) {
	f := newFixture(t, 50)
	f.ctrl.sp = f.ctrl.staticSetpoints()
	assert.Equal(t, 2.5, f.ctrl.trickleCurrent(98))
	assert.InDelta(t, 1.25, f.ctrl.trickleCurrent(99.5), 1e-9)
	assert.Zero(t, f.ctrl.trickleCurrent(100))
	assert.Zero(t, f.ctrl.trickleCurrent(100.5))
}

func TestTransitionsCascadeFromHighSoC(t *testing.T) {
	f := newFixture(t, 99.995)
	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	f.step(1, 100, nil)
	assert.False(t, f.ctrl.IsCharging())
	last, ok := f.ctrl.LastSession()
	require.True(t, ok)
	var got []model.Phase
	for _, p := range last.Phases {
		got = append(got, p.Phase)
	}
	assert.Equal(t, []model.Phase{model.PhaseCC, model.PhaseCV, model.PhaseTrickle}, got)
}

func history(n int) []model.Sample {
	h := make([]model.Sample, n)
	for i := range h {
		h[i] = model.Sample{SoC: 50, Voltage: 380, Temperature: 25, R0: 0.1}
	}
	return h
}

func TestRULOptimisedSessionStopsAtStrategyCap(t *testing.T) {
	f := newFixture(t, 60)
	f.ctrl.SetRULOptimization(true)
	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	hist := history(10)
	for i := 0; i < 20000 && f.ctrl.IsCharging(); i++ {
		f.step(10, 25, hist)
	}
	require.False(t, f.ctrl.IsCharging())
	soc := f.bat.State().SoC
	assert.InDelta(t, 80, soc, 0.05)

	adj, ok := f.ctrl.LastAdjustment()
	require.True(t, ok)
	assert.Equal(t, model.StrategyLongevity, adj.Strategy)
	assert.Equal(t, 80.0, adj.MaxSoC)

	last, _ := f.ctrl.LastSession()
	assert.True(t, last.RULOptimized)
	require.Len(t, last.Phases, 3)
	assert.InDelta(t, 400*0.9625*0.95, last.Phases[1].Targets.CVVoltage, 1e-9)

	f.ctrl.SetRULOptimization(false)
	_, ok = f.ctrl.LastAdjustment()
	assert.False(t, ok)
}

func TestRULOptimisedFallbackUsesStaticSetpoints(t *testing.T) {
	f := newFixture(t, 30)
	f.ctrl.SetRULOptimization(true)
	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	st := f.step(1, 25, history(2))
	assert.Equal(t, 80.0, st.Current)
	adj, ok := f.ctrl.LastAdjustment()
	require.True(t, ok)
	assert.True(t, adj.Fallback)
}

func TestApplyRates(t *testing.T) {
	f := newFixture(t, 30)
	f.ctrl.ApplyRates(Rates{CCRate: 0.5, CVVoltage: 390, TrickleRate: 0.02, TerminationRate: 0.05})
	assert.Equal(t, 40.0, f.bat.Params().MaxChargingCurrent)
	cfg := f.ctrl.Config()
	assert.Equal(t, 390.0, cfg.CVVoltage)
	assert.InDelta(t, 382.2, cfg.CCToCVVoltage, 1e-9)
	assert.InDelta(t, 1.6, cfg.TrickleCurrent, 1e-9)
	assert.InDelta(t, 4, cfg.CVToTrickleCurrent, 1e-9)

	_, ok := f.ctrl.StartCharging()
	require.True(t, ok)
	st := f.step(1, 100, nil)
	assert.Equal(t, 40.0, st.Current)
}

var phaseOrder = map[model.Phase]int{model.PhaseNone: 0, model.PhaseCC: 1, model.PhaseCV: 2, model.PhaseTrickle: 3}

func TestRandomisedOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t, 40)
	r := rand.New(rand.NewSource(3))
	p := f.bat.Params()
	for i := 0; i < 20000; i++ {
		switch r.Intn(100) {
		case 0:
			f.ctrl.StartCharging()
		case 1:
			f.ctrl.StopCharging()
		case 2:
			f.ctrl.StartDischarging()
		case 3:
			f.ctrl.StopDischarging()
		case 4:
			f.ctrl.SetRULOptimization(r.Intn(2) == 0)
		}
		st := f.step(r.Float64()*20, r.Float64()*100, history(r.Intn(8)))
		require.False(t, f.ctrl.IsCharging() && f.ctrl.IsDischarging())
		require.GreaterOrEqual(t, st.SoC, 0.0)
		require.LessOrEqual(t, st.SoC, 100.0)
		require.GreaterOrEqual(t, st.Voltage, p.MinVoltage)
		require.LessOrEqual(t, st.Voltage, p.MaxVoltage)
	}

	open := false
	for _, ev := range f.events.events {
		switch ev.Kind {
		case model.SessionOpened:
			require.False(t, open)
			require.Equal(t, model.PhaseNone, ev.From)
			require.Equal(t, model.PhaseCC, ev.To)
			open = true
		case model.SessionPhaseChanged:
			require.True(t, open)
			require.Equal(t, phaseOrder[ev.From]+1, phaseOrder[ev.To])
		case model.SessionClosed:
			require.True(t, open)
			require.Equal(t, model.PhaseNone, ev.To)
			require.True(t, ev.Session.Closed())
			for _, rec := range ev.Session.Phases {
				require.True(t, rec.Closed())
			}
			open = false
		}
	}
}
