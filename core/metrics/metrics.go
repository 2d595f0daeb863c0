package metrics

import (
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// MetricsSink records telemetry snapshots for observability purposes.
type MetricsSink interface {
	RecordTelemetry(t model.Telemetry) error
}

// PhaseTransitionEvent captures one move of the charging state machine.
type PhaseTransitionEvent struct {
	SessionID   string
	From        model.Phase
	To          model.Phase
	SoC         float64
	Temperature float64
	Time        time.Time
}

// PhaseTransitionRecorder records charging phase transitions.
type PhaseTransitionRecorder interface {
	RecordPhaseTransition(ev PhaseTransitionEvent) error
}

// SessionRecorder records closed charging sessions.
type SessionRecorder interface {
	RecordSession(s model.ChargingSession) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTelemetry(model.Telemetry) error            { return nil }
func (NopSink) RecordPhaseTransition(PhaseTransitionEvent) error { return nil }
func (NopSink) RecordSession(model.ChargingSession) error        { return nil }

// TransitionOf converts a session event into a PhaseTransitionEvent using
// the state captured at the start of the new phase, or at close.
func TransitionOf(ev model.SessionEvent) PhaseTransitionEvent {
	out := PhaseTransitionEvent{
		SessionID: ev.Session.ID,
		From:      ev.From,
		To:        ev.To,
		SoC:       ev.Session.InitialSoC,
		Time:      ev.Time,
	}
	if n := len(ev.Session.Phases); n > 0 && ev.Kind != model.SessionClosed {
		last := ev.Session.Phases[n-1]
		out.SoC = last.InitialSoC
		out.Temperature = last.InitialTemperature
	}
	if ev.Kind == model.SessionClosed {
		if ev.Session.FinalSoC != nil {
			out.SoC = *ev.Session.FinalSoC
		}
		if ev.Session.FinalTemperature != nil {
			out.Temperature = *ev.Session.FinalTemperature
		}
	}
	return out
}

// RecordSessionEvent forwards ev to the recorders sink implements. Every
// event is a phase transition; closing events also carry the session.
func RecordSessionEvent(sink MetricsSink, ev model.SessionEvent) error {
	if r, ok := sink.(PhaseTransitionRecorder); ok {
		if err := r.RecordPhaseTransition(TransitionOf(ev)); err != nil {
			return err
		}
	}
	if ev.Kind != model.SessionClosed {
		return nil
	}
	if r, ok := sink.(SessionRecorder); ok {
		return r.RecordSession(ev.Session)
	}
	return nil
}
