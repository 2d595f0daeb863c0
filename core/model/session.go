package model

import "time"

// ChargingSession is the record of one start/stop charging cycle.
type ChargingSession struct {
	ID                 string        `json:"id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	InitialSoC         float64       `json:"initial_soc"`
	FinalSoC           *float64      `json:"final_soc,omitempty"`
	InitialTemperature float64       `json:"initial_temperature"`
	FinalTemperature   *float64      `json:"final_temperature,omitempty"`
	MaxTemperature     float64       `json:"max_temperature"`
	InitialR0          float64       `json:"initial_internal_resistance"`
	InitialR1          float64       `json:"initial_polarization_resistance"`
	RULOptimized       bool          `json:"rul_optimized"`
	Phases             []PhaseRecord `json:"charging_phases"`
}

// Closed reports whether the session has ended.
func (s ChargingSession) Closed() bool { return s.EndTime != nil }

// Duration returns the session length, or zero while it is still open.
func (s ChargingSession) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SoCGain returns the SoC gained over a closed session.
func (s ChargingSession) SoCGain() float64 {
	if s.FinalSoC == nil {
		return 0
	}
	return *s.FinalSoC - s.InitialSoC
}

// Clone returns a deep copy so the receiver of a snapshot cannot alias the
// controller's working record.
func (s ChargingSession) Clone() ChargingSession {
	out := s
	out.EndTime = cloneTime(s.EndTime)
	out.FinalSoC = cloneFloat(s.FinalSoC)
	out.FinalTemperature = cloneFloat(s.FinalTemperature)
	if s.Phases != nil {
		out.Phases = make([]PhaseRecord, len(s.Phases))
		for i, p := range s.Phases {
			p.EndTime = cloneTime(p.EndTime)
			out.Phases[i] = p
		}
	}
	return out
}

// SessionEventKind classifies a SessionEvent.
type SessionEventKind string

const (
	SessionOpened       SessionEventKind = "opened"
	SessionPhaseChanged SessionEventKind = "phase_changed"
	SessionClosed       SessionEventKind = "closed"
)

// SessionEvent notifies observers about session lifecycle changes. Session
// is always a deep copy.
type SessionEvent struct {
	Kind    SessionEventKind `json:"kind"`
	From    Phase            `json:"from"`
	To      Phase            `json:"to"`
	Time    time.Time        `json:"time"`
	Session ChargingSession  `json:"session"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
