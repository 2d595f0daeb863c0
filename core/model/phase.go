package model

import "time"

// Phase identifies the active charging phase.
type Phase string

const (
	PhaseNone    Phase = "none"
	PhaseCC      Phase = "cc"
	PhaseCV      Phase = "cv"
	PhaseTrickle Phase = "trickle"
)

// PhaseTargets holds the set-points applied while a phase was active. Only
// the fields relevant to the phase are populated.
type PhaseTargets struct {
	CCCurrent      float64 `json:"cc_current,omitempty"`
	CVVoltage      float64 `json:"cv_voltage,omitempty"`
	TrickleCurrent float64 `json:"trickle_current,omitempty"`
	TrickleVoltage float64 `json:"trickle_voltage,omitempty"`
}

// PhaseRecord describes one phase of a charging session.
type PhaseRecord struct {
	Phase              Phase        `json:"phase"`
	StartTime          time.Time    `json:"start_time"`
	EndTime            *time.Time   `json:"end_time,omitempty"` // nil while the phase is open
	InitialSoC         float64      `json:"initial_soc"`
	InitialTemperature float64      `json:"initial_temperature"`
	Targets            PhaseTargets `json:"targets"`
}

// Closed reports whether the record has an end time.
func (r PhaseRecord) Closed() bool { return r.EndTime != nil }

// Duration returns the length of a closed phase and zero for an open one.
func (r PhaseRecord) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
