package metrics

import (
	"errors"

	"github.com/kilianp07/battsim/core/model"
)

// MultiSink fans out to multiple sinks. Every sink is called even when an
// earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordTelemetry(t model.Telemetry) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordTelemetry(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordPhaseTransition forwards to sinks implementing PhaseTransitionRecorder.
func (m *MultiSink) RecordPhaseTransition(ev PhaseTransitionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(PhaseTransitionRecorder); ok {
			if err := r.RecordPhaseTransition(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordSession forwards to sinks implementing SessionRecorder.
func (m *MultiSink) RecordSession(s model.ChargingSession) error {
	var errs []error
	for _, sink := range m.Sinks {
		if r, ok := sink.(SessionRecorder); ok {
			if err := r.RecordSession(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
