package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/factory"
	"github.com/kilianp07/battsim/core/model"
)

type recordSink struct {
	telemetry   int
	transitions []PhaseTransitionEvent
	sessions    []model.ChargingSession
	err         error
}

func (r *recordSink) RecordTelemetry(model.Telemetry) error {
	r.telemetry++
	return r.err
}

func (r *recordSink) RecordPhaseTransition(ev PhaseTransitionEvent) error {
	r.transitions = append(r.transitions, ev)
	return r.err
}

func (r *recordSink) RecordSession(s model.ChargingSession) error {
	r.sessions = append(r.sessions, s)
	return r.err
}

type telemetryOnly struct{ n int }

func (t *telemetryOnly) RecordTelemetry(model.Telemetry) error {
	t.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1, s2 := &recordSink{}, &recordSink{}
	plain := &telemetryOnly{}
	m := NewMultiSink(s1, plain, s2)
	require.NoError(t, m.RecordTelemetry(model.Telemetry{}))
	require.NoError(t, m.RecordPhaseTransition(PhaseTransitionEvent{To: model.PhaseCC}))
	require.NoError(t, m.RecordSession(model.ChargingSession{ID: "a"}))
	assert.Equal(t, 1, s1.telemetry)
	assert.Equal(t, 1, plain.n)
	assert.Len(t, s2.transitions, 1)
	assert.Len(t, s2.sessions, 1)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordSink{err: boom}
	ok := &recordSink{}
	err := NewMultiSink(failing, ok).RecordTelemetry(model.Telemetry{})
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, ok.telemetry)
}

func TestRecordSessionEvent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	final, temp := 99.9, 33.0
	sess := model.ChargingSession{
		ID:         "s1",
		InitialSoC: 20,
		Phases: []model.PhaseRecord{
			{Phase: model.PhaseCC, InitialSoC: 20, InitialTemperature: 25},
			{Phase: model.PhaseCV, InitialSoC: 88, InitialTemperature: 31},
		},
	}
	sink := &recordSink{}
	require.NoError(t, RecordSessionEvent(sink, model.SessionEvent{
		Kind: model.SessionPhaseChanged, From: model.PhaseCC, To: model.PhaseCV, Time: now, Session: sess,
	}))
	require.Len(t, sink.transitions, 1)
	assert.Equal(t, 88.0, sink.transitions[0].SoC)
	assert.Equal(t, 31.0, sink.transitions[0].Temperature)
	assert.Empty(t, sink.sessions)

	end := now.Add(time.Hour)
	sess.EndTime, sess.FinalSoC, sess.FinalTemperature = &end, &final, &temp
	require.NoError(t, RecordSessionEvent(sink, model.SessionEvent{
		Kind: model.SessionClosed, From: model.PhaseCV, To: model.PhaseNone, Time: end, Session: sess,
	}))
	require.Len(t, sink.transitions, 2)
	assert.Equal(t, 99.9, sink.transitions[1].SoC)
	assert.Equal(t, model.PhaseNone, sink.transitions[1].To)
	require.Len(t, sink.sessions, 1)
	assert.Equal(t, "s1", sink.sessions[0].ID)

	assert.NoError(t, RecordSessionEvent(&telemetryOnly{}, model.SessionEvent{Kind: model.SessionClosed}))
}

func TestNewMetricsSinkDefaults(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "does-not-exist"}})
	assert.True(t, errors.Is(err, factory.ErrUnknownType))
}

// closedSinks counts closingSink.Close calls.
var closedSinks int

type closingSink struct{ NopSink }

func (closingSink) Close() error {
	closedSinks++
	return nil
}

func TestNewMetricsSinkClosesOnPartialFailure(t *testing.T) {
	closedSinks = 0
	// registration fails harmlessly on repeated runs
	_ = RegisterMetricsSink("closing-test", func(map[string]any) (MetricsSink, error) {
		return closingSink{}, nil
	})

	_, err := NewMetricsSink([]factory.ModuleConfig{{Type: "closing-test"}, {Type: "nope"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, factory.ErrUnknownType))
	assert.Contains(t, err.Error(), "sink 1 (nope)")
	assert.Equal(t, 1, closedSinks)

	s, err := NewMetricsSink([]factory.ModuleConfig{{Type: "closing-test"}, {Type: "closing-test"}})
	require.NoError(t, err)
	assert.IsType(t, &MultiSink{}, s)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Sinks: []factory.ModuleConfig{{Type: "prometheus"}}}.Validate())
	assert.Error(t, Config{Sinks: []factory.ModuleConfig{{Type: "prometheus"}, {}}}.Validate())
}
