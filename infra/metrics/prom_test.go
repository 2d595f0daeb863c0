package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
)

func sampleTelemetry(now time.Time) model.Telemetry {
	return model.Telemetry{
		Timestamp: now,
		Battery: model.BatteryState{
			SoC: 42.5, Voltage: 381.2, Current: 40, Temperature: 29.5, R0: 0.1021, Vp: 1.5,
			Mode: model.ModeCharging,
		},
		IsCharging:   true,
		Phase:        model.PhaseCC,
		SessionID:    "sess-1",
		Health:       model.HealthState{CycleCount: 3, Health: 99.94},
		EstimatedRUL: 87.5,
		RULSource:    "predictor",
		Parameters: &model.ChargingParameters{
			CCCurrent: 36, CVVoltage: 398, TrickleCurrent: 3.6, TerminationCurrent: 4, MaxSoC: 100,
			Strategy: model.StrategyStandard,
		},
	}
}

func TestPromSinkRecordTelemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordTelemetry(sampleTelemetry(time.Now())))

	assert.Equal(t, 42.5, testutil.ToFloat64(sink.soc))
	assert.Equal(t, 40.0, testutil.ToFloat64(sink.current))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.cycles))
	assert.Equal(t, 36.0, testutil.ToFloat64(sink.setpoints.WithLabelValues("cc_current")))

	expected := `
# HELP charging_phase 1 for the active charging phase, 0 otherwise
# TYPE charging_phase gauge
charging_phase{phase="cc"} 1
charging_phase{phase="cv"} 0
charging_phase{phase="none"} 0
charging_phase{phase="trickle"} 0
`
	if err := testutil.CollectAndCompare(sink.phase, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	tel := sampleTelemetry(time.Now())
	tel.RULSource = "health"
	tel.EstimatedRUL = 99.9
	require.NoError(t, sink.RecordTelemetry(tel))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.rul))
	assert.Equal(t, 99.9, testutil.ToFloat64(sink.rul.WithLabelValues("health")))
}

func TestPromSinkLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordPhaseTransition(coremetrics.PhaseTransitionEvent{From: model.PhaseNone, To: model.PhaseCC}))
	require.NoError(t, sink.RecordPhaseTransition(coremetrics.PhaseTransitionEvent{From: model.PhaseCC, To: model.PhaseCV}))
	require.NoError(t, sink.RecordPhaseTransition(coremetrics.PhaseTransitionEvent{From: model.PhaseCC, To: model.PhaseCV}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.transitions.WithLabelValues("cc", "cv")))

	start := time.Now()
	end := start.Add(45 * time.Minute)
	final := 80.0
	require.NoError(t, sink.RecordSession(model.ChargingSession{ID: "open", StartTime: start}))
	require.NoError(t, sink.RecordSession(model.ChargingSession{ID: "a", StartTime: start, EndTime: &end, InitialSoC: 20, FinalSoC: &final}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.sessions))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, first.RecordSession(closedSession()))
	require.NoError(t, second.RecordSession(closedSession()))
	assert.Equal(t, 2.0, testutil.ToFloat64(first.sessions))
}

func closedSession() model.ChargingSession {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	final, temp := 95.0, 33.0
	return model.ChargingSession{
		ID:               "sess-1",
		StartTime:        start,
		EndTime:          &end,
		InitialSoC:       25,
		FinalSoC:         &final,
		FinalTemperature: &temp,
		MaxTemperature:   36.2,
		Phases:           []model.PhaseRecord{{Phase: model.PhaseCC}, {Phase: model.PhaseCV}},
	}
}
