package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.lines = append(l.lines, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordTelemetry(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer func() { _ = sink.Close() }()

	now := time.Unix(1700000000, 0)
	tel := sampleTelemetry(now)
	require.NoError(t, sink.RecordTelemetry(tel))

	p := write.NewPointWithMeasurement("battery_state").
		AddTag("phase", "cc").
		AddTag("mode", "charging").
		AddTag("rul_source", "predictor").
		AddField("soc", 42.5).
		AddField("voltage", 381.2).
		AddField("current", 40.0).
		AddField("temperature", 29.5).
		AddField("internal_resistance", 0.1021).
		AddField("polarization_voltage", 1.5).
		AddField("health", 99.94).
		AddField("cycle_count", 3.0).
		AddField("rul", 87.5).
		SetTime(now).
		AddTag("session_id", "sess-1").
		AddTag("strategy", "standard").
		AddField("cc_setpoint", 36.0).
		AddField("cv_setpoint", 398.0)
	require.Len(t, rec.lines, 1)
	assert.Equal(t, line(p), rec.lines[0])
	assert.True(t, strings.HasPrefix(rec.lines[0], "battery_state,"))
}

func TestInfluxSinkLifecycle(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer func() { _ = sink.Close() }()

	now := time.Unix(1700000000, 0)
	require.NoError(t, sink.RecordPhaseTransition(coremetrics.PhaseTransitionEvent{
		SessionID: "sess-1", From: model.PhaseCC, To: model.PhaseCV, SoC: 88.1234, Temperature: 31, Time: now,
	}))
	open := model.ChargingSession{ID: "open"}
	require.NoError(t, sink.RecordSession(open))
	s := closedSession()
	require.NoError(t, sink.RecordSession(s))

	require.Len(t, rec.lines, 2)
	assert.Contains(t, rec.lines[0], "phase_transition,")
	assert.Contains(t, rec.lines[0], "soc=88.123")
	assert.Equal(t, line(sessionPoint(s)), rec.lines[1])
	assert.Contains(t, rec.lines[1], "soc_gain=70")
	assert.Contains(t, rec.lines[1], "phases=2i")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
