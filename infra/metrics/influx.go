package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/infra/logger"
)

// InfluxConfig selects the InfluxDB endpoint.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes battery telemetry to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTelemetry writes one battery_state point.
func (s *InfluxSink) RecordTelemetry(t model.Telemetry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, statePoint(t))
}

// RecordPhaseTransition writes one phase_transition point.
func (s *InfluxSink) RecordPhaseTransition(ev coremetrics.PhaseTransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, transitionPoint(ev))
}

// RecordSession writes one charging_session point for a closed session.
func (s *InfluxSink) RecordSession(sess model.ChargingSession) error {
	if !sess.Closed() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, sessionPoint(sess))
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func statePoint(t model.Telemetry) *write.Point {
	b := t.Battery
	p := write.NewPointWithMeasurement("battery_state").
		AddTag("phase", string(t.Phase)).
		AddTag("mode", string(b.Mode)).
		AddTag("rul_source", t.RULSource).
		AddField("soc", round3(b.SoC)).
		AddField("voltage", round3(b.Voltage)).
		AddField("current", round3(b.Current)).
		AddField("temperature", round3(b.Temperature)).
		AddField("internal_resistance", b.R0).
		AddField("polarization_voltage", round3(b.Vp)).
		AddField("health", round3(t.Health.Health)).
		AddField("cycle_count", t.Health.CycleCount).
		AddField("rul", round3(t.EstimatedRUL)).
		SetTime(t.Timestamp)
	if t.SessionID != "" {
		p = p.AddTag("session_id", t.SessionID)
	}
	if t.Parameters != nil {
		p = p.AddTag("strategy", string(t.Parameters.Strategy)).
			AddField("cc_setpoint", round3(t.Parameters.CCCurrent)).
			AddField("cv_setpoint", round3(t.Parameters.CVVoltage))
	}
	return p
}

func transitionPoint(ev coremetrics.PhaseTransitionEvent) *write.Point {
	return write.NewPointWithMeasurement("phase_transition").
		AddTag("session_id", ev.SessionID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddField("soc", round3(ev.SoC)).
		AddField("temperature", round3(ev.Temperature)).
		SetTime(ev.Time)
}

func sessionPoint(sess model.ChargingSession) *write.Point {
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("session_id", sess.ID).
		AddTag("rul_optimized", strconv.FormatBool(sess.RULOptimized)).
		AddField("duration_s", round3(sess.Duration().Seconds())).
		AddField("initial_soc", round3(sess.InitialSoC)).
		AddField("soc_gain", round3(sess.SoCGain())).
		AddField("max_temperature", round3(sess.MaxTemperature)).
		AddField("phases", len(sess.Phases))
	if sess.FinalSoC != nil {
		p = p.AddField("final_soc", round3(*sess.FinalSoC))
	}
	return p.SetTime(*sess.EndTime)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
