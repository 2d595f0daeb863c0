package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
)

var phases = []model.Phase{model.PhaseNone, model.PhaseCC, model.PhaseCV, model.PhaseTrickle}

// PromSink exposes the latest battery state as gauges and counts charging
// lifecycle events.
type PromSink struct {
	soc         prometheus.Gauge
	voltage     prometheus.Gauge
	current     prometheus.Gauge
	temperature prometheus.Gauge
	resistance  prometheus.Gauge
	health      prometheus.Gauge
	cycles      prometheus.Gauge
	rul         *prometheus.GaugeVec
	phase       *prometheus.GaugeVec
	setpoints   *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	sessions    prometheus.Counter
	duration    prometheus.Histogram
	socGain     prometheus.Histogram
}

// NewPromSink registers the battery metrics on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	gauge := func(name, help string) prometheus.Gauge {
		if err != nil {
			return nil
		}
		var g prometheus.Gauge
		g, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}))
		return g
	}
	s.soc = gauge("battery_soc_percent", "State of charge in percent")
	s.voltage = gauge("battery_voltage_volts", "Terminal voltage")
	s.current = gauge("battery_current_amperes", "Terminal current, positive while charging")
	s.temperature = gauge("battery_temperature_celsius", "Cell temperature")
	s.resistance = gauge("battery_internal_resistance_ohms", "Temperature compensated ohmic resistance")
	s.health = gauge("battery_health_percent", "Health tracker value")
	s.cycles = gauge("battery_cycle_count", "Counted charging cycles")
	if err != nil {
		return nil, err
	}
	if s.rul, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "battery_rul_percent",
		Help: "Estimated remaining useful life in percent",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.phase, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "charging_phase",
		Help: "1 for the active charging phase, 0 otherwise",
	}, []string{"phase"})); err != nil {
		return nil, err
	}
	if s.setpoints, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "charging_setpoint",
		Help: "Charging parameters currently applied",
	}, []string{"parameter"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charging_phase_transitions_total",
		Help: "Total number of charging phase transitions",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "charging_sessions_total",
		Help: "Total number of closed charging sessions",
	})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "charging_session_duration_seconds",
		Help:    "Simulated duration of closed charging sessions",
		Buckets: prometheus.ExponentialBuckets(60, 2, 10),
	})); err != nil {
		return nil, err
	}
	if s.socGain, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "charging_session_soc_gain_percent",
		Help:    "SoC gained per closed charging session",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// RecordTelemetry updates the state gauges.
func (s *PromSink) RecordTelemetry(t model.Telemetry) error {
	b := t.Battery
	s.soc.Set(b.SoC)
	s.voltage.Set(b.Voltage)
	s.current.Set(b.Current)
	s.temperature.Set(b.Temperature)
	s.resistance.Set(b.R0)
	s.health.Set(t.Health.Health)
	s.cycles.Set(float64(t.Health.CycleCount))
	s.rul.Reset()
	s.rul.WithLabelValues(t.RULSource).Set(t.EstimatedRUL)
	for _, p := range phases {
		v := 0.0
		if p == t.Phase {
			v = 1
		}
		s.phase.WithLabelValues(string(p)).Set(v)
	}
	if p := t.Parameters; p != nil {
		s.setpoints.WithLabelValues("cc_current").Set(p.CCCurrent)
		s.setpoints.WithLabelValues("cv_voltage").Set(p.CVVoltage)
		s.setpoints.WithLabelValues("trickle_current").Set(p.TrickleCurrent)
		s.setpoints.WithLabelValues("termination_current").Set(p.TerminationCurrent)
		s.setpoints.WithLabelValues("max_soc").Set(p.MaxSoC)
	}
	return nil
}

// RecordPhaseTransition counts the transition.
func (s *PromSink) RecordPhaseTransition(ev coremetrics.PhaseTransitionEvent) error {
	s.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	return nil
}

// RecordSession counts the closed session and observes its duration and gain.
func (s *PromSink) RecordSession(sess model.ChargingSession) error {
	if !sess.Closed() {
		return nil
	}
	s.sessions.Inc()
	s.duration.Observe(sess.Duration().Seconds())
	s.socGain.Observe(sess.SoCGain())
	return nil
}
