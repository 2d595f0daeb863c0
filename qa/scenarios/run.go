package scenarios

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/prediction"
	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/logger"
	"github.com/kilianp07/battsim/infra/metrics"
)

// DefaultMaxTicks bounds an "until" step without max_ticks.
const DefaultMaxTicks = 20000

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is the observable outcome of a scenario run.
type Result struct {
	Final    model.Telemetry
	Sessions []model.ChargingSession
	Events   []model.SessionEvent
	MaxTemp  float64
	Registry *prometheus.Registry
}

type recorder struct {
	sink   coremetrics.MetricsSink
	res    *Result
	errors []error
}

func (r *recorder) RecordSessionEvent(ev model.SessionEvent) {
	r.res.Events = append(r.res.Events, ev)
	if ev.Kind == model.SessionClosed {
		r.res.Sessions = append(r.res.Sessions, ev.Session)
	}
	if err := coremetrics.RecordSessionEvent(r.sink, ev); err != nil {
		r.errors = append(r.errors, err)
	}
}

// Run replays sc on a fresh SimulationContext with an isolated Prometheus
// registry.
func Run(sc *Scenario) (*Result, error) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		return nil, fmt.Errorf("prom sink: %w", err)
	}
	res := &Result{Registry: reg}
	rec := &recorder{sink: sink, res: res}

	cfg := sim.DefaultConfig()
	if sc.InitialSoC != nil {
		cfg.InitialSoC = *sc.InitialSoC
	}
	cfg.RULOptimized = sc.RULOptimized
	var pred prediction.Predictor = prediction.Unavailable{}
	if sc.Predictor != nil {
		pred = &prediction.MockPredictor{Available: sc.Predictor.Available, Cycles: sc.Predictor.Cycles}
	}
	c := sim.New(cfg,
		sim.WithStartTime(epoch),
		sim.WithPredictor(pred),
		sim.WithRecorder(rec),
		sim.WithLogger(logger.NopLogger{}),
	)
	if !sc.Battery.Empty() {
		c.UpdateParams(sc.Battery)
	}

	tick := func() model.Telemetry {
		t := c.Tick(sc.StepSeconds)
		if t.Battery.Temperature > res.MaxTemp {
			res.MaxTemp = t.Battery.Temperature
		}
		if err := sink.RecordTelemetry(t); err != nil {
			rec.errors = append(rec.errors, err)
		}
		return t
	}

	res.Final = c.GetState()
	for i, st := range sc.Steps {
		switch {
		case st.Action != "":
			cmd, err := st.Command()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			out, err := c.Apply(cmd)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			if st.ExpectOK != nil && out.OK != *st.ExpectOK {
				return nil, fmt.Errorf("step %d: %s returned ok=%t", i, st.Action, out.OK)
			}
			res.Final = c.GetState()
		case st.Until == "idle":
			limit := st.MaxTicks
			if limit <= 0 {
				limit = DefaultMaxTicks
			}
			n := 0
			for ; n < limit; n++ {
				res.Final = tick()
				if !res.Final.IsCharging && !res.Final.IsDischarging {
					break
				}
			}
			if n == limit {
				return nil, fmt.Errorf("step %d: still active after %d ticks", i, limit)
			}
		default:
			for n := 0; n < st.Ticks; n++ {
				res.Final = tick()
			}
		}
	}
	if len(rec.errors) > 0 {
		return res, fmt.Errorf("metrics: %v", rec.errors[0])
	}
	return res, nil
}

// Check compares res with the expectations and returns every mismatch.
func Check(sc *Scenario, res *Result) []string {
	var fails []string
	failf := func(format string, args ...any) { fails = append(fails, fmt.Sprintf(format, args...)) }
	e := sc.Expected
	soc := res.Final.Battery.SoC

	if e.Sessions != nil && len(res.Sessions) != *e.Sessions {
		failf("sessions: want %d, got %d", *e.Sessions, len(res.Sessions))
	}
	if len(e.Phases) > 0 {
		if len(res.Sessions) == 0 {
			failf("phases: no closed session")
		} else if got := phasesOf(res.Sessions[len(res.Sessions)-1]); !equal(got, e.Phases) {
			failf("phases: want %v, got %v", e.Phases, got)
		}
	}
	if e.MinFinalSoC != nil && soc < *e.MinFinalSoC {
		failf("final soc %.3f below %.3f", soc, *e.MinFinalSoC)
	}
	if e.MaxFinalSoC != nil && soc > *e.MaxFinalSoC {
		failf("final soc %.3f above %.3f", soc, *e.MaxFinalSoC)
	}
	if e.MaxTemperature != nil && res.MaxTemp > *e.MaxTemperature {
		failf("temperature peaked at %.2f, limit %.2f", res.MaxTemp, *e.MaxTemperature)
	}
	if e.RULSource != "" && res.Final.RULSource != e.RULSource {
		failf("rul source: want %s, got %s", e.RULSource, res.Final.RULSource)
	}
	if e.Strategy != "" {
		if res.Final.Parameters == nil {
			failf("strategy: no adjusted parameters")
		} else if got := string(res.Final.Parameters.Strategy); got != e.Strategy {
			failf("strategy: want %s, got %s", e.Strategy, got)
		}
	}
	if e.Idle != nil {
		idle := !res.Final.IsCharging && !res.Final.IsDischarging
		if idle != *e.Idle {
			failf("idle: want %t, got %t", *e.Idle, idle)
		}
	}
	for name, want := range e.Metrics {
		got, err := metricValue(res.Registry, name)
		if err != nil {
			failf("metric %s: %v", name, err)
			continue
		}
		if math.Abs(got-want) > 1e-9 {
			failf("metric %s: want %g, got %g", name, want, got)
		}
	}
	return fails
}

func phasesOf(s model.ChargingSession) []string {
	out := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		out[i] = string(p.Phase)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// metricValue sums every series of a counter or gauge family, or the
// sample count of a histogram.
func metricValue(reg prometheus.Gatherer, name string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range f.GetMetric() {
			sum += sampleOf(f.GetType(), m)
		}
		return sum, nil
	}
	return 0, fmt.Errorf("not found")
}

func sampleOf(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}
