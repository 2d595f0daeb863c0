// Package app wires the simulation core to its storage, metrics, MQTT and
// WebSocket adapters and drives it from a wall-clock ticker.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/battsim/config"
	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/prediction"
	"github.com/kilianp07/battsim/core/session"
	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/logger"
	"github.com/kilianp07/battsim/infra/metrics"
	"github.com/kilianp07/battsim/infra/mqtt"
	infraprediction "github.com/kilianp07/battsim/infra/prediction"
	"github.com/kilianp07/battsim/infra/store"
	"github.com/kilianp07/battsim/infra/ws"
	"github.com/kilianp07/battsim/internal/eventbus"
)

// ActionSetTimeAcceleration changes the simulated seconds per wall-clock
// second. It is handled by the service, not the simulation core.
const ActionSetTimeAcceleration = "set_time_acceleration"

// ErrNotRunning is returned by HandleCommand after Run has returned.
var ErrNotRunning = errors.New("app: service not running")

// Publisher forwards telemetry and session events to a transport.
type Publisher interface {
	PublishTelemetry(model.Telemetry) error
	PublishSessionEvent(model.SessionEvent) error
}

// Option customises a Service. Options override the matching config section.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithStore replaces the configured session store.
func WithStore(st session.Store) Option { return func(s *Service) { s.store = st } }

// WithPredictor replaces the configured RUL predictor.
func WithPredictor(p prediction.Predictor) Option { return func(s *Service) { s.predictor = p } }

// WithSink replaces the configured metrics sinks.
func WithSink(m coremetrics.MetricsSink) Option { return func(s *Service) { s.sink = m } }

type accelParams struct {
	Factor float64 `json:"factor"`
}

type commandReply struct {
	res sim.Result
	err error
}

type commandRequest struct {
	cmd   sim.Command
	reply chan commandReply
}

// Service owns the SimulationContext. Only the Run goroutine touches it;
// commands reach it through a channel.
type Service struct {
	cfg       config.SchedulerConfig
	promAddr  string
	sim       *sim.SimulationContext
	store     session.Store
	recorder  *store.AsyncRecorder
	predictor prediction.Predictor
	sink      coremetrics.MetricsSink
	publisher Publisher
	mqtt      *mqtt.PahoClient
	wsCfg     ws.Config
	hub       *ws.Hub

	telemetry *eventbus.TypedBus[model.Telemetry]
	sessions  *eventbus.TypedBus[model.SessionEvent]
	commands  chan commandRequest
	stopped   chan struct{}
	log       logger.Logger

	accel float64
	ticks int
}

// busRecorder publishes session events on the bus and queues them for
// persistence.
type busRecorder struct {
	bus   *eventbus.TypedBus[model.SessionEvent]
	store *store.AsyncRecorder
}

func (r busRecorder) RecordSessionEvent(ev model.SessionEvent) {
	r.bus.Publish(ev)
	r.store.RecordSessionEvent(ev)
}

// New creates a Service from the configuration. An MQTT client is connected
// when cfg.MQTT.Broker is set and no publisher option is given.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:       cfg.Scheduler,
		promAddr:  cfg.Metrics.PrometheusAddr,
		telemetry: eventbus.NewTyped[model.Telemetry](eventbus.WithBuffer(32)),
		sessions:  eventbus.NewTyped[model.SessionEvent](eventbus.WithBuffer(32)),
		commands:  make(chan commandRequest),
		stopped:   make(chan struct{}),
		log:       logger.New("service"),
		accel:     cfg.Scheduler.TimeAcceleration,
		wsCfg:     cfg.WebSocket,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.SetDefaults()
	if s.accel <= 0 {
		s.accel = s.cfg.TimeAcceleration
	}

	var err error
	if s.store == nil {
		if s.store, err = store.New(cfg.Store.Module()); err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
	}
	if s.predictor == nil {
		if s.predictor, err = infraprediction.New(cfg.Predictor); err != nil {
			return nil, fmt.Errorf("predictor: %w", err)
		}
	}
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if s.publisher == nil && cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT, s.HandleCommand)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.mqtt = client
		s.publisher = client
	}

	if s.wsCfg.Addr != "" {
		s.hub = ws.NewHub()
	}

	s.recorder = store.NewAsyncRecorder(s.store, cfg.Store.QueueSize, logger.New("session_store"))
	s.sim = sim.New(cfg.Simulation,
		sim.WithPredictor(s.predictor),
		sim.WithRecorder(busRecorder{bus: s.sessions, store: s.recorder}),
		sim.WithLogger(logger.New("simulation")),
	)
	return s, nil
}

// Telemetry returns the live telemetry stream.
func (s *Service) Telemetry() *eventbus.TypedBus[model.Telemetry] { return s.telemetry }

// SessionEvents returns the live session event stream.
func (s *Service) SessionEvents() *eventbus.TypedBus[model.SessionEvent] { return s.sessions }

// Hub returns the WebSocket hub, nil when the server is disabled.
func (s *Service) Hub() *ws.Hub { return s.hub }

// Store returns the session store.
func (s *Service) Store() session.Store { return s.store }

// Run starts the consumers and the simulation loop and blocks until ctx is
// cancelled. An open session is closed on the way out and every queued
// session write is flushed before Run returns.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.stopped)
	recCtx, stopRecorder := context.WithCancel(context.Background())
	go s.recorder.Run(recCtx)

	// Subscribe before the loop so no event published by a command is
	// missed. The consumers run until unsubscribed, which happens after the
	// final Stop, and drain what is buffered.
	telSub := s.telemetry.Subscribe()
	sesSub := s.sessions.Subscribe()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for t := range telSub {
			s.onTelemetry(t)
		}
	}()
	go func() {
		defer wg.Done()
		for ev := range sesSub {
			s.onSessionEvent(ev)
		}
	}()
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr, prometheus.DefaultGatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.hub != nil {
		go func() {
			if err := ws.Serve(ctx, s.wsCfg, ws.NewHandler(s.hub, s.HandleCommand)); err != nil {
				s.log.Errorf("ws server: %v", err)
			}
		}()
	}

	s.log.Infof("simulation loop started: interval=%s acceleration=%.1f", s.cfg.UpdateInterval, s.accel)
	if s.cfg.AutoStart {
		if id, ok := s.sim.StartCharging(); ok {
			s.log.Infof("auto start: charging session %s", id)
		}
	}
	s.loop(ctx)
	if s.sim.Stop() {
		s.log.Infof("closed active session on shutdown")
	}
	s.log.Infof("simulation loop stopped after %d ticks", s.ticks)

	s.telemetry.Unsubscribe(telSub)
	s.sessions.Unsubscribe(sesSub)
	wg.Wait()
	stopRecorder()
	<-s.recorder.Done()
	if d := s.recorder.Dropped(); d > 0 {
		s.log.Warnf("%d session events dropped", d)
	}
	return nil
}

func (s *Service) loop(ctx context.Context) {
	t := time.NewTicker(s.cfg.UpdateInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.commands:
			res, err := s.apply(req.cmd)
			req.reply <- commandReply{res: res, err: err}
		case <-t.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	tel := s.sim.Tick(s.cfg.UpdateInterval.Seconds() * s.accel)
	s.ticks++
	if s.ticks%10 == 0 {
		s.log.Debugw("battery state", map[string]any{
			"tick":        s.ticks,
			"soc":         tel.Battery.SoC,
			"voltage":     tel.Battery.Voltage,
			"current":     tel.Battery.Current,
			"temperature": tel.Battery.Temperature,
			"phase":       tel.Phase,
		})
	}
	s.publishState(tel)
}

func (s *Service) publishState(tel model.Telemetry) {
	tel.TimeAcceleration = s.accel
	s.telemetry.Publish(tel)
}

func (s *Service) apply(cmd sim.Command) (sim.Result, error) {
	var (
		res sim.Result
		err error
	)
	if cmd.Action == ActionSetTimeAcceleration {
		res, err = s.setAcceleration(cmd)
	} else {
		res, err = s.sim.Apply(cmd)
	}
	if err == nil {
		s.publishState(s.sim.GetState())
	}
	return res, err
}

func (s *Service) setAcceleration(cmd sim.Command) (sim.Result, error) {
	res := sim.Result{Action: cmd.Action}
	var p accelParams
	if len(cmd.Params) == 0 {
		return res, fmt.Errorf("%s: missing params", cmd.Action)
	}
	if err := json.Unmarshal(cmd.Params, &p); err != nil {
		return res, fmt.Errorf("%s: decode params: %w", cmd.Action, err)
	}
	if p.Factor <= 0 || p.Factor > config.MaxTimeAcceleration {
		return res, fmt.Errorf("%s: factor %.2f outside (0,%d]", cmd.Action, p.Factor, config.MaxTimeAcceleration)
	}
	s.accel = p.Factor
	s.log.Infof("time acceleration set to %.1f", p.Factor)
	res.OK = true
	return res, nil
}

// HandleCommand queues cmd for the simulation loop and waits for its result.
// It is safe to call from any goroutine.
func (s *Service) HandleCommand(ctx context.Context, cmd sim.Command) (sim.Result, error) {
	reply := make(chan commandReply, 1)
	select {
	case s.commands <- commandRequest{cmd: cmd, reply: reply}:
	case <-s.stopped:
		return sim.Result{Action: cmd.Action}, ErrNotRunning
	case <-ctx.Done():
		return sim.Result{Action: cmd.Action}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return sim.Result{Action: cmd.Action}, ctx.Err()
	}
}

func (s *Service) onTelemetry(t model.Telemetry) {
	if err := s.sink.RecordTelemetry(t); err != nil {
		s.log.Warnf("metrics sink: %v", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishTelemetry(t); err != nil {
			s.log.Warnf("publish telemetry: %v", err)
		}
	}
	if s.hub != nil {
		if err := s.hub.PublishTelemetry(t); err != nil {
			s.log.Warnf("ws telemetry: %v", err)
		}
	}
}

func (s *Service) onSessionEvent(ev model.SessionEvent) {
	if err := coremetrics.RecordSessionEvent(s.sink, ev); err != nil {
		s.log.Warnf("metrics sink: %v", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSessionEvent(ev); err != nil {
			s.log.Warnf("publish session event: %v", err)
		}
	}
	if s.hub != nil {
		if err := s.hub.PublishSessionEvent(ev); err != nil {
			s.log.Warnf("ws session event: %v", err)
		}
	}
}

// Close releases the MQTT connection, the metrics sinks and the store.
func (s *Service) Close() error {
	s.telemetry.Close()
	s.sessions.Close()
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	var errs []error
	if c, ok := s.sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
