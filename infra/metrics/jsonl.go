package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	coremetrics "github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/model"
)

// JSONLConfig configures the rotating telemetry file. Sizes are in
// megabytes and ages in days.
type JSONLConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// JSONLRecord is one line of the telemetry file.
type JSONLRecord struct {
	Type       string                            `json:"type"`
	Telemetry  *model.Telemetry                  `json:"telemetry,omitempty"`
	Transition *coremetrics.PhaseTransitionEvent `json:"transition,omitempty"`
	Session    *model.ChargingSession            `json:"session,omitempty"`
}

// JSONLSink appends telemetry and lifecycle events to a JSONL file with
// automatic rotation.
type JSONLSink struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *json.Encoder
}

// NewJSONLSink creates the sink and its parent directory.
func NewJSONLSink(cfg JSONLConfig) (*JSONLSink, error) {
	if cfg.Path == "" {
		cfg.Path = "telemetry.jsonl"
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &JSONLSink{out: lj, enc: json.NewEncoder(lj)}, nil
}

func (s *JSONLSink) write(rec JSONLRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(rec)
}

// RecordTelemetry appends a telemetry line.
func (s *JSONLSink) RecordTelemetry(t model.Telemetry) error {
	return s.write(JSONLRecord{Type: "telemetry", Telemetry: &t})
}

// RecordPhaseTransition appends a transition line.
func (s *JSONLSink) RecordPhaseTransition(ev coremetrics.PhaseTransitionEvent) error {
	return s.write(JSONLRecord{Type: "phase_transition", Transition: &ev})
}

// RecordSession appends a session line.
func (s *JSONLSink) RecordSession(sess model.ChargingSession) error {
	return s.write(JSONLRecord{Type: "session", Session: &sess})
}

// Close closes the underlying writer.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
