// Package config loads the simulator configuration from a YAML or JSON file
// with BATTSIM_ environment overrides applied on top of Default().
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/battsim/core/metrics"
	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/mqtt"
	"github.com/kilianp07/battsim/infra/prediction"
	"github.com/kilianp07/battsim/infra/ws"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: BATTSIM_SCHEDULER__TIME_ACCELERATION=60.
const EnvPrefix = "BATTSIM_"

type Config struct {
	Simulation sim.Config        `json:"simulation"`
	Scheduler  SchedulerConfig   `json:"scheduler"`
	Store      StoreConfig       `json:"store"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Logging    LoggingConfig     `json:"logging"`
	Predictor  prediction.Config `json:"predictor"`
	WebSocket  ws.Config         `json:"websocket"`
}

// Default returns a configuration that runs the reference pack in memory
// with no external services.
func Default() Config {
	cfg := Config{Simulation: sim.DefaultConfig()}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields in every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Store.SetDefaults()
	c.Logging.SetDefaults()
	if c.Predictor.Type == "" {
		c.Predictor.Type = "linear"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := validateSimulation(c.Simulation); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if p := c.WebSocket.Path; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("websocket: path %q must start with /", p)
	}
	return nil
}

// Load reads path, when not empty, and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Path returns the config file named by BATTSIM_CONFIG, or an empty path.
func Path() string { return os.Getenv(EnvPrefix + "CONFIG") }

func validateSimulation(s sim.Config) error {
	b := s.Battery
	switch {
	case !(b.Capacity > 0):
		return fmt.Errorf("battery capacity must be positive")
	case b.MaxVoltage <= b.MinVoltage:
		return fmt.Errorf("battery max_voltage must exceed min_voltage")
	case s.InitialSoC < 0 || s.InitialSoC > 100:
		return fmt.Errorf("initial_soc %.2f outside [0,100]", s.InitialSoC)
	case s.HistorySize < 0:
		return fmt.Errorf("history_size must not be negative")
	}
	return nil
}
