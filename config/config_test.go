package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `simulation:
  initial_soc: 35
  rul_optimized: true
  battery:
    capacity: 60
  charging:
    discharge_cutoff_soc: 10
scheduler:
  update_interval: 500ms
  time_acceleration: 60
store:
  backend: sqlite
  path: /tmp/battsim.db
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "nop"
mqtt:
  broker: "tcp://localhost:1883"
  topic_prefix: "lab/pack1"
  qos:
    telemetry: 1
predictor:
  type: linear
  timeout: 2s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"initial_soc", cfg.Simulation.InitialSoC, 35.0},
		{"rul_optimized", cfg.Simulation.RULOptimized, true},
		{"capacity", cfg.Simulation.Battery.Capacity, 60.0},
		{"max_voltage default kept", cfg.Simulation.Battery.MaxVoltage, 400.0},
		{"cutoff", cfg.Simulation.Charging.DischargeCutoffSoC, 10.0},
		{"cc_to_cv default kept", cfg.Simulation.Charging.CCToCVVoltage, 395.0},
		{"interval", cfg.Scheduler.UpdateInterval, 500 * time.Millisecond},
		{"acceleration", cfg.Scheduler.TimeAcceleration, 60.0},
		{"store", cfg.Store.Backend, "sqlite"},
		{"store path", cfg.Store.Path, "/tmp/battsim.db"},
		{"queue default", cfg.Store.QueueSize, 64},
		{"prom", cfg.Metrics.PrometheusAddr, ":9100"},
		{"sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"prefix", cfg.MQTT.TopicPrefix, "lab/pack1"},
		{"qos", cfg.MQTT.QoS["telemetry"], byte(1)},
		{"predictor timeout", cfg.Predictor.Timeout, 2 * time.Second},
		{"level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeFile(t, "config.json", `{"scheduler":{"time_acceleration":5},"store":{"backend":"jsonl"}}`)
	t.Setenv("BATTSIM_SCHEDULER__TIME_ACCELERATION", "120")
	t.Setenv("BATTSIM_SIMULATION__INITIAL_SOC", "50")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Scheduler.TimeAcceleration)
	assert.Equal(t, 50.0, cfg.Simulation.InitialSoC)
	assert.Equal(t, "sessions.jsonl", cfg.Store.Path)
	assert.Equal(t, time.Second, cfg.Scheduler.UpdateInterval)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Simulation, cfg.Simulation)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "linear", cfg.Predictor.Type)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "x = 1"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cases := map[string]string{
		"soc":     "simulation:\n  initial_soc: 140\n",
		"backend": "store:\n  backend: redis\n",
		"accel":   "scheduler:\n  time_acceleration: 100000\n",
		"level":   "logging:\n  level: chatty\n",
		"volts":   "simulation:\n  battery:\n    min_voltage: 500\n",
		"ws_path": "websocket:\n  path: ws\n",
		"sink":    "metrics:\n  sinks:\n    - conf: {}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}
}

func TestStoreModule(t *testing.T) {
	c := StoreConfig{Backend: "sqlite"}
	c.SetDefaults()
	m := c.Module()
	assert.Equal(t, "sqlite", m.Type)
	assert.Equal(t, "sessions.db", m.Conf["path"])
}
