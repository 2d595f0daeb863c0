// Package scenarios replays YAML charging scenarios against the simulation
// core and checks the outcome.
package scenarios

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/sim"
)

// PredictorDef configures a fixed RUL predictor. Omitted means unavailable.
type PredictorDef struct {
	Available bool    `yaml:"available"`
	Cycles    float64 `yaml:"cycles"`
}

// Step either sends a command or advances the clock. Until "idle" ticks
// until neither charging nor discharging, bounded by MaxTicks.
type Step struct {
	Action   string         `yaml:"action,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
	ExpectOK *bool          `yaml:"expect_ok,omitempty"`
	Ticks    int            `yaml:"ticks,omitempty"`
	Until    string         `yaml:"until,omitempty"`
	MaxTicks int            `yaml:"max_ticks,omitempty"`
}

// Command converts an action step.
func (s Step) Command() (sim.Command, error) {
	cmd := sim.Command{Action: s.Action}
	if len(s.Params) > 0 {
		raw, err := json.Marshal(s.Params)
		if err != nil {
			return cmd, err
		}
		cmd.Params = raw
	}
	return cmd, nil
}

// Expected lists the checks applied after the last step. Nil fields are
// skipped.
type Expected struct {
	Sessions       *int               `yaml:"sessions,omitempty"`
	Phases         []string           `yaml:"phases,omitempty"`
	MinFinalSoC    *float64           `yaml:"min_final_soc,omitempty"`
	MaxFinalSoC    *float64           `yaml:"max_final_soc,omitempty"`
	MaxTemperature *float64           `yaml:"max_temperature,omitempty"`
	RULSource      string             `yaml:"rul_source,omitempty"`
	Strategy       string             `yaml:"strategy,omitempty"`
	Idle           *bool              `yaml:"idle,omitempty"`
	Metrics        map[string]float64 `yaml:"metrics,omitempty"`
}

// Scenario is one replayable run.
type Scenario struct {
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description,omitempty"`
	InitialSoC   *float64            `yaml:"initial_soc,omitempty"`
	RULOptimized bool                `yaml:"rul_optimized,omitempty"`
	StepSeconds  float64             `yaml:"step_seconds,omitempty"`
	Battery      battery.ParamUpdate `yaml:"-"`
	BatteryRaw   map[string]float64  `yaml:"battery,omitempty"`
	Predictor    *PredictorDef       `yaml:"predictor,omitempty"`
	Steps        []Step              `yaml:"steps"`
	Expected     Expected            `yaml:"expected"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if sc.StepSeconds <= 0 {
		sc.StepSeconds = 10
	}
	if len(sc.BatteryRaw) > 0 {
		raw, err := json.Marshal(sc.BatteryRaw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &sc.Battery); err != nil {
			return nil, fmt.Errorf("%s: battery: %w", path, err)
		}
	}
	for i, st := range sc.Steps {
		if (st.Action == "") == (st.Ticks == 0 && st.Until == "") {
			return nil, fmt.Errorf("%s: step %d needs exactly one of action or ticks/until", path, i)
		}
		if st.Until != "" && st.Until != "idle" {
			return nil, fmt.Errorf("%s: step %d: unknown until %q", path, i, st.Until)
		}
	}
	return &sc, nil
}
