package sim

import (
	"github.com/kilianp07/battsim/core/adaptive"
	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/charging"
	"github.com/kilianp07/battsim/core/health"
	"github.com/kilianp07/battsim/core/history"
)

// Config combines the configuration of every simulation component.
type Config struct {
	Battery             battery.Params  `json:"battery"`
	Charging            charging.Config `json:"charging"`
	Adaptive            adaptive.Config `json:"adaptive"`
	Health              health.Config   `json:"health"`
	InitialSoC          float64         `json:"initial_soc"`
	HistorySize         int             `json:"history_size"`
	RULOptimized        bool            `json:"rul_optimized"`
	MinPredictorHistory int             `json:"min_predictor_history"`
}

// DefaultConfig returns the reference pack starting at 20% SoC.
func DefaultConfig() Config {
	return Config{
		Battery:             battery.DefaultParams(),
		Charging:            charging.DefaultConfig(),
		Adaptive:            adaptive.DefaultConfig(),
		Health:              health.DefaultConfig(),
		InitialSoC:          20,
		HistorySize:         history.DefaultCapacity,
		MinPredictorHistory: 5,
	}
}
