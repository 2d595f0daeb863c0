package prediction

import (
	"errors"

	"github.com/kilianp07/battsim/core/model"
)

// ErrUnavailable reports that no estimate can be produced.
var ErrUnavailable = errors.New("prediction: predictor unavailable")

// LifeCycles is the nominal pack life used to convert cycles to percent.
const LifeCycles = 1000

// StaticFeatures are the slow-moving inputs passed alongside the history.
type StaticFeatures struct {
	CycleCount     float64 `json:"cycle_count"`
	Health         float64 `json:"health"`
	AvgTemperature float64 `json:"avg_temperature"`
}

// Estimate is a predictor result.
type Estimate struct {
	RemainingCycles float64 `json:"remaining_cycles"`
}

// Percentage converts the estimate to percent of LifeCycles, clamped to
// [0,100].
func (e Estimate) Percentage() float64 {
	p := e.RemainingCycles * 100 / LifeCycles
	switch {
	case p != p || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Predictor estimates the remaining useful life of the pack.
type Predictor interface {
	// IsAvailable reports whether Predict can currently be called.
	IsAvailable() bool
	// Predict returns an estimate or ErrUnavailable.
	Predict(history []model.Sample, features StaticFeatures) (Estimate, error)
}

// Unavailable is a Predictor that never produces an estimate.
type Unavailable struct{}

func (Unavailable) IsAvailable() bool { return false }

func (Unavailable) Predict([]model.Sample, StaticFeatures) (Estimate, error) {
	return Estimate{}, ErrUnavailable
}
