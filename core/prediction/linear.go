package prediction

import (
	"math"

	"github.com/kilianp07/battsim/core/model"
)

// Linear is a heuristic predictor: remaining life scales with health and
// is derated for every degree the average temperature exceeds HotThreshold.
type Linear struct {
	MinSamples   int
	HotThreshold float64 // °C
	HotDerating  float64 // fraction per °C
}

// NewLinear returns a Linear predictor with a 5 sample minimum and a 1%/°C
// derating above 35 °C.
func NewLinear() Linear {
	return Linear{MinSamples: 5, HotThreshold: 35, HotDerating: 0.01}
}

func (Linear) IsAvailable() bool { return true }

func (l Linear) Predict(history []model.Sample, f StaticFeatures) (Estimate, error) {
	if len(history) < l.MinSamples || math.IsNaN(f.Health) {
		return Estimate{}, ErrUnavailable
	}
	cycles := LifeCycles * math.Max(0, f.Health) / 100
	if over := f.AvgTemperature - l.HotThreshold; over > 0 {
		cycles *= math.Max(0, 1-over*l.HotDerating)
	}
	return Estimate{RemainingCycles: cycles}, nil
}
