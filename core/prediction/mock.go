package prediction

import "github.com/kilianp07/battsim/core/model"

// MockPredictor returns a fixed estimate and records its calls.
type MockPredictor struct {
	Available bool
	Cycles    float64
	Err       error
	Calls     int
	Last      StaticFeatures
}

// IsAvailable returns the configured flag.
func (m *MockPredictor) IsAvailable() bool { return m.Available }

// Predict returns the configured cycles or error.
func (m *MockPredictor) Predict(history []model.Sample, f StaticFeatures) (Estimate, error) {
	_ = history
	m.Calls++
	m.Last = f
	if m.Err != nil {
		return Estimate{}, m.Err
	}
	if !m.Available {
		return Estimate{}, ErrUnavailable
	}
	return Estimate{RemainingCycles: m.Cycles}, nil
}
