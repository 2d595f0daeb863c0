package prediction

import (
	"errors"
	"testing"

	"github.com/kilianp07/battsim/core/model"
)

func TestMockPredictor(t *testing.T) {
	m := &MockPredictor{Available: true, Cycles: 800}
	est, err := m.Predict(nil, StaticFeatures{Health: 90})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Percentage() != 80 {
		t.Fatalf("expected 80%% got %v", est.Percentage())
	}
	if m.Calls != 1 || m.Last.Health != 90 {
		t.Fatalf("call not recorded: %+v", m)
	}

	m.Available = false
	if _, err := m.Predict(nil, StaticFeatures{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	var p Predictor = Unavailable{}
	if p.IsAvailable() {
		t.Fatalf("expected unavailable")
	}
	if _, err := p.Predict(nil, StaticFeatures{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
}

func TestEstimatePercentageClamped(t *testing.T) {
	if (Estimate{RemainingCycles: 5000}).Percentage() != 100 {
		t.Fatalf("expected clamp to 100")
	}
	if (Estimate{RemainingCycles: -3}).Percentage() != 0 {
		t.Fatalf("expected clamp to 0")
	}
}

func TestLinearPredictor(t *testing.T) {
	l := NewLinear()
	hist := make([]model.Sample, 5)
	est, err := l.Predict(hist, StaticFeatures{Health: 90, AvgTemperature: 25})
	if err != nil || est.RemainingCycles != 900 {
		t.Fatalf("unexpected estimate %v err %v", est, err)
	}
	est, _ = l.Predict(hist, StaticFeatures{Health: 100, AvgTemperature: 45})
	if est.RemainingCycles != 900 {
		t.Fatalf("expected hot derating, got %v", est.RemainingCycles)
	}
	if _, err := l.Predict(hist[:2], StaticFeatures{Health: 90}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on short history")
	}
}
