package prediction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/factory"
	"github.com/kilianp07/battsim/core/model"
	core "github.com/kilianp07/battsim/core/prediction"
)

type slowPredictor struct {
	delay time.Duration
	done  chan struct{}
}

func (s slowPredictor) IsAvailable() bool { return true }

func (s slowPredictor) Predict([]model.Sample, core.StaticFeatures) (core.Estimate, error) {
	select {
	case <-time.After(s.delay):
	case <-s.done:
	}
	return core.Estimate{RemainingCycles: 500}, nil
}

func TestTimeoutPassesFastResults(t *testing.T) {
	p := WithTimeout(&core.MockPredictor{Available: true, Cycles: 800}, time.Second, time.Minute, nil)
	est, err := p.Predict(make([]model.Sample, 5), core.StaticFeatures{})
	require.NoError(t, err)
	assert.Equal(t, 80.0, est.Percentage())
	assert.True(t, p.IsAvailable())
}

func TestTimeoutReturnsUnavailableAndPauses(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	p := WithTimeout(slowPredictor{delay: time.Minute, done: done}, 10*time.Millisecond, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, err := p.Predict(nil, core.StaticFeatures{})
	assert.True(t, errors.Is(err, core.ErrUnavailable))
	assert.False(t, p.IsAvailable())

	now = now.Add(2 * time.Minute)
	assert.True(t, p.IsAvailable())
}

func TestTimeoutPropagatesErrors(t *testing.T) {
	boom := errors.New("model crashed")
	p := WithTimeout(&core.MockPredictor{Available: true, Err: boom}, time.Second, 0, nil)
	_, err := p.Predict(nil, core.StaticFeatures{})
	assert.True(t, errors.Is(err, boom))
	assert.True(t, p.IsAvailable())
}

func TestNewFromConfig(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, p.IsAvailable())

	p, err = New(Config{
		Type:    "linear",
		Conf:    map[string]any{"min_samples": 2},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	require.IsType(t, &Timeout{}, p)
	est, err := p.Predict(make([]model.Sample, 2), core.StaticFeatures{Health: 90, AvgTemperature: 25})
	require.NoError(t, err)
	assert.InDelta(t, 900, est.RemainingCycles, 1e-9)

	_, err = New(Config{Type: "lstm"})
	assert.True(t, errors.Is(err, factory.ErrUnknownType))
}
