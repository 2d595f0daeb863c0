package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/model"
)

func TestRunCycle(t *testing.T) {
	log := &sessionLog{}
	c := newContext(WithRecorder(log))

	r, err := c.RunCycle(10, 20000)
	require.NoError(t, err)
	assert.NotEmpty(t, r.SessionID)
	assert.Positive(t, r.ChargeTicks)
	assert.Positive(t, r.DischargeTicks)
	assert.Positive(t, r.ChargeTime)
	assert.Greater(t, r.CycleCount, 0.0)
	assert.LessOrEqual(t, r.Health, 100.0)
	assert.False(t, c.GetState().IsCharging)
	assert.False(t, c.GetState().IsDischarging)

	last, ok := c.LastSession()
	require.True(t, ok)
	assert.Equal(t, r.SessionID, last.ID)
	assert.True(t, last.Closed())
	assert.Equal(t, model.SessionClosed, log.events[len(log.events)-1].Kind)
}

func TestRunCycleBudgetExhausted(t *testing.T) {
	c := newContext()
	_, err := c.RunCycle(1, 3)
	require.ErrorIs(t, err, ErrCycleIncomplete)
	st := c.GetState()
	assert.False(t, st.IsCharging)
	assert.Empty(t, st.SessionID)
}
