// Package sessiontest provides a conformance suite for session.Store
// implementations.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/session"
)

// Base is the start time of the first fixture session.
var Base = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

// Closed builds a closed fixture session starting i hours after Base.
func Closed(i int, initial, final float64) model.ChargingSession {
	start := Base.Add(time.Duration(i) * time.Hour)
	ccEnd := start.Add(20 * time.Minute)
	end := start.Add(30 * time.Minute)
	temp := 31.5
	return model.ChargingSession{
		ID:                 fmt.Sprintf("s-%02d", i),
		StartTime:          start,
		EndTime:            &end,
		InitialSoC:         initial,
		FinalSoC:           &final,
		InitialTemperature: 25,
		FinalTemperature:   &temp,
		MaxTemperature:     40,
		InitialR0:          0.1,
		InitialR1:          0.05,
		Phases: []model.PhaseRecord{
			{Phase: model.PhaseCC, StartTime: start, EndTime: &ccEnd, InitialSoC: initial, Targets: model.PhaseTargets{CCCurrent: 80}},
			{Phase: model.PhaseCV, StartTime: ccEnd, EndTime: &end, InitialSoC: initial + 20, Targets: model.PhaseTargets{CVVoltage: 400}},
		},
	}
}

// Run exercises a Store created by open.
func Run(t *testing.T, open func(t *testing.T) session.Store) {
	ctx := context.Background()

	t.Run("SaveGetUpsert", func(t *testing.T) {
		st := open(t)
		s := Closed(0, 20, 80)
		running := s.Clone()
		running.EndTime, running.FinalSoC, running.FinalTemperature = nil, nil, nil
		running.Phases = running.Phases[:1]
		running.Phases[0].EndTime = nil
		require.NoError(t, st.Save(ctx, running))

		got, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, got.Closed())
		assert.Len(t, got.Phases, 1)

		require.NoError(t, st.Save(ctx, s))
		got, err = st.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, got.Closed())
		assert.True(t, s.StartTime.Equal(got.StartTime))
		assert.InDelta(t, 80, *got.FinalSoC, 1e-9)
		assert.Len(t, got.Phases, 2)
		assert.Equal(t, 400.0, got.Phases[1].Targets.CVVoltage)

		all, err := st.List(ctx, session.Query{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetMissing", func(t *testing.T) {
		st := open(t)
		_, err := st.Get(ctx, "nope")
		assert.True(t, errors.Is(err, session.ErrNotFound))
	})

	t.Run("ListFilters", func(t *testing.T) {
		st := open(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, st.Save(ctx, Closed(i, 10, 90)))
		}
		running := Closed(5, 30, 0)
		running.ID = "running"
		running.EndTime, running.FinalSoC = nil, nil
		require.NoError(t, st.Save(ctx, running))

		all, err := st.List(ctx, session.Query{})
		require.NoError(t, err)
		require.Len(t, all, 6)
		assert.Equal(t, "running", all[0].ID)
		assert.Equal(t, "s-00", all[5].ID)

		recent, err := st.List(ctx, session.Query{Limit: 2, ClosedOnly: true})
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "s-04", recent[0].ID)
		assert.Equal(t, "s-03", recent[1].ID)

		window, err := st.List(ctx, session.Query{Start: Base.Add(time.Hour), End: Base.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, window, 3)
	})

	t.Run("Delete", func(t *testing.T) {
		st := open(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, st.Save(ctx, Closed(i, 10, 90)))
		}
		n, err := st.Delete(ctx, "s-00", "missing")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = st.Get(ctx, "s-00")
		assert.True(t, errors.Is(err, session.ErrNotFound))

		n, err = st.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		all, err := st.List(ctx, session.Query{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
