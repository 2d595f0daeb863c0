package session

import (
	"context"
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// PhaseStats aggregates the records of one phase.
type PhaseStats struct {
	Count         int           `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	AvgSoCStart   float64       `json:"avg_soc_start"`
}

// Stats summarises closed sessions.
type Stats struct {
	Sessions       int                        `json:"sessions"`
	TotalDuration  time.Duration              `json:"total_duration"`
	AvgDuration    time.Duration              `json:"avg_duration"`
	AvgSoCGain     float64                    `json:"avg_soc_gain"`
	AvgTemperature float64                    `json:"avg_initial_temperature"`
	MaxTemperature float64                    `json:"max_temperature"`
	First          time.Time                  `json:"first,omitempty"`
	Last           time.Time                  `json:"last,omitempty"`
	Phases         map[model.Phase]PhaseStats `json:"phases"`
}

// Compute aggregates the closed sessions in s.
func Compute(s []model.ChargingSession) Stats {
	st := Stats{Phases: make(map[model.Phase]PhaseStats)}
	var gain, temp float64
	socStart := make(map[model.Phase]float64)
	for _, sess := range s {
		if !sess.Closed() {
			continue
		}
		st.Sessions++
		st.TotalDuration += sess.Duration()
		gain += sess.SoCGain()
		temp += sess.InitialTemperature
		if sess.MaxTemperature > st.MaxTemperature {
			st.MaxTemperature = sess.MaxTemperature
		}
		if st.First.IsZero() || sess.StartTime.Before(st.First) {
			st.First = sess.StartTime
		}
		if sess.StartTime.After(st.Last) {
			st.Last = sess.StartTime
		}
		for _, rec := range sess.Phases {
			ps := st.Phases[rec.Phase]
			ps.Count++
			ps.TotalDuration += rec.Duration()
			socStart[rec.Phase] += rec.InitialSoC
			st.Phases[rec.Phase] = ps
		}
	}
	if st.Sessions == 0 {
		return st
	}
	st.AvgDuration = st.TotalDuration / time.Duration(st.Sessions)
	st.AvgSoCGain = gain / float64(st.Sessions)
	st.AvgTemperature = temp / float64(st.Sessions)
	for p, ps := range st.Phases {
		ps.AvgDuration = ps.TotalDuration / time.Duration(ps.Count)
		ps.AvgSoCStart = socStart[p] / float64(ps.Count)
		st.Phases[p] = ps
	}
	return st
}

// Statistics loads the sessions matching q from store and aggregates them.
func Statistics(ctx context.Context, store Store, q Query) (Stats, error) {
	q.ClosedOnly = true
	s, err := store.List(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	return Compute(s), nil
}
