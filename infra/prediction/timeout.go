// Package prediction provides predictor adapters: a deadline wrapper for
// slow inference backends and a factory registry for configured predictors.
package prediction

import (
	"sync"
	"time"

	"github.com/kilianp07/battsim/core/logger"
	"github.com/kilianp07/battsim/core/model"
	core "github.com/kilianp07/battsim/core/prediction"
)

// Timeout bounds every Predict call of the wrapped predictor. A call that
// misses the deadline returns core.ErrUnavailable and the predictor reports
// itself unavailable for the cooldown period.
type Timeout struct {
	inner    core.Predictor
	limit    time.Duration
	cooldown time.Duration
	log      logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	pausedTill time.Time
}

// WithTimeout wraps p. A non-positive limit disables the deadline.
func WithTimeout(p core.Predictor, limit, cooldown time.Duration, log logger.Logger) *Timeout {
	return &Timeout{inner: p, limit: limit, cooldown: cooldown, log: logger.OrNop(log), now: time.Now}
}

func (t *Timeout) IsAvailable() bool {
	t.mu.Lock()
	paused := t.now().Before(t.pausedTill)
	t.mu.Unlock()
	return !paused && t.inner.IsAvailable()
}

func (t *Timeout) Predict(history []model.Sample, f core.StaticFeatures) (core.Estimate, error) {
	if t.limit <= 0 {
		return t.inner.Predict(history, f)
	}
	type result struct {
		est core.Estimate
		err error
	}
	// The history slice is owned by the caller; the worker gets its own copy.
	hist := append([]model.Sample(nil), history...)
	ch := make(chan result, 1)
	go func() {
		est, err := t.inner.Predict(hist, f)
		ch <- result{est, err}
	}()
	timer := time.NewTimer(t.limit)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.est, r.err
	case <-timer.C:
		t.mu.Lock()
		t.pausedTill = t.now().Add(t.cooldown)
		t.mu.Unlock()
		t.log.Warnf("predictor exceeded %s, pausing for %s", t.limit, t.cooldown)
		return core.Estimate{}, core.ErrUnavailable
	}
}
