// Package session defines the persistence port for charging sessions and
// the storage-independent queries built on it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/battsim/core/model"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session: not found")

// Query filters listed sessions. Zero values disable a filter. Results are
// ordered newest first.
type Query struct {
	Start      time.Time
	End        time.Time
	Limit      int
	ClosedOnly bool
}

// Match reports whether s passes the time and state filters.
func (q Query) Match(s model.ChargingSession) bool {
	if !q.Start.IsZero() && s.StartTime.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && s.StartTime.After(q.End) {
		return false
	}
	if q.ClosedOnly && !s.Closed() {
		return false
	}
	return true
}

// Store persists charging sessions. Save upserts by session ID so the same
// session can be written on open, on each phase change and on close.
type Store interface {
	Save(ctx context.Context, s model.ChargingSession) error
	Get(ctx context.Context, id string) (model.ChargingSession, error)
	List(ctx context.Context, q Query) ([]model.ChargingSession, error)
	Delete(ctx context.Context, ids ...string) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	Close() error
}
