package session

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/battsim/core/model"
)

// MemoryStore keeps sessions in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.ChargingSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.ChargingSession)}
}

func (m *MemoryStore) Save(_ context.Context, s model.ChargingSession) error {
	m.mu.Lock()
	m.sessions[s.ID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.ChargingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.ChargingSession{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]model.ChargingSession, error) {
	m.mu.RLock()
	var out []model.ChargingSession
	for _, s := range m.sessions {
		if q.Match(s) {
			out = append(out, s.Clone())
		}
	}
	m.mu.RUnlock()
	return Limit(SortNewestFirst(out), q.Limit), nil
}

func (m *MemoryStore) Delete(_ context.Context, ids ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]model.ChargingSession)
	m.mu.Unlock()
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

// SortNewestFirst orders sessions by descending start time, then ID.
func SortNewestFirst(s []model.ChargingSession) []model.ChargingSession {
	sort.Slice(s, func(i, j int) bool {
		if s[i].StartTime.Equal(s[j].StartTime) {
			return s[i].ID < s[j].ID
		}
		return s[i].StartTime.After(s[j].StartTime)
	})
	return s
}

// Limit truncates s to n items when n is positive.
func Limit(s []model.ChargingSession, n int) []model.ChargingSession {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
