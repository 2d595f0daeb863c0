package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/session"
)

// JSONLStore appends every saved session snapshot to a JSONL file. The last
// line for an ID wins; deletes rewrite the file without the removed IDs.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Save(_ context.Context, sess model.ChargingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(sess)
}

func (s *JSONLStore) Get(_ context.Context, id string) (model.ChargingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, _, err := s.load()
	if err != nil {
		return model.ChargingSession{}, err
	}
	sess, ok := all[id]
	if !ok {
		return model.ChargingSession{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *JSONLStore) List(_ context.Context, q session.Query) ([]model.ChargingSession, error) {
	s.mu.Lock()
	all, _, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var res []model.ChargingSession
	for _, sess := range all {
		if q.Match(sess) {
			res = append(res, sess)
		}
	}
	return session.Limit(session.SortNewestFirst(res), q.Limit), nil
}

func (s *JSONLStore) Delete(_ context.Context, ids ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, order, err := s.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, ok := all[id]; ok {
			delete(all, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.rewrite(all, order)
}

func (s *JSONLStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, _, err := s.load()
	if err != nil {
		return 0, err
	}
	if err := os.Truncate(s.path, 0); err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *JSONLStore) Close() error { return nil }

// load returns the latest snapshot per ID and the IDs in first-seen order.
func (s *JSONLStore) load() (map[string]model.ChargingSession, []string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	all := make(map[string]model.ChargingSession)
	var order []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var sess model.ChargingSession
		if err := json.Unmarshal(scanner.Bytes(), &sess); err != nil || sess.ID == "" {
			continue
		}
		if _, ok := all[sess.ID]; !ok {
			order = append(order, sess.ID)
		}
		all[sess.ID] = sess
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return all, order, nil
}

func (s *JSONLStore) rewrite(all map[string]model.ChargingSession, order []string) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, id := range order {
		sess, ok := all[id]
		if !ok {
			continue
		}
		if err := enc.Encode(sess); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode session %s: %w", id, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
