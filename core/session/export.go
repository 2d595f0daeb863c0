package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kilianp07/battsim/core/model"
)

// Export writes the sessions matching q as an indented JSON array.
func Export(ctx context.Context, store Store, q Query, w io.Writer) (int, error) {
	s, err := store.List(ctx, q)
	if err != nil {
		return 0, err
	}
	if s == nil {
		s = []model.ChargingSession{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return 0, fmt.Errorf("encode sessions: %w", err)
	}
	return len(s), nil
}

// Import reads a JSON array produced by Export and saves every session.
// Sessions without an ID are skipped.
func Import(ctx context.Context, store Store, r io.Reader) (int, error) {
	var s []model.ChargingSession
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return 0, fmt.Errorf("decode sessions: %w", err)
	}
	n := 0
	for _, sess := range s {
		if sess.ID == "" {
			continue
		}
		if err := store.Save(ctx, sess); err != nil {
			return n, fmt.Errorf("save session %s: %w", sess.ID, err)
		}
		n++
	}
	return n, nil
}
