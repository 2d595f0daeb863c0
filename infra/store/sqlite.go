package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/session"
)

// SQLiteStore persists sessions to a SQLite database. The full session is
// kept as JSON next to the indexed columns used for filtering.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS charging_sessions (
        id TEXT PRIMARY KEY,
        start_ts INTEGER NOT NULL,
        end_ts INTEGER,
        initial_soc REAL,
        final_soc REAL,
        duration_seconds REAL,
        record TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS charging_sessions_start ON charging_sessions (start_ts);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess model.ChargingSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var end, final, dur any
	if sess.EndTime != nil {
		end = sess.EndTime.UnixNano()
		dur = sess.Duration().Seconds()
	}
	if sess.FinalSoC != nil {
		final = *sess.FinalSoC
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO charging_sessions (id, start_ts, end_ts, initial_soc, final_soc, duration_seconds, record)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
           start_ts = excluded.start_ts,
           end_ts = excluded.end_ts,
           initial_soc = excluded.initial_soc,
           final_soc = excluded.final_soc,
           duration_seconds = excluded.duration_seconds,
           record = excluded.record`,
		sess.ID, sess.StartTime.UnixNano(), end, sess.InitialSoC, final, dur, string(b))
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.ChargingSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM charging_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChargingSession{}, session.ErrNotFound
	}
	if err != nil {
		return model.ChargingSession{}, err
	}
	return decodeSession(data)
}

func (s *SQLiteStore) List(ctx context.Context, q session.Query) ([]model.ChargingSession, error) {
	var args []any
	query := `SELECT record FROM charging_sessions WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND start_ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND start_ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.ClosedOnly {
		query += ` AND end_ts IS NOT NULL`
	}
	query += ` ORDER BY start_ts DESC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ChargingSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		sess, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx, `DELETE FROM charging_sessions WHERE id IN (`+marks+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM charging_sessions`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func decodeSession(data string) (model.ChargingSession, error) {
	var sess model.ChargingSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return model.ChargingSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}
