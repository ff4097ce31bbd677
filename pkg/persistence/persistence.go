// Package persistence stores session snapshots in SQLite so a coaching
// conversation survives process restarts. One row per session, keyed by
// session ID, holding the full JSON snapshot plus queryable status and
// stage columns.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"coach/pkg/proto"
	"coach/pkg/session"
)

// Status values for the sessions table.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// ErrSessionNotFound is returned when no snapshot exists for an ID.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'active',
	current_stage TEXT NOT NULL,
	snapshot_json TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

// Store is a SQLite-backed snapshot store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies pragmas for
// concurrent access, and ensures the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot upserts the session's current snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, sess *session.State) error {
	data, err := sess.Snapshot()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, current_stage, snapshot_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_stage = excluded.current_stage,
			snapshot_json = excluded.snapshot_json,
			updated_at    = excluded.updated_at`,
		sess.ID, string(sess.CurrentStage), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadSnapshot restores a session by ID.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string) (*session.State, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return session.Restore([]byte(snapshot))
}

// EndSession marks a session's final status without touching its
// snapshot.
func (s *Store) EndSession(ctx context.Context, sessionID, status string) error {
	if status != StatusCompleted && status != StatusAbandoned {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		status, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// ActiveSessions lists IDs and stages of sessions still in progress,
// most recently updated first.
func (s *Store) ActiveSessions(ctx context.Context) (map[string]proto.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, current_stage FROM sessions WHERE status = ? ORDER BY updated_at DESC`,
		StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]proto.Stage)
	for rows.Next() {
		var id, stage string
		if err := rows.Scan(&id, &stage); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out[id] = proto.Stage(stage)
	}
	return out, rows.Err()
}
