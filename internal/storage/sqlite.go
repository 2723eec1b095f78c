// Package storage implements the Event Store, Frame Store, and Audit Log on
// an embedded SQLite database, grounded on the teacher's
// database/sql + modernc.org/sqlite persistence idiom.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite handle shared by the Event Store, Frame
// Store, and Audit Log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and runs
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	slog.Info("storage opened", "path", path)
	return s, nil
}

// OpenInMemory opens an in-memory database, useful for tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	data_blob TEXT NOT NULL,
	is_sent INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_is_sent ON events(is_sent);

CREATE TABLE IF NOT EXISTS frames (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	trigger_type TEXT NOT NULL,
	app_name TEXT NOT NULL,
	window_title TEXT NOT NULL,
	importance REAL NOT NULL,
	resolution_w INTEGER NOT NULL,
	resolution_h INTEGER NOT NULL,
	file_path TEXT,
	ocr_text TEXT,
	window_bounds TEXT
);
CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames(timestamp);

CREATE TABLE IF NOT EXISTS frame_tags (
	frame_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (frame_id, tag)
);

CREATE TABLE IF NOT EXISTS audit_entries (
	command_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	completed_at INTEGER,
	status TEXT NOT NULL,
	elapsed_ms INTEGER,
	trigger_kind TEXT NOT NULL,
	PRIMARY KEY (command_id, status)
);
CREATE INDEX IF NOT EXISTS idx_audit_command ON audit_entries(command_id);

CREATE TABLE IF NOT EXISTS policy_cache (
	process_name TEXT PRIMARY KEY,
	policy_json TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);
`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Event Store ----

// Event is a persisted row in the append-only event journal.
type Event struct {
	EventID   string
	EventType string
	Timestamp time.Time
	DataBlob  string
	IsSent    bool
}

// SaveEvent inserts e, silently ignoring a duplicate event_id.
func (s *Store) SaveEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, event_type, timestamp, data_blob, is_sent) VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.EventType, e.Timestamp.UnixNano(), e.DataBlob, boolToInt(e.IsSent),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	slog.Debug("event saved", "event_id", e.EventID, "type", e.EventType)
	return nil
}

// SaveEventsBatch inserts all of es in a single transaction; each row uses
// the same OR IGNORE duplicate semantics as SaveEvent.
func (s *Store) SaveEventsBatch(ctx context.Context, es []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, event_type, timestamp, data_blob, is_sent) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range es {
		if _, err := stmt.ExecContext(ctx, e.EventID, e.EventType, e.Timestamp.UnixNano(), e.DataBlob, boolToInt(e.IsSent)); err != nil {
			return fmt.Errorf("failed to save event in batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	slog.Debug("events batch saved", "count", len(es))
	return nil
}

// GetEvents returns events in [from, to], newest-first, capped at limit.
func (s *Store) GetEvents(ctx context.Context, from, to time.Time, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, event_type, timestamp, data_blob, is_sent FROM events
		 WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp DESC LIMIT ?`,
		from.UnixNano(), to.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetPendingEvents returns up to limit unsent events, oldest-first.
func (s *Store) GetPendingEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, event_type, timestamp, data_blob, is_sent FROM events
		 WHERE is_sent = 0 ORDER BY timestamp ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		var isSent int
		if err := rows.Scan(&e.EventID, &e.EventType, &ts, &e.DataBlob, &isSent); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.IsSent = isSent != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkAsSent idempotently sets is_sent=true for every id in ids.
func (s *Store) MarkAsSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE events SET is_sent = 1 WHERE event_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark event sent: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	slog.Debug("events marked sent", "count", len(ids))
	return nil
}

// EnforceRetention deletes every event with is_sent=true and
// timestamp < now-retentionDays, returning the number of rows deleted.
// Unsent events are never deleted regardless of age.
func (s *Store) EnforceRetention(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixNano()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE is_sent = 1 AND timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to enforce retention: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Info("retention enforced", "deleted", n, "retention_days", retentionDays)
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
