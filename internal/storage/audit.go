package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry is one status record of an automated command, written by
// the Automation Controller when the command starts and when it ends.
type AuditEntry struct {
	CommandID   string
	SessionID   string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	ElapsedMs   *int64
	TriggerKind string
}

// WriteAuditEntry stores one row per (command_id, status): a command
// accumulates one row per distinct status it passes through, and writing
// the same status again for a command replaces that row.
func (s *Store) WriteAuditEntry(ctx context.Context, e AuditEntry) error {
	var completedAt sql.NullInt64
	if e.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: e.CompletedAt.UnixNano(), Valid: true}
	}
	var elapsed sql.NullInt64
	if e.ElapsedMs != nil {
		elapsed = sql.NullInt64{Int64: *e.ElapsedMs, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_entries
		 (command_id, session_id, started_at, completed_at, status, elapsed_ms, trigger_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.CommandID, e.SessionID, e.StartedAt.UnixNano(), completedAt, e.Status, elapsed, e.TriggerKind,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// GetAuditTrail returns every status transition recorded for commandID,
// ordered by started_at.
func (s *Store) GetAuditTrail(ctx context.Context, commandID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT command_id, session_id, started_at, completed_at, status, elapsed_ms, trigger_kind
		 FROM audit_entries WHERE command_id = ? ORDER BY started_at ASC`, commandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var started int64
		var completed, elapsed sql.NullInt64
		if err := rows.Scan(&e.CommandID, &e.SessionID, &started, &completed, &e.Status, &elapsed, &e.TriggerKind); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.StartedAt = time.Unix(0, started).UTC()
		if completed.Valid {
			t := time.Unix(0, completed.Int64).UTC()
			e.CompletedAt = &t
		}
		if elapsed.Valid {
			e.ElapsedMs = &elapsed.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PolicyCacheEntry is a cached ExecutionPolicy lookup, keyed by process name.
type PolicyCacheEntry struct {
	ProcessName string
	PolicyJSON  string
	CachedAt    time.Time
}

// PutPolicyCache upserts the cached policy for processName.
func (s *Store) PutPolicyCache(ctx context.Context, e PolicyCacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO policy_cache (process_name, policy_json, cached_at) VALUES (?, ?, ?)`,
		e.ProcessName, e.PolicyJSON, e.CachedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache policy: %w", err)
	}
	return nil
}

// GetPolicyCache returns the cached entry for processName, if any.
func (s *Store) GetPolicyCache(ctx context.Context, processName string) (*PolicyCacheEntry, error) {
	var e PolicyCacheEntry
	var cachedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT process_name, policy_json, cached_at FROM policy_cache WHERE process_name = ?`, processName,
	).Scan(&e.ProcessName, &e.PolicyJSON, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached policy: %w", err)
	}
	e.CachedAt = time.Unix(0, cachedAt).UTC()
	return &e, nil
}
