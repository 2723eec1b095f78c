package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Frame is a persisted capture: its metadata plus an optional on-disk
// image path and OCR text.
type Frame struct {
	ID           string
	Timestamp    time.Time
	TriggerType  string
	AppName      string
	WindowTitle  string
	Importance   float64
	ResolutionW  int
	ResolutionH  int
	FilePath     string
	OCRText      string
	WindowBounds string
	Tags         []string
}

// SaveFrame inserts f and its tags in a single transaction. FilePath is
// canonicalized under baseDir to prevent a crafted path from escaping the
// capture directory.
func (s *Store) SaveFrame(ctx context.Context, f Frame, baseDir string) error {
	safePath, err := safeJoin(baseDir, f.FilePath)
	if err != nil {
		return fmt.Errorf("failed to resolve frame path: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO frames (id, timestamp, trigger_type, app_name, window_title, importance,
		 resolution_w, resolution_h, file_path, ocr_text, window_bounds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Timestamp.UnixNano(), f.TriggerType, f.AppName, f.WindowTitle, f.Importance,
		f.ResolutionW, f.ResolutionH, nullableString(safePath), nullableString(f.OCRText), nullableString(f.WindowBounds),
	)
	if err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}

	for _, tag := range f.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO frame_tags (frame_id, tag) VALUES (?, ?)`, f.ID, tag); err != nil {
			return fmt.Errorf("failed to save frame tag: %w", err)
		}
	}

	return tx.Commit()
}

// GetFramesByTag returns frames carrying tag, newest-first, capped at limit.
func (s *Store) GetFramesByTag(ctx context.Context, tag string, limit int) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.timestamp, f.trigger_type, f.app_name, f.window_title, f.importance,
		 f.resolution_w, f.resolution_h, f.file_path, f.ocr_text, f.window_bounds
		 FROM frames f JOIN frame_tags t ON t.frame_id = f.id
		 WHERE t.tag = ? ORDER BY f.timestamp DESC LIMIT ?`, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames by tag: %w", err)
	}
	defer rows.Close()
	return scanFrames(rows)
}

// DeleteFrame removes frameID's metadata row (and its tags) first, and
// only then unlinks the on-disk file, if any. This ordering matters: a
// crash between the two leaves at most an orphaned file that a later
// sweep can garbage-collect, never a dangling metadata row pointing at
// a file that no longer exists.
func (s *Store) DeleteFrame(ctx context.Context, frameID string) error {
	var filePath sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT file_path FROM frames WHERE id = ?`, frameID).Scan(&filePath)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up frame: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM frame_tags WHERE frame_id = ?`, frameID); err != nil {
		return fmt.Errorf("failed to delete frame tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE id = ?`, frameID); err != nil {
		return fmt.Errorf("failed to delete frame: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame deletion: %w", err)
	}

	if filePath.Valid && filePath.String != "" {
		if err := os.Remove(filePath.String); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to unlink frame file: %w", err)
		}
	}
	return nil
}

// EnforceFrameRetention deletes every frame older than
// now-retentionDays, removing each one's metadata row before its file
// per DeleteFrame's ordering invariant, and returns the count removed.
func (s *Store) EnforceFrameRetention(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixNano()
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM frames WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired frames: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired frame id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var deleted int
	for _, id := range ids {
		if err := s.DeleteFrame(ctx, id); err != nil {
			slog.Error("failed to delete expired frame", "frame_id", id, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("frame retention enforced", "deleted", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

func scanFrames(rows *sql.Rows) ([]Frame, error) {
	var out []Frame
	for rows.Next() {
		var f Frame
		var ts int64
		var filePath, ocrText, bounds sql.NullString
		if err := rows.Scan(&f.ID, &ts, &f.TriggerType, &f.AppName, &f.WindowTitle, &f.Importance,
			&f.ResolutionW, &f.ResolutionH, &filePath, &ocrText, &bounds); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Timestamp = time.Unix(0, ts).UTC()
		f.FilePath = filePath.String
		f.OCRText = ocrText.String
		f.WindowBounds = bounds.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// safeJoin resolves rel against baseDir, rejecting any path that would
// escape baseDir (e.g. via "../" traversal or an absolute path).
func safeJoin(baseDir, rel string) (string, error) {
	if rel == "" {
		return "", nil
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(base, rel)
	cleanedBase := filepath.Clean(base)
	if joined != cleanedBase && !strings.HasPrefix(joined, cleanedBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory %q", rel, baseDir)
	}
	return joined, nil
}
