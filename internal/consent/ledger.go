// Package consent implements the Consent Ledger: a durable, versioned,
// revocable record of per-category user consent.
package consent

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category is one of the fixed set of categories consent can be granted for.
type Category string

const (
	Monitoring  Category = "monitoring"
	Screenshots Category = "screenshots"
	Telemetry   Category = "telemetry"
	ExternalOCR Category = "external_ocr"
	ExternalLLM Category = "external_llm"
	Automation  Category = "automation"
)

// CurrentPolicyVersion is the policy version new grants are recorded against.
// Bumping it invalidates all prior grants without destroying their history.
const CurrentPolicyVersion = 1

// Record is the ledger's entry for a single category.
type Record struct {
	Category      Category   `json:"category"`
	Granted       bool       `json:"granted"`
	GrantedAt     time.Time  `json:"granted_at"`
	PolicyVersion int        `json:"policy_version"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// Ledger is a file-backed, mutex-guarded consent store.
type Ledger struct {
	mu      sync.RWMutex
	path    string
	records map[Category]*Record
	mirror  *RedisLedger
}

// SetMirror attaches a RedisLedger that every subsequent Grant/Revoke is
// mirrored into, best-effort, so a companion local process (a dashboard,
// a second device sharing the same Redis) can observe consent state
// without talking to this process directly. The file-backed ledger
// remains the source of truth IsValid/Status read from; a mirror write
// failure is logged, never returned to the caller.
func (l *Ledger) SetMirror(m *RedisLedger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = m
}

// New loads (or initializes) a Ledger backed by path.
func New(path string) (*Ledger, error) {
	l := &Ledger{path: path, records: make(map[Category]*Record)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}
	var stored []Record
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	for i := range stored {
		r := stored[i]
		l.records[r.Category] = &r
	}
	return l, nil
}

// Grant records consent for category at the current policy version.
func (l *Ledger) Grant(category Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[category] = &Record{
		Category:      category,
		Granted:       true,
		GrantedAt:     time.Now().UTC(),
		PolicyVersion: CurrentPolicyVersion,
	}
	slog.Info("consent granted", "category", category)
	if err := l.persistLocked(); err != nil {
		return err
	}
	l.mirrorGrant(category)
	return nil
}

// Revoke writes a tombstone for category, preserving history rather than
// deleting it.
func (l *Ledger) Revoke(category Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[category]
	if !ok || !r.Granted {
		return nil
	}
	now := time.Now().UTC()
	r.RevokedAt = &now
	slog.Info("consent revoked", "category", category)
	if err := l.persistLocked(); err != nil {
		return err
	}
	l.mirrorRevoke(category)
	return nil
}

// mirrorGrant and mirrorRevoke best-effort replicate into Redis. Callers
// must hold l.mu already (Grant/Revoke do).
func (l *Ledger) mirrorGrant(category Category) {
	if l.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.mirror.Grant(ctx, category); err != nil {
		slog.Warn("failed to mirror consent grant to redis", "category", category, "error", err)
	}
}

func (l *Ledger) mirrorRevoke(category Category) {
	if l.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.mirror.Revoke(ctx, category); err != nil {
		slog.Warn("failed to mirror consent revoke to redis", "category", category, "error", err)
	}
}

// IsValid reports whether category is currently granted, not revoked, and
// at the current policy version.
func (l *Ledger) IsValid(category Category) bool {
	status, _ := l.Status(category)
	return status == StatusValid
}

// Status is the fine-grained outcome of checking a category's consent.
type Status int

const (
	StatusValid Status = iota
	StatusMissing
	StatusExpired
)

// Status reports why a category is or isn't valid, distinguishing a
// never-granted category from one that was granted at a stale policy
// version or has since been revoked.
func (l *Ledger) Status(category Category) (Status, *Record) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[category]
	if !ok || !r.Granted {
		return StatusMissing, nil
	}
	if r.RevokedAt != nil || r.PolicyVersion != CurrentPolicyVersion {
		cp := *r
		return StatusExpired, &cp
	}
	cp := *r
	return StatusValid, &cp
}

// ExportAll returns a snapshot of every record, granted or not.
func (l *Ledger) ExportAll() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	return out
}

// DeleteAll erases the ledger's history (used for a full data-deletion request).
func (l *Ledger) DeleteAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[Category]*Record)
	return l.persistLocked()
}

func (l *Ledger) persistLocked() error {
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o600)
}
