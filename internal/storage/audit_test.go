package storage

import (
	"context"
	"testing"
	"time"
)

func TestAuditTrailOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	entries := []AuditEntry{
		{CommandID: "c1", SessionID: "s1", StartedAt: base, Status: "received", TriggerKind: "manual"},
		{CommandID: "c1", SessionID: "s1", StartedAt: base.Add(time.Millisecond), Status: "policy_checked", TriggerKind: "manual"},
		{CommandID: "c1", SessionID: "s1", StartedAt: base.Add(2 * time.Millisecond), Status: "executed", TriggerKind: "manual"},
	}
	for _, e := range entries {
		if err := s.WriteAuditEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	trail, err := s.GetAuditTrail(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(trail))
	}
	if trail[0].Status != "received" || trail[2].Status != "executed" {
		t.Fatalf("expected chronological order, got %+v", trail)
	}
}

func TestPolicyCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := PolicyCacheEntry{ProcessName: "curl", PolicyJSON: `{"audit_level":"strict"}`, CachedAt: time.Now()}
	if err := s.PutPolicyCache(ctx, entry); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPolicyCache(ctx, "curl")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PolicyJSON != entry.PolicyJSON {
		t.Fatalf("expected cached policy to round-trip, got %+v", got)
	}
}

func TestPolicyCacheMissReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetPolicyCache(context.Background(), "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for uncached process, got %+v", got)
	}
}
