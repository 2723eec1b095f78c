package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveFrameAndGetByTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	f := Frame{
		ID: "f1", Timestamp: time.Now(), TriggerType: "importance_spike",
		AppName: "vscode", WindowTitle: "main.go", Importance: 0.8,
		ResolutionW: 1920, ResolutionH: 1080, FilePath: "f1.webp", Tags: []string{"code", "focus"},
	}
	if err := s.SaveFrame(ctx, f, dir); err != nil {
		t.Fatal(err)
	}

	byTag, err := s.GetFramesByTag(ctx, "code", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 1 || byTag[0].ID != "f1" {
		t.Fatalf("expected frame f1 tagged code, got %+v", byTag)
	}
}

func TestSaveFrameRejectsPathEscape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	f := Frame{ID: "f2", Timestamp: time.Now(), TriggerType: "manual", FilePath: "../../etc/passwd"}
	if err := s.SaveFrame(ctx, f, dir); err == nil {
		t.Fatal("expected error for path escaping base directory")
	}
}

func TestSaveFrameWithoutFilePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	f := Frame{ID: "f3", Timestamp: time.Now(), TriggerType: "periodic"}
	if err := s.SaveFrame(ctx, f, dir); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteFrameRemovesRowAndFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "f4.webp")
	if err := os.WriteFile(imgPath, []byte("fake webp bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	f := Frame{ID: "f4", Timestamp: time.Now(), TriggerType: "manual", FilePath: "f4.webp", Tags: []string{"code"}}
	if err := s.SaveFrame(ctx, f, dir); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFrame(ctx, "f4"); err != nil {
		t.Fatal(err)
	}

	byTag, err := s.GetFramesByTag(ctx, "code", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 0 {
		t.Fatalf("expected frame f4's metadata row to be gone, got %+v", byTag)
	}
	if _, err := os.Stat(imgPath); !os.IsNotExist(err) {
		t.Fatalf("expected frame file to be unlinked, stat err = %v", err)
	}
}

func TestDeleteFrameUnknownIDIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteFrame(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("expected no error deleting unknown frame id, got %v", err)
	}
}

func TestEnforceFrameRetentionDeletesOldFramesOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "old.webp")
	newPath := filepath.Join(dir, "new.webp")
	if err := os.WriteFile(oldPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newPath, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	old := Frame{ID: "old", Timestamp: time.Now().Add(-48 * time.Hour), TriggerType: "manual", FilePath: "old.webp"}
	recent := Frame{ID: "new", Timestamp: time.Now(), TriggerType: "manual", FilePath: "new.webp"}
	if err := s.SaveFrame(ctx, old, dir); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFrame(ctx, recent, dir); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.EnforceFrameRetention(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("expected exactly 1 frame deleted, got %d", deleted)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("expected old frame's file to be unlinked")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatal("expected recent frame's file to survive retention sweep")
	}
}
