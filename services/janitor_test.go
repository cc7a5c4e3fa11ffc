package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJanitor_SweepFiles(t *testing.T) {
	root := t.TempDir()
	oldDir := AnalysisDir(root, "old")
	newDir := AnalysisDir(root, "new")
	for _, dir := range []string{oldDir, newDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, WorkbookFile), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(root, time.Hour, nil)
	removed, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("expired directory still present")
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Errorf("fresh directory removed: %v", err)
	}
}

func TestJanitor_SweepMissingRoot(t *testing.T) {
	j := NewJanitor(filepath.Join(t.TempDir(), "absent"), time.Hour, nil)
	if removed, err := j.Sweep(context.Background()); err != nil || removed != 0 {
		t.Errorf("Sweep = %d, %v; want 0, nil", removed, err)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(t.TempDir(), time.Hour, nil)
	if err := j.Start(time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	j.Stop()
}
