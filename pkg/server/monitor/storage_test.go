package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStorageMonitor_Limit(t *testing.T) {
	sm := NewStorageMonitor("/tmp", 1<<30)
	if got := sm.Limit(); got != 1<<30 {
		t.Errorf("Limit() = %d, want %d", got, 1<<30)
	}
}

func TestStorageMonitor_Usage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "000001.vlog"), []byte("test data"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	sm := NewStorageMonitor(dir, 1<<30)
	u, err := sm.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if u.UsedBytes < 9 {
		t.Errorf("UsedBytes = %d, want at least 9", u.UsedBytes)
	}
	if u.Files != 1 {
		t.Errorf("Files = %d, want 1", u.Files)
	}
	if u.Path != dir {
		t.Errorf("Path = %q, want %q", u.Path, dir)
	}
}

func TestStorageMonitor_Caching(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sm := NewStorageMonitor(dir, 0)
	sm.now = func() time.Time { return now }

	first, err := sm.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "MANIFEST"), make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}

	second, _ := sm.Usage()
	if second != first {
		t.Errorf("cached usage changed within refresh: %+v != %+v", second, first)
	}

	now = now.Add(DefaultRefresh + time.Second)
	third, _ := sm.Usage()
	if third.Files != 1 {
		t.Errorf("Files after refresh = %d, want 1", third.Files)
	}
}

func TestStorageMonitor_MissingDir(t *testing.T) {
	sm := NewStorageMonitor(filepath.Join(t.TempDir(), "not-created"), 1<<20)
	u, err := sm.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if u.UsedBytes != 0 || u.Files != 0 {
		t.Errorf("missing dir usage = %+v, want zero", u)
	}
}
