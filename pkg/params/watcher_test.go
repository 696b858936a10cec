package params

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// writeUntil rewrites path until cond holds or the deadline passes. The
// watcher registers asynchronously, so a single early write may be missed.
func writeUntil(t *testing.T, path string, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("node_id = 3\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		if cond() {
			return true
		}
	}
	return false
}

func TestFileWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("node_id = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := NewFileWatcher(path, func() error {
		calls.Add(1)
		return nil
	}, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if !writeUntil(t, path, func() bool { return w.Reloads() > 0 }) {
		t.Fatal("watcher never reloaded")
	}
	if calls.Load() < 1 {
		t.Errorf("reload called %d times", calls.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	other := filepath.Join(dir, "other.toml")

	var calls atomic.Int32
	w := NewFileWatcher(path, func() error {
		calls.Add(1)
		return nil
	}, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}
	if calls.Load() != 0 {
		t.Errorf("reload called %d times for unrelated file", calls.Load())
	}
}

func TestFileWatcher_FailedReloadNotCounted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	var calls atomic.Int32
	w := NewFileWatcher(path, func() error {
		calls.Add(1)
		return errors.New("bad file")
	}, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if !writeUntil(t, path, func() bool { return calls.Load() > 0 }) {
		t.Fatal("reload never attempted")
	}
	if w.Reloads() != 0 {
		t.Errorf("Reloads() = %d, want 0", w.Reloads())
	}
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	w := NewFileWatcher(filepath.Join(t.TempDir(), "nope", "config.toml"), func() error { return nil }, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() should fail when the directory does not exist")
	}
}
