package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	if err = w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w
}

func expectChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func expectQuiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
		t.Fatal("unexpected change reported")
	case <-time.After(4 * reloadDebounce):
	}
}

func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
}

func TestWatcherReportsContentChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.json")
	w := startWatcher(t, path)

	writeAtomic(t, path, `{"isAuthenticated":true}`)
	expectChange(t, w)

	writeAtomic(t, path, `{"isAuthenticated":true}`)
	expectQuiet(t, w)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	expectChange(t, w)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, filepath.Join(dir, "state.json"))
	if err := os.WriteFile(filepath.Join(dir, "google-token.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectQuiet(t, w)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	w := startWatcher(t, path)
	for i := 0; i < 5; i++ {
		writeAtomic(t, path, string(rune('a'+i)))
	}
	expectChange(t, w)
	expectQuiet(t, w)
}

func TestNewWatcherRejectsEmptyPath(t *testing.T) {
	if _, err := NewWatcher(" "); err == nil {
		t.Fatal("expected error")
	}
}
