package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(paths []string) {
	r.mu.Lock()
	r.calls = append(r.calls, paths)
	r.mu.Unlock()
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewWatcher_filesAndDirs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "features.xlsx")
	b := filepath.Join(dir, "neighbors.xlsx")
	w := NewWatcher([]string{b, "", a, a}, nil)
	files := w.Files()
	if len(files) != 2 || files[0] != a || files[1] != b {
		t.Errorf("Files() = %v", files)
	}
	if len(w.dirs) != 1 || w.dirs[0] != dir {
		t.Errorf("dirs = %v", w.dirs)
	}
}

func TestWatcher_DebouncesBurstIntoOneCall(t *testing.T) {
	dir := t.TempDir()
	features := filepath.Join(dir, "features.xlsx")
	neighbors := filepath.Join(dir, "neighbors.xlsx")
	for _, p := range []string{features, neighbors} {
		if err := os.WriteFile(p, []byte("v1"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	w := NewWatcher([]string{features, neighbors}, rec.onChange, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(features, []byte("v2"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(neighbors, []byte("v2"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) > 0 })
	time.Sleep(400 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one debounced call, got %d: %v", len(calls), calls)
	}
	if len(calls[0]) != 2 || calls[0][0] != features || calls[0][1] != neighbors {
		t.Errorf("changed paths = %v", calls[0])
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	features := filepath.Join(dir, "features.xlsx")
	rec := &recorder{}
	w := NewWatcher([]string{features}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if calls := rec.snapshot(); len(calls) != 0 {
		t.Errorf("unexpected calls: %v", calls)
	}

	// A file created by rename into place is still seen.
	tmp := filepath.Join(dir, "features.tmp")
	if err := os.WriteFile(tmp, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, features); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing", "features.xlsx")}, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{filepath.Join(dir, "f.xlsx")}, nil)
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
