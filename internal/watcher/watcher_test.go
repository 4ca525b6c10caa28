package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jeeveswatcher/internal/health"
	"jeeveswatcher/internal/queue"
)

type recordingHandler struct {
	mu       sync.Mutex
	created  []string
	modified []string
	deleted  []string
}

func (r *recordingHandler) ProcessFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, path)
	return nil
}

func (r *recordingHandler) DeleteFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, path)
	return nil
}

func (r *recordingHandler) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.created {
		if p == path {
			return true
		}
	}
	return false
}

func newTestWatcher(t *testing.T, dir string, handler Handler) (*Watcher, *queue.Queue) {
	t.Helper()
	q := queue.New(queue.Config{Concurrency: 4, Debounce: 10 * time.Millisecond})
	q.Start()
	sup := health.New(health.Config{MaxRetries: 100})
	w, err := New(Options{Roots: []string{dir}}, handler, q, sup)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, q
}

func TestWatcherDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	handler := &recordingHandler{}
	w, q := newTestWatcher(t, dir, handler)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if handler.seen(path) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected handler to observe %s", path)
}

func TestWatcherSkipsIgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644); err != nil {
		t.Fatalf("write gitignore: %v", err)
	}
	handler := &recordingHandler{}
	w, q := newTestWatcher(t, dir, handler)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	ignored := filepath.Join(dir, "debug.log")
	if err := os.WriteFile(ignored, []byte("noise"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if handler.seen(ignored) {
		t.Fatalf("expected %s to be ignored", ignored)
	}
}

func TestPollingFallbackDetectsCreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	p := newPollingFallback([]string{dir}, time.Millisecond)

	var mu sync.Mutex
	var creates, deletes []string
	emit := func(kind, path string) {
		mu.Lock()
		defer mu.Unlock()
		switch kind {
		case "create":
			creates = append(creates, path)
		case "delete":
			deletes = append(deletes, path)
		}
	}

	p.scanInto(p.state)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p.detect(emit)

	mu.Lock()
	if len(creates) != 1 || creates[0] != path {
		mu.Unlock()
		t.Fatalf("creates = %v", creates)
	}
	mu.Unlock()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	p.detect(emit)

	mu.Lock()
	defer mu.Unlock()
	if len(deletes) != 1 || deletes[0] != path {
		t.Fatalf("deletes = %v", deletes)
	}
}
