package multiproc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDirWatcher_InvalidatesListing(t *testing.T) {
	dir := t.TempDir()
	first := newWorker(t, dir, "1")
	first.requests.WithLabelValues("x").Inc()

	c := NewCollector(dir, CollectorOptions{})
	dw, err := NewDirWatcher(c, nil)
	if err != nil {
		t.Fatalf("NewDirWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- dw.Watch(ctx) }()
	waitFor(t, "watcher start", dw.Running)

	merged, _ := c.Collect()
	if got, _ := merged.Value("requests_total", Labels{"a": "x"}); got != 1 {
		t.Fatalf("requests_total = %v, want 1", got)
	}
	c.mu.Lock()
	cached := c.cached != nil
	c.mu.Unlock()
	if !cached {
		t.Error("listing not cached while watcher runs")
	}

	second := newWorker(t, dir, "2")
	second.requests.WithLabelValues("x").Add(2)

	waitFor(t, "new process file", func() bool {
		merged, _ := c.Collect()
		got, _ := merged.Value("requests_total", Labels{"a": "x"})
		return got == 3
	})

	if err := dw.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if dw.Running() {
		t.Error("Running() = true after Stop()")
	}

	c.mu.Lock()
	caching := c.caching
	c.mu.Unlock()
	if caching {
		t.Error("collector still caching after watcher stopped")
	}
}

func TestDirWatcher_RunOnce(t *testing.T) {
	c := NewCollector(t.TempDir(), CollectorOptions{})
	dw, err := NewDirWatcher(c, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- dw.Watch(ctx) }()
	waitFor(t, "watcher start", dw.Running)

	if err := dw.Watch(ctx); err == nil {
		t.Error("second Watch() expected error")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	_ = dw.Stop()
}

func TestDirWatcher_MissingDirectory(t *testing.T) {
	c := NewCollector(filepath.Join(t.TempDir(), "gone"), CollectorOptions{})
	dw, err := NewDirWatcher(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dw.Stop()

	if err := dw.Watch(context.Background()); err == nil {
		t.Error("Watch() on missing directory expected error")
	}
}

func TestRelevantEvent(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create process file", fsnotify.Event{Name: "/d/counter_1.db", Op: fsnotify.Create}, true},
		{"remove gauge file", fsnotify.Event{Name: "/d/gauge_livesum_1.db", Op: fsnotify.Remove}, true},
		{"tombstone", fsnotify.Event{Name: "/d/dead_1.tomb", Op: fsnotify.Create}, true},
		{"rename", fsnotify.Event{Name: "/d/histogram_1.db", Op: fsnotify.Rename}, true},
		{"value write", fsnotify.Event{Name: "/d/counter_1.db", Op: fsnotify.Write}, false},
		{"chmod", fsnotify.Event{Name: "/d/counter_1.db", Op: fsnotify.Chmod}, false},
		{"temp file", fsnotify.Event{Name: "/d/.writable-123", Op: fsnotify.Create}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevantEvent(tt.event); got != tt.want {
				t.Errorf("relevantEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}
