package multiproc

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// populate creates counter, histogram, livesum and max gauge files for pid.
func populate(t *testing.T, dir, pid string) {
	t.Helper()
	w := newWorker(t, dir, pid)
	w.requests.WithLabelValues("x").Inc()
	w.inflight.WithLabelValues().Set(1)
	w.latency.WithLabelValues().Observe(1)
	w.reg.MustNewGauge(GaugeOpts{Name: "peak", Mode: GaugeModeMax}).WithLabelValues().Set(2)
	_ = w.reg.Store().Close()
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestReaper_MarkDead(t *testing.T) {
	tests := []struct {
		name      string
		opts      ReaperOptions
		wantFiles []string
	}{
		{
			name: "immediate keeps counters and non-live gauges",
			opts: ReaperOptions{Policy: ReapImmediate},
			wantFiles: []string{
				"counter_1.db", "counter_2.db",
				"gauge_livesum_1.db",
				"gauge_max_1.db", "gauge_max_2.db",
				"histogram_1.db", "histogram_2.db",
			},
		},
		{
			name: "immediate remove all",
			opts: ReaperOptions{Policy: ReapImmediate, RemoveAll: true},
			wantFiles: []string{
				"counter_1.db", "gauge_livesum_1.db", "gauge_max_1.db", "histogram_1.db",
			},
		},
		{
			name: "grace writes tombstone",
			opts: ReaperOptions{Policy: ReapGrace},
			wantFiles: []string{
				"counter_1.db", "counter_2.db",
				"dead_2.tomb",
				"gauge_livesum_1.db", "gauge_livesum_2.db",
				"gauge_max_1.db", "gauge_max_2.db",
				"histogram_1.db", "histogram_2.db",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			populate(t, dir, "1")
			populate(t, dir, "2")

			r, err := NewReaper(dir, tt.opts)
			if err != nil {
				t.Fatalf("NewReaper() error = %v", err)
			}
			if err := r.MarkDead("2"); err != nil {
				t.Fatalf("MarkDead() error = %v", err)
			}

			got := listDir(t, dir)
			if len(got) != len(tt.wantFiles) {
				t.Fatalf("files = %v, want %v", got, tt.wantFiles)
			}
			for i := range got {
				if got[i] != tt.wantFiles[i] {
					t.Errorf("files = %v, want %v", got, tt.wantFiles)
					break
				}
			}
		})
	}
}

func TestReaper_MarkDeadIdempotent(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "1")

	r, err := NewReaper(dir, ReaperOptions{Policy: ReapGrace})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.MarkDead("1"); err != nil {
		t.Fatal(err)
	}

	tomb := filepath.Join(dir, TombstoneName("1"))
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(tomb, past, past); err != nil {
		t.Fatal(err)
	}

	if err := r.MarkDead("1"); err != nil {
		t.Fatalf("second MarkDead() error = %v", err)
	}
	st, err := os.Stat(tomb)
	if err != nil {
		t.Fatal(err)
	}
	if st.ModTime().Sub(past).Abs() > time.Second {
		t.Error("second MarkDead() rewrote the tombstone")
	}

	if err := r.MarkDead("bad_pid"); err == nil {
		t.Error("MarkDead() with invalid pid expected error")
	}
}

func TestReaper_Sweep(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "1")
	populate(t, dir, "2")

	r, err := NewReaper(dir, ReaperOptions{Policy: ReapGrace, GracePeriod: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	for _, pid := range []string{"1", "2"} {
		if err := r.MarkDead(pid); err != nil {
			t.Fatal(err)
		}
	}

	// Only pid 1 is past its grace period.
	past := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(filepath.Join(dir, TombstoneName("1")), past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := r.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d files, want 1", removed)
	}

	for _, name := range []string{"dead_1.tomb", "gauge_livesum_1.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still present after sweep", name)
		}
	}
	for _, name := range []string{"dead_2.tomb", "gauge_livesum_2.db", "counter_1.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s removed by sweep: %v", name, err)
		}
	}
}

func TestReaper_Start(t *testing.T) {
	tests := []struct {
		name        string
		opts        ReaperOptions
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "grace with schedule",
			opts:        ReaperOptions{Policy: ReapGrace, SweepSchedule: "*/5 * * * *"},
			wantRunning: true,
		},
		{
			name: "grace without schedule",
			opts: ReaperOptions{Policy: ReapGrace},
		},
		{
			name: "immediate ignores schedule",
			opts: ReaperOptions{Policy: ReapImmediate, SweepSchedule: "*/5 * * * *"},
		},
		{
			name:      "invalid schedule",
			opts:      ReaperOptions{Policy: ReapGrace, SweepSchedule: "invalid cron"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReaper(t.TempDir(), tt.opts)
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err = r.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if r.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", r.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				if next := r.NextRun(); next == nil {
					t.Error("NextRun() returned nil for running scheduler")
				} else if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
			}

			r.Stop()
			if r.IsRunning() {
				t.Error("IsRunning() = true after Stop()")
			}
		})
	}
}

func TestReaper_StopsWithContext(t *testing.T) {
	r, err := NewReaper(t.TempDir(), ReaperOptions{Policy: ReapGrace, SweepSchedule: "0 * * * *"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for r.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.IsRunning() {
		t.Error("scheduler still running after context cancellation")
	}
}

func TestReaper_Restart(t *testing.T) {
	r, err := NewReaper(t.TempDir(), ReaperOptions{Policy: ReapGrace, SweepSchedule: "0 * * * *"})
	if err != nil {
		t.Fatal(err)
	}

	// The context outlives both runs; Stop alone must end each one.
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	firstStop := r.stop
	r.Stop()

	select {
	case <-firstStop:
	default:
		t.Error("Stop() left the first run's context watcher waiting")
	}
	if r.NextRun() != nil {
		t.Error("NextRun() != nil after Stop()")
	}

	if err := r.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	defer r.Stop()

	if !r.IsRunning() {
		t.Fatal("IsRunning() = false after restart")
	}
	if n := len(r.cron.Entries()); n != 1 {
		t.Errorf("scheduler has %d sweep entries after restart, want 1", n)
	}
	if r.NextRun() == nil {
		t.Error("NextRun() = nil after restart")
	}
}

func TestNewReaper_InvalidPolicy(t *testing.T) {
	if _, err := NewReaper(t.TempDir(), ReaperOptions{Policy: "later"}); err == nil {
		t.Error("NewReaper() expected error for unknown policy")
	}

	r, err := NewReaper(t.TempDir(), ReaperOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Policy() != ReapImmediate {
		t.Errorf("Policy() = %q, want immediate", r.Policy())
	}
}

func TestCleanDirectory(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "1")
	if err := os.WriteFile(filepath.Join(dir, TombstoneName("5")), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := CleanDirectory(dir)
	if err != nil {
		t.Fatalf("CleanDirectory() error = %v", err)
	}
	if removed != 5 {
		t.Errorf("CleanDirectory() removed %d, want 5", removed)
	}
	if got := listDir(t, dir); len(got) != 1 || got[0] != "keep.txt" {
		t.Errorf("remaining files = %v, want [keep.txt]", got)
	}
}
