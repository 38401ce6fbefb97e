package multiproc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ReapPolicy selects what MarkDead does with a dead process's files.
type ReapPolicy string

const (
	// ReapImmediate deletes the process's live-mode gauge files at once.
	ReapImmediate ReapPolicy = "immediate"

	// ReapGrace writes a tombstone. Collectors hide the process's live-mode
	// gauges at once; Sweep deletes the files after the grace period.
	ReapGrace ReapPolicy = "grace"
)

// ParseReapPolicy validates s as a reap policy.
func ParseReapPolicy(s string) (ReapPolicy, error) {
	switch p := ReapPolicy(s); p {
	case ReapImmediate, ReapGrace:
		return p, nil
	}
	return "", fmt.Errorf("unknown reap policy %q", s)
}

// Reaper defaults.
const (
	DefaultReapPolicy    = ReapImmediate
	DefaultGracePeriod   = 5 * time.Minute
	DefaultSweepSchedule = "*/5 * * * *"
)

// ReaperOptions configures a Reaper.
type ReaperOptions struct {
	// Policy is the action taken by MarkDead.
	// Default: immediate.
	Policy ReapPolicy

	// GracePeriod is how long tombstoned files are kept under the grace
	// policy.
	// Default: 5m.
	GracePeriod time.Duration

	// SweepSchedule is the cron expression Start uses to run Sweep. An empty
	// schedule disables scheduled sweeps.
	SweepSchedule string

	// RemoveAll also deletes counter, histogram and non-live gauge files.
	// Counters of the process then disappear from the merged totals, which
	// scrapers see as a counter reset.
	RemoveAll bool

	Logger *slog.Logger
}

// Reaper retires the files of processes that exited. Counter and histogram
// files are kept unless RemoveAll is set, so merged totals stay monotonic
// across worker restarts.
//
// Processes that crash never call MarkDead; their files stay in the
// directory with their last values until an operator removes them (see
// CleanDirectory) or a process with the same id starts again.
type Reaper struct {
	dir    string
	opts   ReaperOptions
	logger *slog.Logger

	mu      sync.Mutex
	marked  map[string]bool
	cron    *cron.Cron
	stop    chan struct{}
	running bool
}

// NewReaper returns a reaper for dir.
func NewReaper(dir string, opts ReaperOptions) (*Reaper, error) {
	if opts.Policy == "" {
		opts.Policy = DefaultReapPolicy
	}
	if _, err := ParseReapPolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Reaper{
		dir:    dir,
		opts:   opts,
		logger: opts.Logger.With("component", "multiproc.reaper"),
		marked: make(map[string]bool),
	}, nil
}

// Policy returns the configured policy.
func (r *Reaper) Policy() ReapPolicy { return r.opts.Policy }

// MarkDead retires the files of pid according to the policy. It is meant to
// be called once per process on graceful shutdown; later calls for the same
// pid do nothing.
func (r *Reaper) MarkDead(pid string) error {
	if err := ValidateProcessID(pid); err != nil {
		return err
	}

	r.mu.Lock()
	if r.marked[pid] {
		r.mu.Unlock()
		return nil
	}
	r.marked[pid] = true
	r.mu.Unlock()

	switch r.opts.Policy {
	case ReapGrace:
		path := filepath.Join(r.dir, TombstoneName(pid))
		if err := os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write tombstone for %s: %w", pid, err)
		}
		r.logger.Info("process marked dead", "pid", pid, "policy", string(r.opts.Policy),
			"grace_period", r.opts.GracePeriod.String())
		return nil

	default:
		removed, err := removeProcessFiles(r.dir, pid, r.opts.RemoveAll)
		r.logger.Info("process marked dead", "pid", pid, "policy", string(r.opts.Policy),
			"removed_files", removed)
		return err
	}
}

// Sweep deletes the files of every process whose tombstone is older than the
// grace period, then the tombstone itself. It returns the number of process
// files deleted.
func (r *Reaper) Sweep() (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", r.dir, err)
	}

	cutoff := time.Now().Add(-r.opts.GracePeriod)
	var (
		total int
		errs  []error
	)
	for _, de := range entries {
		pid, ok := ParseTombstoneName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		removed, err := removeProcessFiles(r.dir, pid, r.opts.RemoveAll)
		total += removed
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, de.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		r.logger.Debug("tombstoned process swept", "pid", pid, "removed_files", removed)
	}
	return total, errors.Join(errs...)
}

// Start runs Sweep on the configured schedule until ctx is cancelled or Stop
// is called. Without a schedule, or under the immediate policy, it does
// nothing. A stopped reaper can be started again.
//
// Common schedules:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 * * * *"    - hourly
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Policy != ReapGrace || r.opts.SweepSchedule == "" {
		r.logger.Info("sweep schedule not needed, skipping scheduler", "policy", string(r.opts.Policy))
		return nil
	}
	if r.running {
		return nil
	}

	if _, err := cron.ParseStandard(r.opts.SweepSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.opts.SweepSchedule, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(r.opts.SweepSchedule, r.runSweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	stop := make(chan struct{})
	c.Start()
	r.cron = c
	r.stop = stop
	r.running = true
	r.logger.Info("reaper scheduler started",
		"schedule", r.opts.SweepSchedule,
		"grace_period", r.opts.GracePeriod.String(),
	)

	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-stop:
		}
	}()
	return nil
}

func (r *Reaper) runSweep() {
	removed, err := r.Sweep()
	if err != nil {
		r.logger.Error("scheduled sweep failed", "error", err, "removed_files", removed)
		return
	}
	if removed > 0 {
		r.logger.Info("scheduled sweep completed", "removed_files", removed)
	} else {
		r.logger.Debug("scheduled sweep completed, nothing to remove")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		close(r.stop)
		<-r.cron.Stop().Done()
		r.running = false
		r.logger.Info("reaper scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (r *Reaper) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun returns the next scheduled sweep, or nil when the scheduler is
// not running.
func (r *Reaper) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// CleanDirectory removes every process file and tombstone in dir and returns
// how many were removed. Run it before workers start, when no process is
// writing; files of running processes must not be removed.
func CleanDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	var (
		removed int
		errs    []error
	)
	for _, de := range entries {
		name := de.Name()
		_, isFile := ParseFileName(name)
		_, isTomb := ParseTombstoneName(name)
		if !isFile && !isTomb {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// removeProcessFiles deletes the live-mode gauge files of pid, or every file
// of pid when all is set.
func removeProcessFiles(dir, pid string, all bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	var (
		removed int
		errs    []error
	)
	for _, de := range entries {
		info, ok := ParseFileName(de.Name())
		if !ok || info.ProcessID != pid {
			continue
		}
		if !all && !(info.Kind == KindGauge && info.Mode.Live()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, de.Name())); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
