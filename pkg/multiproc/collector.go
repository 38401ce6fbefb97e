package multiproc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// PartialCollectionError reports one process file that could not be read
// during a collection pass. The pass continues without it.
type PartialCollectionError struct {
	Path string
	Err  error
}

func (e *PartialCollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Path, e.Err)
}

func (e *PartialCollectionError) Unwrap() error { return e.Err }

// CollectStats describes one collection pass.
type CollectStats struct {
	// Files is the number of process files merged.
	Files int
	// Missing counts files that vanished between listing and opening.
	Missing int
	// SkippedDead counts live-mode gauge files of dead processes.
	SkippedDead int
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	Logger *slog.Logger
}

// Collector merges the process files of a multiprocess directory. It is safe
// for concurrent use; every call to Collect reads the directory afresh unless
// a directory watcher keeps the listing current (see Watch).
type Collector struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	cached  []string
	caching bool
	gen     uint64
}

// NewCollector returns a collector for dir.
func NewCollector(dir string, opts CollectorOptions) *Collector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Collector{
		dir:    dir,
		logger: opts.Logger.With("component", "multiproc.collector"),
	}
}

// Dir returns the multiprocess directory.
func (c *Collector) Dir() string { return c.dir }

// Collect reads every process file in the directory and merges the samples:
// counters and histogram buckets are summed, gauges are merged by the mode in
// their file name. Unreadable files are skipped and returned as
// *PartialCollectionError values; the merged view of the remaining files is
// always returned.
func (c *Collector) Collect() (*MergedRegistry, []error) {
	merged, _, errs := c.CollectWithStats()
	return merged, errs
}

// CollectWithStats is Collect plus counters about the pass.
func (c *Collector) CollectWithStats() (*MergedRegistry, CollectStats, []error) {
	var (
		stats CollectStats
		errs  []error
	)

	names, err := c.list()
	if err != nil {
		perr := &PartialCollectionError{Path: c.dir, Err: err}
		c.logger.Warn("multiprocess directory unreadable", "dir", c.dir, "error", err)
		return &MergedRegistry{}, stats, []error{perr}
	}

	dead := make(map[string]bool)
	var files []string
	for _, name := range names {
		if pid, ok := ParseTombstoneName(name); ok {
			dead[pid] = true
			continue
		}
		if _, ok := ParseFileName(name); ok {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	m := newMerger()
	for _, name := range files {
		info, _ := ParseFileName(name)
		if info.Kind == KindGauge && info.Mode.Live() && dead[info.ProcessID] {
			stats.SkippedDead++
			continue
		}

		path := filepath.Join(c.dir, name)
		entries, err := ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			stats.Missing++
			c.logger.Debug("process file vanished before read", "file", name)
			continue
		}
		if err != nil {
			errs = append(errs, &PartialCollectionError{Path: path, Err: err})
			c.logger.Warn("skipping unreadable process file", "file", name, "error", err)
			continue
		}

		var badKeys int
		for _, e := range entries {
			key, err := DecodeKey(e.Key)
			if err != nil {
				badKeys++
				continue
			}
			m.add(info, key, e.Value, e.Timestamp)
		}
		if badKeys > 0 {
			err := fmt.Errorf("%w: %d undecodable keys", ErrCorrupt, badKeys)
			errs = append(errs, &PartialCollectionError{Path: path, Err: err})
			c.logger.Warn("process file has undecodable keys", "file", name, "count", badKeys)
		}
		stats.Files++
	}

	merged, dropped := m.result()
	for _, id := range dropped {
		c.logger.Warn("metric name registered with conflicting types, keeping one",
			"metric", id.name, "kind", id.kind.String(), "mode", string(id.mode))
	}
	return merged, stats, errs
}

func (c *Collector) list() ([]string, error) {
	c.mu.Lock()
	if c.caching && c.cached != nil {
		names := c.cached
		c.mu.Unlock()
		return names, nil
	}
	gen := c.gen
	c.mu.Unlock()

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.Type().IsRegular() {
			names = append(names, de.Name())
		}
	}

	// A change seen while listing leaves the cache empty.
	c.mu.Lock()
	if c.caching && c.gen == gen {
		c.cached = names
	}
	c.mu.Unlock()
	return names, nil
}

// Invalidate drops the cached directory listing.
func (c *Collector) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.gen++
	c.mu.Unlock()
}

func (c *Collector) setCaching(on bool) {
	c.mu.Lock()
	c.caching = on
	c.cached = nil
	c.gen++
	c.mu.Unlock()
}
