package multiproc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher keeps a Collector's directory listing cached between scrapes.
// While it runs, the collector lists the directory only after a process file
// or tombstone was created, removed or renamed. Any watch error drops the
// cache so the next pass lists the directory again.
type DirWatcher struct {
	collector *Collector
	watcher   *fsnotify.Watcher
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDirWatcher creates a watcher for the collector's directory.
func NewDirWatcher(c *Collector, logger *slog.Logger) (*DirWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &DirWatcher{
		collector: c,
		watcher:   w,
		logger:    logger.With("component", "multiproc.watcher", "dir", c.Dir()),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Running reports whether Watch is active and the listing cache is in use.
func (dw *DirWatcher) Running() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.running
}

// Watch blocks until ctx is cancelled or Stop is called. A watcher can only
// be run once.
func (dw *DirWatcher) Watch(ctx context.Context) error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	select {
	case <-dw.doneCh:
		dw.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	default:
	}

	if err := dw.watcher.Add(dw.collector.Dir()); err != nil {
		dw.mu.Unlock()
		return fmt.Errorf("failed to watch %q: %w", dw.collector.Dir(), err)
	}
	dw.running = true
	dw.collector.setCaching(true)
	dw.mu.Unlock()

	defer func() {
		dw.collector.setCaching(false)
		dw.mu.Lock()
		dw.running = false
		dw.mu.Unlock()
		close(dw.doneCh)
	}()

	dw.logger.Info("directory watcher started")

	for {
		select {
		case <-ctx.Done():
			dw.logger.Info("directory watcher stopped (context cancelled)")
			return nil

		case <-dw.stopCh:
			dw.logger.Info("directory watcher stopped")
			return nil

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevantEvent(event) {
				continue
			}
			dw.logger.Debug("process file event", "file", filepath.Base(event.Name), "op", event.Op.String())
			dw.collector.Invalidate()

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Includes fsnotify.ErrEventOverflow: events were lost.
			dw.logger.Warn("directory watcher error, listing cache dropped", "error", err)
			dw.collector.Invalidate()
		}
	}
}

// Stop ends Watch and releases the underlying watcher.
func (dw *DirWatcher) Stop() error {
	dw.mu.Lock()
	running := dw.running
	select {
	case <-dw.stopCh:
	default:
		close(dw.stopCh)
	}
	dw.mu.Unlock()

	if running {
		<-dw.doneCh
	}

	if err := dw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// relevantEvent reports whether event changes the set of process files or
// tombstones. Value writes do not change the listing.
func relevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if _, ok := ParseFileName(name); ok {
		return true
	}
	_, ok := ParseTombstoneName(name)
	return ok
}
