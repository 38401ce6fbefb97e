package multiproc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ErrStorageUnavailable is returned when the multiprocess directory is
// missing, not a directory, or not writable.
var ErrStorageUnavailable = errors.New("multiprocess storage unavailable")

// Store owns the process files of one process in the multiprocess directory.
// Files are created lazily, one per kind (and per mode for gauges).
type Store struct {
	dir    string
	pid    string
	logger *slog.Logger

	mu     sync.Mutex
	files  map[string]*MappedFile
	closed bool
}

// DefaultProcessID returns the operating system pid as a process id.
func DefaultProcessID() string {
	return strconv.Itoa(os.Getpid())
}

// OpenStore checks that dir is a writable directory and returns a store for
// the process pid. An empty pid means DefaultProcessID.
func OpenStore(dir, pid string, logger *slog.Logger) (*Store, error) {
	if pid == "" {
		pid = DefaultProcessID()
	}
	if err := ValidateProcessID(pid); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := CheckDirectory(dir); err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		pid:    pid,
		logger: logger.With("component", "multiproc.store", "pid", pid),
		files:  make(map[string]*MappedFile),
	}
	if err := s.revive(); err != nil {
		return nil, err
	}
	return s, nil
}

// revive clears a tombstone left by an earlier process with the same id,
// together with that process's live-mode gauge files.
func (s *Store) revive() error {
	tomb := filepath.Join(s.dir, TombstoneName(s.pid))
	if _, err := os.Stat(tomb); err != nil {
		return nil
	}
	removed, err := removeProcessFiles(s.dir, s.pid, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Remove(tomb); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info("process id reused, stale tombstone cleared", "removed_files", removed)
	return nil
}

// CheckDirectory verifies dir exists, is a directory and accepts new files.
func CheckDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: no directory configured", ErrStorageUnavailable)
	}
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, dir)
	}

	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable: %v", ErrStorageUnavailable, dir, err)
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return nil
}

// Dir returns the multiprocess directory.
func (s *Store) Dir() string { return s.dir }

// ProcessID returns the id embedded in this store's file names.
func (s *Store) ProcessID() string { return s.pid }

// Open returns the file for kind (and mode, for gauges), creating it on first
// use. It is idempotent.
func (s *Store) Open(kind Kind, mode GaugeMode) (*MappedFile, error) {
	if kind != KindGauge {
		mode = GaugeModeUnset
	}
	name := FileName(kind, mode, s.pid)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if f, ok := s.files[name]; ok {
		return f, nil
	}

	f, err := OpenMappedFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.files[name] = f
	s.logger.Debug("process file opened", "file", name)
	return f, nil
}

// Files returns the paths of the files opened so far.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.files))
	for _, f := range s.files {
		paths = append(paths, f.Path())
	}
	return paths
}

// Close unmaps every file. The files stay on disk for the collector; retiring
// them is the Reaper's job.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for name, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	s.files = nil
	return errors.Join(errs...)
}
