package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/multiproc"
	"mercator-hq/procmetrics/pkg/server"
	"mercator-hq/procmetrics/pkg/telemetry/health"
	"mercator-hq/procmetrics/pkg/telemetry/metrics"
	"mercator-hq/procmetrics/pkg/telemetry/tracing"
)

// Host is the server the extension attaches to.
type Host interface {
	Version() string
	Handle(route server.Route) error
	OnShutdown(hook server.ShutdownHook)
}

// MultiprocDir returns the multiprocess directory named by the environment:
// PROMETHEUS_MULTIPROC_DIR, then the legacy prometheus_multiproc_dir.
func MultiprocDir() string {
	if dir := os.Getenv(config.MultiprocDirEnv); dir != "" {
		return dir
	}
	return os.Getenv(config.LegacyMultiprocDirEnv)
}

// Options configures the extension.
type Options struct {
	// Logger receives setup and lifecycle logs. Default: slog.Default().
	Logger *slog.Logger

	// Tracer is passed to the metrics handler. Default: tracing.Noop().
	Tracer *tracing.Tracer

	// Health, when set, receives the multiproc_dir, collector and reaper
	// readiness checks.
	Health *health.Checker

	// Probe reports whether metrics can be recorded on this platform.
	// Default: multiproc.Supported.
	Probe func() bool
}

// Metrics is the state created by Setup. Registry is what instrumentation
// call sites use.
type Metrics struct {
	Registry  *multiproc.Registry
	Collector *multiproc.Collector

	// Handler serves metrics.path: a *metrics.Handler, or the promhttp
	// handler when metrics.handler is "promhttp".
	Handler http.Handler

	// Diagnostics is the scrape health served on metrics.diagnostics_path.
	// It is nil with the promhttp handler.
	Diagnostics *metrics.Diagnostics

	// Store is nil when the directory was unavailable at setup; the registry
	// then records nothing.
	Store  *multiproc.Store
	Reaper *multiproc.Reaper

	// Watcher is nil unless metrics.watch_directory is set.
	Watcher *multiproc.DirWatcher

	Dir       string
	ProcessID string

	// Multiprocess is false in single-process mode, where Dir is a private
	// temporary directory removed on shutdown.
	Multiprocess bool
}

// Setup is New(cfg, opts).Setup(ctx, host).
func Setup(ctx context.Context, host Host, cfg *config.Config, opts Options) (*Metrics, error) {
	return New(cfg, opts).Setup(ctx, host)
}

// Extension attaches multiprocess metrics to a host.
type Extension struct {
	cfg  *config.Config
	opts Options
}

// New creates the extension for cfg.
func New(cfg *config.Config, opts Options) *Extension {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.Probe == nil {
		opts.Probe = multiproc.Supported
	}
	return &Extension{cfg: cfg, opts: opts}
}

// Startup checks the host version and the metrics probe, then runs Setup.
// A failed precondition returns a *ConfigurationError before any state is
// created. Startup returns nil metrics when metrics are disabled in the
// configuration.
func (e *Extension) Startup(ctx context.Context, host Host) (*Metrics, error) {
	if !e.cfg.Metrics.Enabled {
		e.opts.Logger.Info("metrics disabled by configuration")
		return nil, nil
	}
	if err := CheckHostVersion(host.Version()); err != nil {
		return nil, err
	}
	if !e.opts.Probe() {
		return nil, &ConfigurationError{
			Reason: "memory-mapped process files are not supported on this platform",
			Err:    ErrMetricsUnavailable,
		}
	}
	return e.Setup(ctx, host)
}

// Setup creates the registry, collector and reaper, registers the metrics
// route and the shutdown hook, and returns the created state.
//
// When the probe fails, Setup logs that metrics are disabled and returns
// nil without registering anything. A multiprocess directory from the
// configuration or the environment selects multiprocess mode; without one
// the process records into a private temporary directory.
func (e *Extension) Setup(ctx context.Context, host Host) (*Metrics, error) {
	logger := e.opts.Logger.With("component", "extension")

	if !e.opts.Probe() {
		logger.Warn("metrics disabled: memory-mapped process files are not supported on this platform")
		return nil, nil
	}

	mode, err := multiproc.ParseGaugeMode(e.cfg.Metrics.DefaultGaugeMode)
	if err != nil {
		return nil, err
	}
	policy, err := multiproc.ParseReapPolicy(e.cfg.Metrics.Reaper.Policy)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Dir:          e.cfg.Metrics.MultiprocDir,
		ProcessID:    e.cfg.Metrics.ProcessID,
		Multiprocess: true,
	}
	if m.Dir == "" {
		m.Dir = MultiprocDir()
	}
	if m.ProcessID == "" {
		m.ProcessID = multiproc.DefaultProcessID()
	}

	if m.Dir == "" {
		dir, err := os.MkdirTemp("", "procmetrics-")
		if err != nil {
			return nil, fmt.Errorf("failed to create single-process metrics directory: %w", err)
		}
		m.Dir = dir
		m.Multiprocess = false
		logger.Info("using single-process mode for metrics", "dir", dir)
	} else {
		logger.Info("using multiprocess mode for metrics", "dir", m.Dir, "pid", m.ProcessID)
	}

	m.Store, err = multiproc.OpenStore(m.Dir, m.ProcessID, e.opts.Logger)
	if err != nil {
		if !errors.Is(err, multiproc.ErrStorageUnavailable) {
			return nil, err
		}
		// Instrumentation keeps working as a no-op.
		logger.Warn("multiprocess directory unavailable, metrics of this process will not be recorded",
			"dir", m.Dir, "error", err)
		m.Store = nil
	}

	m.Registry = multiproc.NewRegistry(m.Store, multiproc.RegistryOptions{
		DefaultGaugeMode: mode,
		Logger:           e.opts.Logger,
	})
	m.Collector = multiproc.NewCollector(m.Dir, multiproc.CollectorOptions{Logger: e.opts.Logger})

	m.Reaper, err = multiproc.NewReaper(m.Dir, multiproc.ReaperOptions{
		Policy:        policy,
		GracePeriod:   e.cfg.Metrics.Reaper.GracePeriod,
		SweepSchedule: e.cfg.Metrics.Reaper.SweepSchedule,
		RemoveAll:     e.cfg.Metrics.Reaper.RemoveAll,
		Logger:        e.opts.Logger,
	})
	if err != nil {
		return nil, e.abort(m, err)
	}

	if err := e.registerRoutes(host, m); err != nil {
		return nil, e.abort(m, err)
	}

	if m.Multiprocess {
		if err := m.Reaper.Start(ctx); err != nil {
			logger.Error("failed to start reaper scheduler", "error", err)
		}
	}
	if e.cfg.Metrics.WatchDirectory {
		e.startWatcher(ctx, m, logger)
	}
	if e.opts.Health != nil {
		e.opts.Health.RegisterCheck("multiproc_dir", health.DirectoryCheck(m.Dir))
		e.opts.Health.RegisterCheck("collector", health.CollectorCheck(m.Collector))
		scheduled := m.Multiprocess && e.cfg.Metrics.Reaper.SweepSchedule != ""
		e.opts.Health.RegisterCheck("reaper", health.ReaperCheck(m.Reaper, scheduled))
	}

	host.OnShutdown(func(ctx context.Context) error {
		return e.shutdown(m, logger)
	})

	return m, nil
}

// registerRoutes mounts the scrape route, plus the diagnostics route for the
// text handler.
func (e *Extension) registerRoutes(host Host, m *Metrics) error {
	if e.cfg.Metrics.Handler == "promhttp" {
		h, err := metrics.PromHTTPHandler(m.Collector, nil, e.opts.Logger)
		if err != nil {
			return fmt.Errorf("failed to create promhttp handler: %w", err)
		}
		m.Handler = h
	} else {
		h := metrics.NewHandler(m.Collector, metrics.HandlerOptions{
			Logger: e.opts.Logger,
			Tracer: e.opts.Tracer,
		})
		m.Handler = h
		m.Diagnostics = h.Diagnostics()
	}

	if err := host.Handle(server.Route{
		Path:            e.cfg.Metrics.Path,
		Handler:         m.Handler,
		ExcludeFromDocs: true,
	}); err != nil {
		return fmt.Errorf("failed to register metrics route: %w", err)
	}

	if m.Diagnostics == nil || e.cfg.Metrics.DiagnosticsPath == "" {
		return nil
	}
	if err := host.Handle(server.Route{
		Path:            e.cfg.Metrics.DiagnosticsPath,
		Handler:         m.Diagnostics.Handler(e.opts.Logger),
		ExcludeFromDocs: true,
	}); err != nil {
		return fmt.Errorf("failed to register diagnostics route: %w", err)
	}
	return nil
}

func (e *Extension) startWatcher(ctx context.Context, m *Metrics, logger *slog.Logger) {
	w, err := multiproc.NewDirWatcher(m.Collector, e.opts.Logger)
	if err != nil {
		logger.Warn("directory watcher unavailable, listing the directory on every scrape", "error", err)
		return
	}
	m.Watcher = w
	go func() {
		if err := w.Watch(ctx); err != nil {
			logger.Warn("directory watcher stopped", "error", err)
		}
	}()
}

// shutdown closes the process files and retires them. In single-process mode
// the private directory is removed instead.
func (e *Extension) shutdown(m *Metrics, logger *slog.Logger) error {
	var errs []error

	if m.Watcher != nil {
		if err := m.Watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	m.Reaper.Stop()

	if err := e.closeStore(m); err != nil {
		errs = append(errs, fmt.Errorf("failed to close process files: %w", err))
	}

	if !m.Multiprocess {
		if err := os.RemoveAll(m.Dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove metrics directory: %w", err))
		}
		return errors.Join(errs...)
	}

	if m.Store != nil {
		logger.Info("marking process as dead", "pid", m.ProcessID)
		if err := m.Reaper.MarkDead(m.ProcessID); err != nil {
			errs = append(errs, fmt.Errorf("failed to mark process %s dead: %w", m.ProcessID, err))
		}
	}
	return errors.Join(errs...)
}

// abort releases what Setup created before failing with err.
func (e *Extension) abort(m *Metrics, err error) error {
	_ = e.closeStore(m)
	if !m.Multiprocess {
		_ = os.RemoveAll(m.Dir)
	}
	return err
}

func (e *Extension) closeStore(m *Metrics) error {
	if m.Store == nil {
		return nil
	}
	return m.Store.Close()
}
