package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/telemetry/metrics"
	"mercator-hq/procmetrics/pkg/telemetry/tracing"
)

var (
	// ErrDuplicateRoute is returned by Handle for a path registered twice.
	ErrDuplicateRoute = errors.New("route already registered")

	// ErrInvalidRoute is returned by Handle for a route without path or handler.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrServerStarted is returned by Start on a server started before.
	ErrServerStarted = errors.New("server already started")
)

// Route is a registered HTTP endpoint.
type Route struct {
	// Path is the ServeMux pattern, e.g. "/metrics".
	Path string

	Handler http.Handler

	// ExcludeFromDocs hides the route from DocumentedRoutes, which API
	// documentation generators consume.
	ExcludeFromDocs bool
}

// ShutdownHook runs once after the HTTP server has stopped.
type ShutdownHook func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	// Version is reported by Version and the version endpoint.
	Version string

	// Logger receives request and lifecycle logs. Default: slog.Default().
	Logger *slog.Logger

	// Tracer records a span per request. Default: tracing.Noop().
	Tracer *tracing.Tracer
}

// Server hosts routes registered by extensions, runs shutdown hooks after it
// stops and instruments every route.
type Server struct {
	config  config.ServerConfig
	version string
	logger  *slog.Logger
	tracer  *tracing.Tracer

	mux            *http.ServeMux
	requestMetrics atomic.Pointer[metrics.RequestMetrics]

	mu         sync.RWMutex
	routes     []Route
	hooks      []ShutdownHook
	httpServer *http.Server
	listener   net.Listener
	isRunning  bool
	ready      chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a server for cfg.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	return &Server{
		config:  cfg,
		version: opts.Version,
		logger:  opts.Logger.With("component", "server"),
		tracer:  opts.Tracer,
		mux:     http.NewServeMux(),
		ready:   make(chan struct{}),
	}
}

// Version returns the version the server was built with.
func (s *Server) Version() string {
	return s.version
}

// Handle registers a route.
func (s *Server) Handle(route Route) error {
	if route.Path == "" || route.Handler == nil {
		return fmt.Errorf("%w: path and handler are required", ErrInvalidRoute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.routes {
		if r.Path == route.Path {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, route.Path)
		}
	}
	s.routes = append(s.routes, route)
	s.mux.Handle(route.Path, s.instrument(route))

	s.logger.Debug("route registered", "path", route.Path, "exclude_from_docs", route.ExcludeFromDocs)
	return nil
}

// Routes returns every registered route in registration order.
func (s *Server) Routes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Route(nil), s.routes...)
}

// DocumentedRoutes returns the routes not marked ExcludeFromDocs.
func (s *Server) DocumentedRoutes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var routes []Route
	for _, r := range s.routes {
		if !r.ExcludeFromDocs {
			routes = append(routes, r)
		}
	}
	return routes
}

// OnShutdown registers a hook run by Shutdown after the HTTP server stops.
// Hooks run in registration order.
func (s *Server) OnShutdown(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, hook)
}

// Instrument records request metrics for every route from now on.
func (s *Server) Instrument(m *metrics.RequestMetrics) {
	s.requestMetrics.Store(m)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux

	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = tracing.HTTPMiddleware(s.tracer)(handler)

	// Recovery middleware (outermost)
	handler = s.recoveryMiddleware(handler)

	return handler
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start listens on the configured address and serves until ctx is done or
// the server fails. It then shuts down, running the shutdown hooks.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return ErrServerStarted
	}

	var reloader *CertificateReloader
	if s.config.TLS.Enabled {
		var err error
		reloader, err = NewCertificateReloader(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.logger)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if reloader != nil {
		ln = tls.NewListener(ln, newTLSConfig(s.config.TLS, reloader))
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.isRunning = true
	s.mu.Unlock()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if reloader != nil {
		go func() {
			if err := reloader.Watch(watchCtx); err != nil {
				s.logger.Warn("certificate reloading disabled", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String(), "version", s.version,
			"tls_enabled", reloader != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()
	close(s.ready)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if shutdownErr := s.Shutdown(context.Background()); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	}
}

// Shutdown stops the HTTP server within the configured shutdown timeout and
// then runs the shutdown hooks. It runs once; later calls return the first
// result. Hooks run even when the server never started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		var errs []error

		s.mu.RLock()
		httpServer := s.httpServer
		hooks := append([]ShutdownHook(nil), s.hooks...)
		s.mu.RUnlock()

		if httpServer != nil {
			s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		for i, hook := range hooks {
			if err := hook(shutdownCtx); err != nil {
				s.logger.Error("shutdown hook failed", "hook", i, "error", err)
				errs = append(errs, fmt.Errorf("shutdown hook %d: %w", i, err))
			}
		}

		s.logger.Info("server stopped")
		s.shutdownErr = errors.Join(errs...)
	})

	return s.shutdownErr
}
