package config

import "time"

// Config is the root configuration structure for procmetrics.
// It contains all configuration sections for the metrics server, the
// multiprocess store and telemetry.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Metrics contains multiprocess metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Telemetry contains logging and health check configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address to listen on (e.g., "0.0.0.0:9090").
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown, including shutdown hooks.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read
	// parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS serves the worker endpoints over HTTPS when enabled.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures HTTPS for the worker endpoints. The certificate pair
// is reloaded when either file changes on disk.
type TLSConfig struct {
	// Enabled indicates whether TLS should be used.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate file.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key file.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3").
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// MetricsConfig configures multiprocess metric storage and exposition.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is mounted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Handler selects the exposition implementation behind Path.
	// "text" runs the built-in collect-then-encode handler and serves its
	// scrape diagnostics on DiagnosticsPath. "promhttp" serves the merged
	// families through the client_golang handler instead.
	// Options: "text", "promhttp"
	// Default: "text"
	Handler string `yaml:"handler"`

	// DiagnosticsPath is the HTTP path for scrape diagnostics of the
	// "text" handler. It must differ from Path.
	// Default: "/metrics/diagnostics"
	DiagnosticsPath string `yaml:"diagnostics_path"`

	// MultiprocDir is the shared directory holding per-process files.
	// When empty, PROMETHEUS_MULTIPROC_DIR (or the legacy lowercase name)
	// is consulted. When still empty the server runs in single-process mode
	// with a private temporary directory.
	// Default: ""
	MultiprocDir string `yaml:"multiproc_dir"`

	// ProcessID identifies this process inside MultiprocDir.
	// Default: the operating system pid
	ProcessID string `yaml:"process_id"`

	// DefaultGaugeMode is the aggregation mode for gauges that do not set one.
	// Options: "all", "liveall", "sum", "livesum", "max", "livemax", "min",
	// "livemin", "mostrecent", "livemostrecent"
	// Default: "livesum"
	DefaultGaugeMode string `yaml:"default_gauge_mode"`

	// WatchDirectory caches the directory listing between scrapes and
	// invalidates it on filesystem events.
	// Default: true
	WatchDirectory bool `yaml:"watch_directory"`

	// RequestDurationBuckets defines histogram buckets for HTTP request durations.
	// Default: [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// Reaper configures cleanup of files left by dead processes.
	Reaper ReaperConfig `yaml:"reaper"`
}

// ReaperConfig configures the dead-process reaper.
type ReaperConfig struct {
	// Policy selects how dead process files are handled.
	// Options: "immediate", "grace"
	// Default: "immediate"
	Policy string `yaml:"policy"`

	// GracePeriod is how long tombstoned files are kept under the grace policy.
	// Default: 5m
	GracePeriod time.Duration `yaml:"grace_period"`

	// SweepSchedule is a cron expression for sweeping expired tombstones.
	// Default: "*/5 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// RemoveAll also deletes counter, histogram and non-live gauge files.
	// Totals from the dead process are lost when enabled.
	// Default: false
	RemoveAll bool `yaml:"remove_all"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are mounted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the HTTP path for the liveness probe.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the HTTP path for the readiness probe.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the maximum duration for a readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TracingConfig contains distributed tracing configuration. Spans cover
// HTTP requests and scrape collection passes and are exported over OTLP gRPC.
type TracingConfig struct {
	// Enabled controls whether spans are recorded and exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "procmetrics"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
