package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultTLSMinVersion   = "1.3"

	// Metrics defaults
	DefaultMetricsEnabled  = true
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsHandler  = "text"
	DefaultDiagnosticsPath = "/metrics/diagnostics"
	DefaultGaugeMode       = "livesum"
	DefaultWatchDirectory  = true
	DefaultReaperPolicy    = "immediate"
	DefaultReaperGrace     = 5 * time.Minute
	DefaultReaperSchedule  = "*/5 * * * *"
	DefaultReaperRemoveAll = false

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "procmetrics"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultRequestDurationBuckets are the histogram buckets used for HTTP
// request durations when none are configured.
var DefaultRequestDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewDefaultConfig returns a configuration with every default applied,
// including boolean fields whose default is true.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{
			Enabled:        DefaultMetricsEnabled,
			WatchDirectory: DefaultWatchDirectory,
			Reaper: ReaperConfig{
				RemoveAll: DefaultReaperRemoveAll,
			},
		},
		Telemetry: TelemetryConfig{
			Health: HealthConfig{
				Enabled: DefaultHealthEnabled,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
// Boolean fields are left untouched because false is a meaningful value;
// NewDefaultConfig seeds them before a file is parsed.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Handler == "" {
		cfg.Metrics.Handler = DefaultMetricsHandler
	}
	if cfg.Metrics.DiagnosticsPath == "" {
		cfg.Metrics.DiagnosticsPath = DefaultDiagnosticsPath
	}
	if cfg.Metrics.DefaultGaugeMode == "" {
		cfg.Metrics.DefaultGaugeMode = DefaultGaugeMode
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Metrics.Reaper.Policy == "" {
		cfg.Metrics.Reaper.Policy = DefaultReaperPolicy
	}
	if cfg.Metrics.Reaper.GracePeriod == 0 {
		cfg.Metrics.Reaper.GracePeriod = DefaultReaperGrace
	}
	if cfg.Metrics.Reaper.SweepSchedule == "" {
		cfg.Metrics.Reaper.SweepSchedule = DefaultReaperSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.Sampler == DefaultTracingSampler && cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
