package config

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.ListenAddress != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
				}
				if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
					t.Errorf("expected shutdown timeout %v, got %v", DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
				}
				if cfg.Server.MaxHeaderBytes != DefaultMaxHeaderBytes {
					t.Errorf("expected max header bytes %d, got %d", DefaultMaxHeaderBytes, cfg.Server.MaxHeaderBytes)
				}
				if cfg.Server.TLS.MinVersion != DefaultTLSMinVersion {
					t.Errorf("expected TLS min version %q, got %q", DefaultTLSMinVersion, cfg.Server.TLS.MinVersion)
				}
				if cfg.Metrics.Path != DefaultMetricsPath {
					t.Errorf("expected metrics path %q, got %q", DefaultMetricsPath, cfg.Metrics.Path)
				}
				if cfg.Metrics.Handler != DefaultMetricsHandler {
					t.Errorf("expected metrics handler %q, got %q", DefaultMetricsHandler, cfg.Metrics.Handler)
				}
				if cfg.Metrics.DiagnosticsPath != DefaultDiagnosticsPath {
					t.Errorf("expected diagnostics path %q, got %q", DefaultDiagnosticsPath, cfg.Metrics.DiagnosticsPath)
				}
				if cfg.Metrics.DefaultGaugeMode != DefaultGaugeMode {
					t.Errorf("expected gauge mode %q, got %q", DefaultGaugeMode, cfg.Metrics.DefaultGaugeMode)
				}
				if !reflect.DeepEqual(cfg.Metrics.RequestDurationBuckets, DefaultRequestDurationBuckets) {
					t.Errorf("expected default buckets, got %v", cfg.Metrics.RequestDurationBuckets)
				}
				if cfg.Metrics.Reaper.Policy != DefaultReaperPolicy {
					t.Errorf("expected reaper policy %q, got %q", DefaultReaperPolicy, cfg.Metrics.Reaper.Policy)
				}
				if cfg.Metrics.Reaper.GracePeriod != DefaultReaperGrace {
					t.Errorf("expected grace period %v, got %v", DefaultReaperGrace, cfg.Metrics.Reaper.GracePeriod)
				}
				if cfg.Metrics.Reaper.SweepSchedule != DefaultReaperSchedule {
					t.Errorf("expected sweep schedule %q, got %q", DefaultReaperSchedule, cfg.Metrics.Reaper.SweepSchedule)
				}
				if cfg.Telemetry.Logging.Level != DefaultLogLevel {
					t.Errorf("expected logging level %q, got %q", DefaultLogLevel, cfg.Telemetry.Logging.Level)
				}
				if cfg.Telemetry.Health.ReadinessPath != DefaultReadinessPath {
					t.Errorf("expected readiness path %q, got %q", DefaultReadinessPath, cfg.Telemetry.Health.ReadinessPath)
				}
				// Booleans are not touched by ApplyDefaults.
				if cfg.Metrics.Enabled {
					t.Error("expected ApplyDefaults to leave metrics.enabled unset")
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				Server: ServerConfig{ListenAddress: "0.0.0.0:1234", ReadTimeout: 5 * time.Second},
				Metrics: MetricsConfig{
					Path:                   "/m",
					DefaultGaugeMode:       "max",
					RequestDurationBuckets: []float64{1, 2},
					Reaper:                 ReaperConfig{Policy: "grace", GracePeriod: time.Hour},
				},
				Telemetry: TelemetryConfig{Logging: LoggingConfig{Level: "debug", Format: "text"}},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.ListenAddress != "0.0.0.0:1234" {
					t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
				}
				if cfg.Server.ReadTimeout != 5*time.Second {
					t.Errorf("read timeout overwritten: %v", cfg.Server.ReadTimeout)
				}
				if cfg.Metrics.Path != "/m" || cfg.Metrics.DefaultGaugeMode != "max" {
					t.Errorf("metrics values overwritten: %+v", cfg.Metrics)
				}
				if !reflect.DeepEqual(cfg.Metrics.RequestDurationBuckets, []float64{1, 2}) {
					t.Errorf("buckets overwritten: %v", cfg.Metrics.RequestDurationBuckets)
				}
				if cfg.Metrics.Reaper.Policy != "grace" || cfg.Metrics.Reaper.GracePeriod != time.Hour {
					t.Errorf("reaper overwritten: %+v", cfg.Metrics.Reaper)
				}
				if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
					t.Errorf("logging overwritten: %+v", cfg.Telemetry.Logging)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg1 := Config{}
	ApplyDefaults(&cfg1)

	cfg2 := cfg1
	cfg2.Metrics.RequestDurationBuckets = append([]float64(nil), cfg1.Metrics.RequestDurationBuckets...)
	ApplyDefaults(&cfg2)

	if !reflect.DeepEqual(cfg1, cfg2) {
		t.Errorf("ApplyDefaults is not idempotent:\n%+v\n%+v", cfg1, cfg2)
	}
}

func TestApplyDefaults_BucketsNotShared(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.Metrics.RequestDurationBuckets[0] = 42

	if DefaultRequestDurationBuckets[0] == 42 {
		t.Error("ApplyDefaults shared the default bucket slice")
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Metrics.Enabled != DefaultMetricsEnabled {
		t.Errorf("expected metrics.enabled %v, got %v", DefaultMetricsEnabled, cfg.Metrics.Enabled)
	}
	if cfg.Metrics.WatchDirectory != DefaultWatchDirectory {
		t.Errorf("expected metrics.watch_directory %v, got %v", DefaultWatchDirectory, cfg.Metrics.WatchDirectory)
	}
	if cfg.Telemetry.Health.Enabled != DefaultHealthEnabled {
		t.Errorf("expected telemetry.health.enabled %v, got %v", DefaultHealthEnabled, cfg.Telemetry.Health.Enabled)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected default config to be valid, got: %v", err)
	}
}
