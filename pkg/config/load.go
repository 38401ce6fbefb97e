package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables naming the multiprocess directory. They are read by
// the prometheus client libraries of other languages too, so a shared
// directory can be configured once for a mixed fleet.
const (
	MultiprocDirEnv       = "PROMETHEUS_MULTIPROC_DIR"
	LegacyMultiprocDirEnv = "prometheus_multiproc_dir"
)

// EnvPrefix prefixes every procmetrics environment override.
const EnvPrefix = "PROCMETRICS_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML into a configuration seeded with defaults.
// Fields absent from data keep their default values. The result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PROCMETRICS_SECTION_FIELD (e.g., PROCMETRICS_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format PROCMETRICS_SECTION_FIELD. Values that
// fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := getenv("SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := getenv("SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := getenv("SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := getenv("SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := getenv("SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := getenv("SERVER_MAX_HEADER_BYTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = n
		}
	}
	if val := getenv("SERVER_TLS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.TLS.Enabled = b
		}
	}
	if val := getenv("SERVER_TLS_CERT_FILE"); val != "" {
		cfg.Server.TLS.CertFile = val
	}
	if val := getenv("SERVER_TLS_KEY_FILE"); val != "" {
		cfg.Server.TLS.KeyFile = val
	}

	// Metrics overrides. The shared directory variables come first so the
	// prefixed form wins when both are set.
	if val := os.Getenv(LegacyMultiprocDirEnv); val != "" {
		cfg.Metrics.MultiprocDir = val
	}
	if val := os.Getenv(MultiprocDirEnv); val != "" {
		cfg.Metrics.MultiprocDir = val
	}
	if val := getenv("METRICS_MULTIPROC_DIR"); val != "" {
		cfg.Metrics.MultiprocDir = val
	}
	if val := getenv("METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := getenv("METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}
	if val := getenv("METRICS_HANDLER"); val != "" {
		cfg.Metrics.Handler = strings.ToLower(val)
	}
	if val := getenv("METRICS_DIAGNOSTICS_PATH"); val != "" {
		cfg.Metrics.DiagnosticsPath = val
	}
	if val := getenv("METRICS_PROCESS_ID"); val != "" {
		cfg.Metrics.ProcessID = val
	}
	if val := getenv("METRICS_DEFAULT_GAUGE_MODE"); val != "" {
		cfg.Metrics.DefaultGaugeMode = strings.ToLower(val)
	}
	if val := getenv("METRICS_WATCH_DIRECTORY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.WatchDirectory = b
		}
	}
	if val := getenv("METRICS_REAPER_POLICY"); val != "" {
		cfg.Metrics.Reaper.Policy = strings.ToLower(val)
	}
	if val := getenv("METRICS_REAPER_GRACE_PERIOD"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Metrics.Reaper.GracePeriod = d
		}
	}
	if val := getenv("METRICS_REAPER_SWEEP_SCHEDULE"); val != "" {
		cfg.Metrics.Reaper.SweepSchedule = val
	}
	if val := getenv("METRICS_REAPER_REMOVE_ALL"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Reaper.RemoveAll = b
		}
	}

	// Telemetry overrides
	if val := getenv("TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := getenv("TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = strings.ToLower(val)
	}
	if val := getenv("TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := getenv("TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := getenv("TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	if val := getenv("TELEMETRY_HEALTH_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Health.Enabled = b
		}
	}
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}
