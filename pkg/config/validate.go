package config

import (
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the invalid field (e.g., "metrics.reaper.policy").
	Field string

	// Message describes what is wrong with the field.
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	timeouts := map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
	}
	for _, field := range []string{"server.read_timeout", "server.write_timeout", "server.idle_timeout", "server.shutdown_timeout"} {
		if timeouts[field] < 0 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "timeout must be non-negative",
			})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "certificate file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
			})
		}
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if cfg.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "metrics.path",
				Message: "metrics path must start with /",
			})
		}

		switch cfg.Handler {
		case "text":
			if cfg.DiagnosticsPath == "" || cfg.DiagnosticsPath[0] != '/' {
				errs = append(errs, FieldError{
					Field:   "metrics.diagnostics_path",
					Message: "diagnostics path must start with /",
				})
			} else if cfg.DiagnosticsPath == cfg.Path {
				errs = append(errs, FieldError{
					Field:   "metrics.diagnostics_path",
					Message: "diagnostics path must differ from metrics path",
				})
			}
		case "promhttp":
		default:
			errs = append(errs, FieldError{
				Field:   "metrics.handler",
				Message: fmt.Sprintf("unknown handler %q (want text or promhttp)", cfg.Handler),
			})
		}
	}

	if cfg.ProcessID != "" {
		if err := multiproc.ValidateProcessID(cfg.ProcessID); err != nil {
			errs = append(errs, FieldError{
				Field:   "metrics.process_id",
				Message: err.Error(),
			})
		}
	}

	if _, err := multiproc.ParseGaugeMode(cfg.DefaultGaugeMode); err != nil {
		errs = append(errs, FieldError{
			Field:   "metrics.default_gauge_mode",
			Message: err.Error(),
		})
	}

	for i, b := range cfg.RequestDurationBuckets {
		if math.IsNaN(b) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("metrics.request_duration_buckets[%d]", i),
				Message: "bucket bound must be a number",
			})
			continue
		}
		if i > 0 && b <= cfg.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("metrics.request_duration_buckets[%d]", i),
				Message: "bucket bounds must be strictly increasing",
			})
		}
	}

	errs = append(errs, validateReaper(&cfg.Reaper)...)

	return errs
}

func validateReaper(cfg *ReaperConfig) []FieldError {
	var errs []FieldError

	policy, err := multiproc.ParseReapPolicy(cfg.Policy)
	if err != nil {
		errs = append(errs, FieldError{
			Field:   "metrics.reaper.policy",
			Message: err.Error(),
		})
	}

	if cfg.GracePeriod < 0 {
		errs = append(errs, FieldError{
			Field:   "metrics.reaper.grace_period",
			Message: "grace period must be non-negative",
		})
	}

	if policy == multiproc.ReapGrace && cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "metrics.reaper.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.SweepSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.timeout",
				Message: "timeout must be non-negative",
			})
		}
	}

	if cfg.Health.Enabled {
		paths := []struct {
			field, value string
		}{
			{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
			{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
		}
		for _, p := range paths {
			if p.value == "" {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path is required when health checks are enabled",
				})
			} else if p.value[0] != '/' {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path must start with /",
				})
			}
		}

		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
		if cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout exceeds reasonable limit (60s)",
			})
		}
	}

	return errs
}
