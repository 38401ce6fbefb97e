package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with every default applied.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: *NewDefaultConfig()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithMultiprocDir sets the shared multiprocess directory.
func (b *ConfigBuilder) WithMultiprocDir(dir string) *ConfigBuilder {
	b.cfg.Metrics.MultiprocDir = dir
	return b
}

// WithGaugeMode sets the default gauge mode.
func (b *ConfigBuilder) WithGaugeMode(mode string) *ConfigBuilder {
	b.cfg.Metrics.DefaultGaugeMode = mode
	return b
}

// WithGraceReaper selects the grace reap policy.
func (b *ConfigBuilder) WithGraceReaper(period time.Duration, schedule string) *ConfigBuilder {
	b.cfg.Metrics.Reaper.Policy = "grace"
	b.cfg.Metrics.Reaper.GracePeriod = period
	b.cfg.Metrics.Reaper.SweepSchedule = schedule
	return b
}

// WithLogging sets the logging level and format.
func (b *ConfigBuilder) WithLogging(level, format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
