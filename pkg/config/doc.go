// Package config provides configuration management for procmetrics.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("procmetrics.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("procmetrics.yaml")
//
// LoadConfigWithEnvOverrides accepts an empty path, in which case the
// configuration starts from defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PROCMETRICS_SECTION_FIELD.
// For example:
//
//   - PROCMETRICS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PROCMETRICS_METRICS_REAPER_POLICY overrides metrics.reaper.policy
//   - PROCMETRICS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The multiprocess directory also honors PROMETHEUS_MULTIPROC_DIR and its
// legacy lowercase spelling, so one variable configures every client
// library writing into the same directory. PROCMETRICS_METRICS_MULTIPROC_DIR
// wins over both.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	if err := config.ReloadConfig("procmetrics.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// ReloadConfig replaces the global configuration on every successful call
// and keeps the current one when loading fails.
//
// # Validation
//
// Validation collects every problem into a ValidationError. Gauge modes,
// reap policies and process ids are checked with the same parsers the
// multiproc package uses, and sweep schedules with the cron parser.
package config
