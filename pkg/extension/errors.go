package extension

import (
	"errors"
	"fmt"
)

var (
	// ErrHostTooOld reports a host below MinHostVersion.
	ErrHostTooOld = errors.New("host version too old")

	// ErrMetricsUnavailable reports a platform without memory-mapped
	// process file support.
	ErrMetricsUnavailable = errors.New("multiprocess metrics unavailable")
)

// ConfigurationError aborts startup. It is returned before any metrics state
// is created.
type ConfigurationError struct {
	// Reason describes the failed precondition.
	Reason string

	// Err is ErrHostTooOld, ErrMetricsUnavailable or a version parse error.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("metrics extension configuration error: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
