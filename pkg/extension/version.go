package extension

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinHostVersion is the oldest host version the extension starts on.
const MinHostVersion = "1.2"

// canonicalVersion returns version in the "vMAJOR[.MINOR[.PATCH]]" form
// semver expects. The "v" prefix is optional in host versions.
func canonicalVersion(version string) (string, error) {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return v, nil
}

// CheckHostVersion returns a *ConfigurationError when version is below
// MinHostVersion or cannot be parsed. Versions order by semantic versioning
// rules: a pre-release sorts before its release and build metadata is
// ignored.
func CheckHostVersion(version string) error {
	have, err := canonicalVersion(version)
	if err != nil {
		return &ConfigurationError{
			Reason: fmt.Sprintf("cannot parse host version %q", version),
			Err:    err,
		}
	}
	if semver.Compare(have, "v"+MinHostVersion) < 0 {
		return &ConfigurationError{
			Reason: fmt.Sprintf("the metrics extension requires host v%s or above, running %s", MinHostVersion, version),
			Err:    ErrHostTooOld,
		}
	}
	return nil
}
