package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ParseDurationField parses a duration config value. Empty strings mean
// "unset" and parse to zero so callers can substitute a default. Negative
// values are rejected at parse time rather than at the point of use.
func ParseDurationField(path, raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	switch {
	case err != nil:
		return 0, errors.Wrapf(err, "%s: invalid duration %q", path, raw)
	case d < 0:
		return 0, errors.Newf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for unset
// (or zero) values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d > 0 {
		return d, nil
	}
	return def, nil
}
