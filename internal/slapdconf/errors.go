package slapdconf

import (
	"fmt"

	"github.com/giantswarm/ldapenv/internal/sentinel"
)

// ErrNoSchemaDir is returned when no OpenLDAP schema directory can be found.
const ErrNoSchemaDir = sentinel.Error("no slapd schema directory found")

// ConfigError reports an invalid instance configuration: a bad option
// value, an unresolvable template placeholder, or a referenced file or
// directory that does not exist.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// configErrorf builds a ConfigError with a formatted reason and no cause.
func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
