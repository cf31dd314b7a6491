package ldapenv

import "github.com/giantswarm/ldapenv/internal/core"

// Sentinel errors for error inspection with errors.Is.
const (
	// ErrServerClosed is returned by operations on a closed Server.
	ErrServerClosed = core.ErrServerClosed

	// ErrNotRunning is returned by operations on a Server that is not
	// running.
	ErrNotRunning = core.ErrNotRunning

	// ErrPortConflict is matched by a StartupFailedError when slapd could
	// not bind its ports.
	ErrPortConflict = core.ErrPortConflict

	// ErrInvalidLDIF is returned for LDIF that cannot be parsed.
	ErrInvalidLDIF = core.ErrInvalidLDIF

	// ErrNoSchemaDir is matched by a ConfigError when a payload needs the
	// system schema directory and none was found.
	ErrNoSchemaDir = core.ErrNoSchemaDir
)

// Error types returned by Run and by Server operations. Use errors.As to
// inspect them.
type (
	// ConfigError reports invalid input: options, payloads or templates.
	ConfigError = core.ConfigError

	// ResourceError reports a failure to obtain the workspace, a port or
	// TLS material.
	ResourceError = core.ResourceError

	// LoadError reports a failed slapadd run, with its layer and payload
	// index.
	LoadError = core.LoadError

	// StartupFailedError reports that slapd exited before becoming ready.
	StartupFailedError = core.StartupFailedError

	// StartupTimeoutError reports that slapd did not become ready in time.
	StartupTimeoutError = core.StartupTimeoutError

	// MutationError reports a failed Add, Modify or Delete, with the LDAP
	// result code.
	MutationError = core.MutationError
)
