package core

import (
	"fmt"
	"time"

	"github.com/giantswarm/ldapenv/internal/ldif"
	"github.com/giantswarm/ldapenv/internal/mutator"
	"github.com/giantswarm/ldapenv/internal/sentinel"
	"github.com/giantswarm/ldapenv/internal/slapadd"
	"github.com/giantswarm/ldapenv/internal/slapdconf"
)

const (
	// ErrServerClosed is returned by operations on a closed Server.
	ErrServerClosed = sentinel.Error("server closed")

	// ErrNotRunning is returned by mutations when the server is not Running.
	ErrNotRunning = sentinel.Error("server not running")

	// ErrServerRunning is returned when an offline load is attempted while
	// slapd owns the database files.
	ErrServerRunning = sentinel.Error("offline load refused: server process is attached")

	// ErrPortConflict marks a startup failure caused by a port already in use.
	ErrPortConflict = sentinel.Error("port already in use")

	// ErrInvalidLDIF is returned for LDIF that cannot be parsed or applied.
	ErrInvalidLDIF = ldif.ErrInvalidLDIF

	// ErrNoSchemaDir is returned when no system schema directory is found.
	ErrNoSchemaDir = slapdconf.ErrNoSchemaDir
)

type (
	// ConfigError reports a configuration the caller has to fix.
	ConfigError = slapdconf.ConfigError

	// LoadError reports a failed offline load, tagged with layer and
	// payload index.
	LoadError = slapadd.LoadError

	// MutationError reports a failed protocol operation on a running server.
	MutationError = mutator.MutationError
)

// ResourceError reports a failure to acquire a local resource: the
// workspace, a port or TLS material. Retrying the whole start may succeed.
type ResourceError struct {
	Stage string
	Err   error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Stage, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// StartupFailedError reports that slapd exited or could not be launched
// before it became ready.
type StartupFailedError struct {
	// Attempts is the number of spawn attempts made.
	Attempts int
	// Output is the tail of slapd's stderr and stdout.
	Output string
	Err    error
}

func (e *StartupFailedError) Error() string {
	msg := fmt.Sprintf("slapd failed to start after %d attempt(s): %v", e.Attempts, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *StartupFailedError) Unwrap() error {
	return e.Err
}

// StartupTimeoutError reports that slapd did not become ready in time. The
// process has been killed.
type StartupTimeoutError struct {
	Timeout time.Duration
	Output  string
	Err     error
}

func (e *StartupTimeoutError) Error() string {
	msg := fmt.Sprintf("slapd not ready within %s", e.Timeout)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *StartupTimeoutError) Unwrap() error {
	return e.Err
}
