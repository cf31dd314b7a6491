package ldapenv

import (
	"context"
	"crypto/tls"

	"github.com/go-ldap/ldap/v3"

	"github.com/giantswarm/ldapenv/internal/core"
	"github.com/giantswarm/ldapenv/internal/process"
)

// State is the lifecycle state of a Server.
type State = core.State

// Server states. A Server returned by Run is StateRunning; Close moves it
// through StateStopping to StateStopped.
const (
	StateUnstarted = core.StateUnstarted
	StateStarting  = core.StateStarting
	StateReady     = core.StateReady
	StateRunning   = core.StateRunning
	StateStopping  = core.StateStopping
	StateStopped   = core.StateStopped
	StateFailed    = core.StateFailed
)

// StopOutcome reports how Close ended the slapd process.
type StopOutcome = process.StopOutcome

// Stop outcomes.
const (
	OutcomeNone     = process.OutcomeNone
	OutcomeGraceful = process.OutcomeGraceful
	OutcomeForced   = process.OutcomeForced
	OutcomeExited   = process.OutcomeExited
)

// Compile-time interface satisfaction check.
var _ Server = (*core.Server)(nil)

// Server is a running slapd instance owned by the caller. Close it when
// done; the workspace and ports are released only then.
//
// All methods are safe for concurrent use. Mutations are not serialized:
// concurrent calls run as independent LDAP operations.
type Server interface {
	// ID returns the instance identifier used in logs and in the workspace
	// directory name.
	ID() string

	// Host returns the address clients connect to.
	Host() string
	// Port returns the ldap:// port.
	Port() int
	// TLSPort returns the ldaps:// port, or 0 when TLS is disabled.
	TLSPort() int
	// URL returns the ldap:// URL.
	URL() string
	// TLSURL returns the ldaps:// URL, or "" when TLS is disabled.
	TLSURL() string
	// TLSCertPEM returns the certificate served on the ldaps listener.
	TLSCertPEM() []byte
	// TLSConfig returns a client configuration trusting TLSCertPEM.
	TLSConfig() *tls.Config

	BaseDN() string
	RootDN() string
	RootPassword() string

	// Dir returns the workspace root. It is removed by Close.
	Dir() string
	State() State
	// StopOutcome reports how Close ended slapd. OutcomeNone before Close.
	StopOutcome() StopOutcome

	// Dial opens a connection bound as RootDN. The caller closes it.
	Dial(ctx context.Context) (*ldap.Conn, error)

	// Add applies LDIF. Records without a changetype are added, as with
	// ldapadd; change records are applied as they are.
	Add(ctx context.Context, ldif string) error
	// Modify applies LDIF change records, as with ldapmodify. Every record
	// must carry a changetype.
	Modify(ctx context.Context, ldif string) error
	// Delete removes entries named either one DN per line, as with
	// ldapdelete, or by changetype: delete records.
	Delete(ctx context.Context, ldif string) error

	AddFile(ctx context.Context, path string) error
	ModifyFile(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error

	// CloneTo copies the workspace, configuration and database included, to
	// dst. The copy is not consistent while writes are in flight.
	CloneTo(ctx context.Context, dst string) error

	// Close stops slapd, releases the ports and removes the workspace. It
	// is idempotent and always returns nil; teardown problems are logged.
	Close() error
}
