package ldapenv

import "github.com/giantswarm/ldapenv/internal/core"

// Default configuration values for New and NewEmpty.
const (
	// DefaultRootRDN is prefixed to the base DN to form the root DN used by
	// New.
	DefaultRootRDN = "cn=admin"

	// DefaultBindAddr is the address slapd listens on.
	DefaultBindAddr = core.DefaultBindAddr

	// DefaultSlapdBinary is the binary name used to locate slapd in PATH.
	DefaultSlapdBinary = "slapd"

	// DefaultSlapaddBinary is the binary name used to locate slapadd in PATH.
	DefaultSlapaddBinary = "slapadd"

	// DefaultBaseDirName is the directory under the system temp directory
	// where workspaces are created.
	DefaultBaseDirName = "ldapenv"

	// DefaultStartTimeout bounds the wait for slapd to answer LDAP requests.
	DefaultStartTimeout = core.DefaultStartTimeout

	// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultStopTimeout = core.DefaultStopTimeout

	// DefaultLoadTimeout bounds each slapadd invocation.
	DefaultLoadTimeout = core.DefaultLoadTimeout

	// DefaultOperationTimeout bounds each Add, Modify or Delete call.
	DefaultOperationTimeout = core.DefaultOperationTimeout

	// DefaultReadyPollInterval is the delay between readiness probes.
	DefaultReadyPollInterval = core.DefaultReadyPollInterval

	// DefaultMaxStartRetries is the number of slapd launches attempted when
	// the allocated ports turn out to be taken.
	DefaultMaxStartRetries = core.DefaultMaxStartRetries

	// DefaultDebugLevel is passed to slapd -d. 2048 logs configuration
	// parsing, which is what usually explains a failed start.
	DefaultDebugLevel = core.DefaultDebugLevel
)

// Layers used by New and the schema and data directory options.
const (
	ConfigLayer = 0
	DataLayer   = 1
)
