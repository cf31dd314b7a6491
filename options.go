package ldapenv

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("ldapenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("ldapenv: %s must not be empty", name))
	}
}

// requirePort panics unless 0 < port <= 65535.
func requirePort(name string, port int) {
	if port <= 0 || port > 65535 {
		panic(fmt.Sprintf("ldapenv: %s must be between 1 and 65535, got %d", name, port))
	}
}

// Option configures a Builder during construction via New or NewEmpty.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations, ports out of range). Option values are typically constants in
// test code, so an invalid value is a programmer error and fails fast, the
// way regexp.MustCompile does.
type Option func(*builderConfig)

// WithBindAddr sets the address slapd listens on. Wildcard addresses are
// reached through loopback.
//
// Default: 127.0.0.1.
//
// Panics if addr is empty.
func WithBindAddr(addr string) Option {
	requireNonEmpty("bind address", addr)
	return func(c *builderConfig) {
		c.BindAddr = addr
	}
}

// WithPort fixes the ldap:// port instead of allocating a free one. A fixed
// port is not retried when slapd cannot bind it.
//
// Panics if port is out of range.
func WithPort(port int) Option {
	requirePort("port", port)
	return func(c *builderConfig) {
		c.Port = port
	}
}

// WithTLSPort fixes the ldaps:// port instead of allocating a free one.
//
// Panics if port is out of range.
func WithTLSPort(port int) Option {
	requirePort("TLS port", port)
	return func(c *builderConfig) {
		c.TLSPort = port
	}
}

// WithoutTLS disables the ldaps:// listener. A certificate is still
// written to the workspace so StartTLS configuration in templates resolves.
func WithoutTLS() Option {
	return func(c *builderConfig) {
		c.DisableTLS = true
	}
}

// WithTLSCertificate serves the given PEM certificate and key instead of a
// generated self-signed pair.
//
// Panics if either is empty.
func WithTLSCertificate(certPEM, keyPEM []byte) Option {
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		panic("ldapenv: TLS certificate and key must not be empty")
	}
	return func(c *builderConfig) {
		c.TLSCertPEM = certPEM
		c.TLSKeyPEM = keyPEM
	}
}

// WithRootDN overrides the administrator DN chosen by New.
//
// Panics if dn is empty.
func WithRootDN(dn string) Option {
	requireNonEmpty("root DN", dn)
	return func(c *builderConfig) {
		c.RootDN = dn
	}
}

// WithRootPassword overrides the random administrator password chosen by
// New.
//
// Panics if password is empty.
func WithRootPassword(password string) Option {
	requireNonEmpty("root password", password)
	return func(c *builderConfig) {
		c.RootPassword = password
	}
}

// WithSchemaDir loads every *.ldif file in dir, in name order, into the
// config layer. May be given more than once.
//
// Panics if dir is empty.
func WithSchemaDir(dir string) Option {
	requireNonEmpty("schema directory", dir)
	return func(c *builderConfig) {
		c.schemaDirs = append(c.schemaDirs, dir)
	}
}

// WithDataDir loads every *.ldif file in dir, in name order, into the data
// layer. May be given more than once.
//
// Panics if dir is empty.
func WithDataDir(dir string) Option {
	requireNonEmpty("data directory", dir)
	return func(c *builderConfig) {
		c.dataDirs = append(c.dataDirs, dir)
	}
}

// WithSystemSchemaDir sets the directory holding the schema files shipped
// with OpenLDAP (core.ldif, cosine.ldif and so on). If not set, the usual
// installation paths are searched.
//
// Panics if dir is empty.
func WithSystemSchemaDir(dir string) Option {
	requireNonEmpty("system schema directory", dir)
	return func(c *builderConfig) {
		c.SystemSchemaDir = dir
	}
}

// WithModuleDir sets the directory back_mdb is loaded from, for slapd
// builds with dynamic backends. If not set, the usual installation paths
// are searched and a built-in backend is assumed when none has it.
//
// Panics if dir is empty.
func WithModuleDir(dir string) Option {
	requireNonEmpty("module directory", dir)
	return func(c *builderConfig) {
		c.ModuleDir = dir
	}
}

// WithSlapdBinary sets the path to the slapd binary.
// Panics if binPath is empty.
func WithSlapdBinary(binPath string) Option {
	requireNonEmpty("slapd binary path", binPath)
	return func(c *builderConfig) {
		c.SlapdBinary = binPath
	}
}

// WithSlapaddBinary sets the path to the slapadd binary.
// Panics if binPath is empty.
func WithSlapaddBinary(binPath string) Option {
	requireNonEmpty("slapadd binary path", binPath)
	return func(c *builderConfig) {
		c.SlapaddBinary = binPath
	}
}

// WithBaseDir sets the directory workspaces are created in. Useful in CI
// where several projects share a machine.
//
// Default: "ldapenv" under os.TempDir().
//
// Panics if dir is empty.
func WithBaseDir(dir string) Option {
	requireNonEmpty("base directory", dir)
	return func(c *builderConfig) {
		c.BaseDir = dir
	}
}

// WithStartTimeout bounds the wait for slapd to answer on every listener.
//
// Default: 60 seconds.
//
// Panics if d <= 0.
func WithStartTimeout(d time.Duration) Option {
	requirePositive("start timeout", d)
	return func(c *builderConfig) {
		c.StartTimeout = d
	}
}

// WithStopTimeout sets the grace period Close gives slapd after SIGTERM
// before killing it.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *builderConfig) {
		c.StopTimeout = d
	}
}

// WithLoadTimeout bounds each slapadd invocation.
//
// Default: 60 seconds.
//
// Panics if d <= 0.
func WithLoadTimeout(d time.Duration) Option {
	requirePositive("load timeout", d)
	return func(c *builderConfig) {
		c.LoadTimeout = d
	}
}

// WithOperationTimeout bounds each Add, Modify and Delete call, including
// connecting and binding.
//
// Default: 30 seconds.
//
// Panics if d <= 0.
func WithOperationTimeout(d time.Duration) Option {
	requirePositive("operation timeout", d)
	return func(c *builderConfig) {
		c.OperationTimeout = d
	}
}

// WithReadyPollInterval sets the delay between readiness probes.
//
// Default: 10 milliseconds.
//
// Panics if d <= 0.
func WithReadyPollInterval(d time.Duration) Option {
	requirePositive("ready poll interval", d)
	return func(c *builderConfig) {
		c.ReadyPollInterval = d
	}
}

// WithMaxStartRetries sets how many times slapd is launched when its
// allocated ports turn out to be taken.
//
// Default: 3.
//
// Panics if n <= 0.
func WithMaxStartRetries(n int) Option {
	requirePositive("max start retries", n)
	return func(c *builderConfig) {
		c.MaxStartRetries = n
	}
}

// WithDebugLevel sets the slapd -d level. Output goes to slapd-stderr.log
// in the workspace and into startup errors.
//
// Panics if level < 0.
func WithDebugLevel(level int) Option {
	if level < 0 {
		panic(fmt.Sprintf("ldapenv: debug level must not be negative, got %d", level))
	}
	return func(c *builderConfig) {
		c.DebugLevel = level
	}
}
