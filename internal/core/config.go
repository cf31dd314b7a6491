package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/giantswarm/ldapenv/internal/netutil"
	"github.com/giantswarm/ldapenv/internal/slapd"
)

// Defaults applied by the public package. Config itself has no implicit
// defaults; Validate rejects zero values where they make no sense.
const (
	DefaultBindAddr          = "127.0.0.1"
	DefaultStartTimeout      = 60 * time.Second
	DefaultStopTimeout       = 10 * time.Second
	DefaultLoadTimeout       = 60 * time.Second
	DefaultOperationTimeout  = 30 * time.Second
	DefaultReadyPollInterval = 10 * time.Millisecond
	DefaultMaxStartRetries   = 3
	DefaultDebugLevel        = slapd.DefaultDebugLevel
)

// PayloadKind says how a Payload's Value is turned into an LDIF file.
type PayloadKind int

const (
	// PayloadText is LDIF text loaded as is.
	PayloadText PayloadKind = iota
	// PayloadFile is the path of an LDIF file loaded as is.
	PayloadFile
	// PayloadSystemFile names a file in the system schema directory.
	PayloadSystemFile
	// PayloadTemplate is LDIF text with @NAME@ placeholders.
	PayloadTemplate
	// PayloadTemplateFile is the path of an LDIF file with placeholders.
	PayloadTemplateFile
)

// String returns a short name for the kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadFile:
		return "file"
	case PayloadSystemFile:
		return "system file"
	case PayloadTemplate:
		return "template"
	case PayloadTemplateFile:
		return "template file"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// Payload is one LDIF source destined for a database layer.
type Payload struct {
	Layer int
	Kind  PayloadKind
	Value string
}

// Config describes one instance. All fields are read-only after Start.
type Config struct {
	BaseDN       string
	RootDN       string
	RootPassword string

	// BindAddr is the listen address of both listeners.
	BindAddr string
	// Port and TLSPort select listen ports; zero allocates a free port.
	// Only allocated ports are retried when slapd cannot bind.
	Port    int
	TLSPort int
	// DisableTLS turns off the ldaps listener.
	DisableTLS bool
	// TLSCertPEM and TLSKeyPEM replace the generated certificate.
	// Both or neither must be set.
	TLSCertPEM []byte
	TLSKeyPEM  []byte

	SlapdBinary   string
	SlapaddBinary string
	// SystemSchemaDir holds core.ldif and friends. Empty searches the
	// usual installation paths.
	SystemSchemaDir string
	// ModuleDir is where back_mdb is loaded from. Empty searches the usual
	// installation paths and assumes a built-in backend if none is found.
	ModuleDir string
	// BaseDir is where workspaces are created. Empty means os.TempDir().
	BaseDir string

	StartTimeout      time.Duration
	StopTimeout       time.Duration
	LoadTimeout       time.Duration
	OperationTimeout  time.Duration
	ReadyPollInterval time.Duration
	MaxStartRetries   int
	DebugLevel        int

	Payloads []Payload

	// Ports coordinates port reservations. Nil uses a registry shared by
	// every instance in the process.
	Ports *netutil.PortRegistry
}

// Validate checks every Config invariant and reports all violations at once.
func (c Config) Validate() error {
	var errs []error

	if _, err := ldap.ParseDN(c.BaseDN); err != nil || c.BaseDN == "" {
		errs = append(errs, fmt.Errorf("base DN %q is not a valid DN", c.BaseDN))
	}
	if _, err := ldap.ParseDN(c.RootDN); err != nil || c.RootDN == "" {
		errs = append(errs, fmt.Errorf("root DN %q is not a valid DN", c.RootDN))
	}
	if c.RootPassword == "" {
		errs = append(errs, errors.New("root password must not be empty"))
	}
	if c.BindAddr == "" {
		errs = append(errs, errors.New("bind address must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", c.Port))
	}
	if c.TLSPort < 0 || c.TLSPort > 65535 {
		errs = append(errs, fmt.Errorf("TLS port must be between 0 and 65535, got %d", c.TLSPort))
	}
	if c.Port != 0 && c.Port == c.TLSPort && !c.DisableTLS {
		errs = append(errs, fmt.Errorf("port and TLS port must differ, both are %d", c.Port))
	}
	if (len(c.TLSCertPEM) == 0) != (len(c.TLSKeyPEM) == 0) {
		errs = append(errs, errors.New("TLS certificate and key must be set together"))
	}
	if c.StartTimeout <= 0 {
		errs = append(errs, fmt.Errorf("start timeout must be greater than 0, got %s", c.StartTimeout))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}
	if c.LoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("load timeout must be greater than 0, got %s", c.LoadTimeout))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("operation timeout must be greater than 0, got %s", c.OperationTimeout))
	}
	if c.ReadyPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ready poll interval must be greater than 0, got %s", c.ReadyPollInterval))
	}
	if c.MaxStartRetries <= 0 {
		errs = append(errs, fmt.Errorf("max start retries must be greater than 0, got %d", c.MaxStartRetries))
	}
	if c.DebugLevel < 0 {
		errs = append(errs, fmt.Errorf("debug level must not be negative, got %d", c.DebugLevel))
	}
	for i, p := range c.Payloads {
		if p.Layer < 0 {
			errs = append(errs, fmt.Errorf("payload %d: layer must not be negative, got %d", i, p.Layer))
		}
		if p.Kind < PayloadText || p.Kind > PayloadTemplateFile {
			errs = append(errs, fmt.Errorf("payload %d: unknown kind %v", i, p.Kind))
		}
		if p.Value == "" && p.Kind != PayloadText && p.Kind != PayloadTemplate {
			errs = append(errs, fmt.Errorf("payload %d: %s path must not be empty", i, p.Kind))
		}
	}

	return errors.Join(errs...)
}

// tlsEnabled reports whether slapd gets an ldaps listener.
func (c Config) tlsEnabled() bool {
	return !c.DisableTLS
}

// baseDir returns the directory workspaces are created in.
func (c Config) baseDir() string {
	if c.BaseDir != "" {
		return c.BaseDir
	}
	return os.TempDir()
}

// dialHost is the address clients use to reach BindAddr.
func (c Config) dialHost() string {
	return slapd.DialHost(c.BindAddr)
}
