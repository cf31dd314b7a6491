package slapd

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/giantswarm/ldapenv/internal/process"
)

const (
	// DefaultBinary is looked up in PATH when Config.Binary is empty.
	DefaultBinary = "slapd"

	// DefaultDebugLevel is passed to -d. 2048 logs configuration parsing,
	// which is what explains most startup failures.
	DefaultDebugLevel = 2048

	// probeTimeout bounds one readiness dial plus bind.
	probeTimeout = time.Second
)

// Compile-time interface satisfaction check.
var _ process.Stoppable = (*Process)(nil)

// Config holds the configuration for a slapd process.
type Config struct {
	Binary    string // Path to slapd binary (default: "slapd")
	ConfigDir string // cn=config directory populated by slapadd
	WorkDir   string // Working directory for logs
	Host      string // Listen address
	Port      int    // ldap:// port
	TLSPort   int    // ldaps:// port, 0 disables the TLS listener

	// DebugLevel is passed to -d, which also keeps slapd in the foreground.
	DebugLevel int

	// RootCAs verifies the ldaps handshake during readiness checks.
	// Nil skips probing the TLS listener.
	RootCAs *x509.CertPool

	// StopTimeout is the grace period Close uses when Stop was not called.
	StopTimeout time.Duration

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

func (c Config) validate() error {
	var errs []error
	if c.ConfigDir == "" {
		errs = append(errs, errors.New("config dir must not be empty"))
	}
	if c.WorkDir == "" {
		errs = append(errs, errors.New("work dir must not be empty"))
	}
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.TLSPort < 0 || c.TLSPort > 65535 {
		errs = append(errs, fmt.Errorf("tls port %d out of range", c.TLSPort))
	}
	if c.TLSPort != 0 && c.TLSPort == c.Port {
		errs = append(errs, errors.New("tls port must differ from port"))
	}
	if c.DebugLevel < 0 {
		errs = append(errs, errors.New("debug level must not be negative"))
	}
	return errors.Join(errs...)
}

// Process manages a slapd process lifecycle.
type Process struct {
	config Config
	base   process.BaseProcess
}

// New creates a slapd Process. It performs no I/O.
func New(cfg Config) (*Process, error) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid slapd config: %w", err)
	}
	return &Process{
		config: cfg,
		base:   process.NewBaseProcess("slapd", cfg.Logger, cfg.StopTimeout),
	}, nil
}

// Args returns the slapd command line, without the binary.
func (p *Process) Args() []string {
	listen := p.URL()
	if p.config.TLSPort != 0 {
		listen += " " + p.TLSURL()
	}
	return []string{
		"-F", p.config.ConfigDir,
		"-d", strconv.Itoa(p.config.DebugLevel),
		"-h", listen,
	}
}

// Start launches slapd. The process is not bound to ctx: it outlives the
// call and is ended by Stop.
func (p *Process) Start(ctx context.Context) error {
	if p.base.IsStarted() {
		return process.ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start slapd: %w", err)
	}

	//nolint:gosec // binary and arguments come from the instance configuration
	cmd := exec.Command(p.config.Binary, p.Args()...)
	if err := p.base.SetupAndStart(cmd, p.config.WorkDir); err != nil {
		return fmt.Errorf("setup and start slapd process: %w", err)
	}
	return nil
}

// WaitReady polls every listener until each answers an LDAP request.
// Any LDAP result, including a refused anonymous bind, counts as ready.
func (p *Process) WaitReady(ctx context.Context, interval, timeout time.Duration) error {
	log := p.base.Logger()
	if err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      interval,
		Timeout:       timeout,
		Name:          "slapd",
		Port:          p.config.Port,
		Logger:        log,
		ProcessExited: p.base.Exited(),
	}, func(_ context.Context, attempt int) (bool, error) {
		if err := Probe(p.dialURL(), nil); err != nil {
			log.Debug("slapd probe", "url", p.dialURL(), "attempt", attempt, "error", err)
			return false, nil
		}
		if p.config.TLSPort != 0 && p.config.RootCAs != nil {
			if err := Probe(p.dialTLSURL(), p.tlsConfig()); err != nil {
				log.Debug("slapd probe", "url", p.dialTLSURL(), "attempt", attempt, "error", err)
				return false, nil
			}
		}
		return true, nil
	}); err != nil {
		return fmt.Errorf("slapd not ready: %w", err)
	}
	return nil
}

// Probe dials rawURL and performs an anonymous bind. It returns nil as soon
// as the server answers, whatever the LDAP result code.
func Probe(rawURL string, tlsConfig *tls.Config) error {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: probeTimeout})}
	if tlsConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}
	conn, err := ldap.DialURL(rawURL, opts...)
	if err != nil {
		return err //nolint:wrapcheck // logged by the caller only
	}
	defer conn.Close()
	conn.SetTimeout(probeTimeout)

	err = conn.UnauthenticatedBind("")
	var ldapErr *ldap.Error
	if err == nil || (errors.As(err, &ldapErr) && ldapErr.ResultCode < ldap.ErrorNetwork) {
		return nil
	}
	return err //nolint:wrapcheck // logged by the caller only
}

// URL returns the ldap:// URL slapd listens on.
func (p *Process) URL() string {
	return ldapURL("ldap", p.config.Host, p.config.Port)
}

// TLSURL returns the ldaps:// URL, or "" when TLS is disabled.
func (p *Process) TLSURL() string {
	if p.config.TLSPort == 0 {
		return ""
	}
	return ldapURL("ldaps", p.config.Host, p.config.TLSPort)
}

func (p *Process) dialURL() string {
	return ldapURL("ldap", DialHost(p.config.Host), p.config.Port)
}

func (p *Process) dialTLSURL() string {
	return ldapURL("ldaps", DialHost(p.config.Host), p.config.TLSPort)
}

func (p *Process) tlsConfig() *tls.Config {
	return ProbeTLSConfig(p.config.RootCAs)
}

// ProbeTLSConfig returns a client configuration that accepts any server
// certificate chaining to roots, whatever names it carries. A supplied
// certificate usually names the real host rather than the loopback address
// readiness probes dial.
func ProbeTLSConfig(roots *x509.CertPool) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Chain verification happens in VerifyPeerCertificate.
		InsecureSkipVerify: true, //nolint:gosec // G402: only the hostname check is skipped
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyChain(rawCerts, roots)
		},
	}
}

// verifyChain checks that the leaf of rawCerts chains to roots, using the
// remaining certificates as intermediates. Host names are not checked.
func verifyChain(rawCerts [][]byte, roots *x509.CertPool) error {
	if len(rawCerts) == 0 {
		return errors.New("server presented no certificate")
	}
	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("parse server certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		return fmt.Errorf("verify server certificate: %w", err)
	}
	return nil
}

// Stop terminates slapd with the given grace period.
func (p *Process) Stop(timeout time.Duration) error {
	return p.base.Stop(timeout)
}

// Close releases log file handles held by the process.
func (p *Process) Close() {
	p.base.Close()
}

// Exited is closed once slapd exits.
func (p *Process) Exited() <-chan struct{} {
	return p.base.Exited()
}

// ExitErr returns the exit error after slapd exited.
func (p *Process) ExitErr() error {
	return p.base.ExitErr()
}

// Output returns the tail of slapd's captured stderr and stdout.
func (p *Process) Output(limit int) string {
	return p.base.Output(limit)
}

// StopOutcome reports how the last Stop ended slapd.
func (p *Process) StopOutcome() process.StopOutcome {
	return p.base.StopOutcome()
}

// IsBindFailure reports whether slapd output shows a listener could not
// bind its address, which happens when another process took the port.
func IsBindFailure(output string) bool {
	return strings.Contains(output, "Address already in use") ||
		strings.Contains(output, "errno=98")
}

// DialHost maps a wildcard listen address to loopback so clients can reach it.
func DialHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	}
	return host
}

func ldapURL(scheme, host string, port int) string {
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(port))}
	return u.String()
}
