package core

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"github.com/giantswarm/ldapenv/internal/certs"
	"github.com/giantswarm/ldapenv/internal/mutator"
	"github.com/giantswarm/ldapenv/internal/netutil"
	"github.com/giantswarm/ldapenv/internal/process"
	"github.com/giantswarm/ldapenv/internal/slapadd"
	"github.com/giantswarm/ldapenv/internal/slapd"
	"github.com/giantswarm/ldapenv/internal/workspace"
)

// sharedPorts is the registry used when Config.Ports is nil.
var sharedPorts = sync.OnceValue(func() *netutil.PortRegistry {
	return netutil.NewPortRegistry("", Logger())
})

// Server is a running slapd instance and everything it owns: the workspace,
// the reserved ports and the process.
//
// Fields other than state, outcome and closeOnce are written only during
// Start and are read-only afterwards.
type Server struct {
	cfg   Config
	id    string
	log   *slog.Logger
	ports *netutil.PortRegistry

	ws         *workspace.Workspace
	mat        *certs.Material
	pool       *x509.CertPool
	serverName string
	schemaDir  string
	moduleDir  string

	port     int
	tlsPort  int
	reserved []int
	proc     *slapd.Process
	mut      *mutator.Mutator

	state     stateMachine
	outcome   atomic.Int32
	closeOnce sync.Once
}

// Start provisions and launches an instance. On success the Server is
// Running and answers LDAP requests. On failure every acquired resource has
// been released and the error is one of ConfigError, ResourceError,
// LoadError, StartupFailedError or StartupTimeoutError.
func Start(ctx context.Context, cfg Config) (_ *Server, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Reason: "invalid server config", Err: err}
	}

	id := uuid.NewString()
	s := &Server{
		cfg:   cfg,
		id:    id,
		log:   Logger().With("id", id),
		ports: cfg.Ports,
	}
	if s.ports == nil {
		s.ports = sharedPorts()
	}

	startTime := time.Now()
	s.log.Debug("starting server", "base_dn", cfg.BaseDN, "payloads", len(cfg.Payloads))

	ws, err := workspace.Create(cfg.baseDir(), id, s.log)
	if err != nil {
		return nil, &ResourceError{Stage: "workspace", Err: err}
	}
	s.ws = ws
	defer func() {
		if retErr != nil {
			s.teardown()
		}
	}()

	if err := s.prepare(ctx); err != nil {
		return nil, err
	}
	payloads, err := s.writePayloads()
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, payloads); err != nil {
		return nil, err
	}
	if err := s.spawn(ctx); err != nil {
		return nil, err
	}

	s.mut = mutator.New(mutator.NewDialer(s.endpoint()), cfg.OperationTimeout, s.log)
	s.state.transition(StateReady, StateRunning)
	s.log.Debug("server running", "url", s.URL(), "dir", ws.Root(), "elapsed", time.Since(startTime))
	return s, nil
}

// load runs the offline loader over the rendered payloads.
func (s *Server) load(ctx context.Context, payloads []slapadd.Payload) error {
	loader, err := slapadd.New(slapadd.Config{
		Binary:    s.cfg.SlapaddBinary,
		ConfigDir: s.ws.ConfigDir(),
		WorkDir:   s.ws.Root(),
		Timeout:   s.cfg.LoadTimeout,
		Logger:    s.log,
		Guard:     s.guardOffline,
	})
	if err != nil {
		return &ConfigError{Reason: "slapadd settings", Err: err}
	}
	return loader.LoadLayers(ctx, payloads) //nolint:wrapcheck // LoadError is part of the API
}

// guardOffline refuses offline loads once slapd may own the database.
func (s *Server) guardOffline() error {
	if st := s.state.load(); st != StateUnstarted {
		return fmt.Errorf("%w (state %s)", ErrServerRunning, st)
	}
	return nil
}

// spawn moves the server from Unstarted through Starting to Ready, or to
// Failed.
func (s *Server) spawn(ctx context.Context) error {
	s.state.transition(StateUnstarted, StateStarting)
	if err := s.startWithRetry(ctx); err != nil {
		s.state.transition(StateStarting, StateFailed)
		return err
	}
	s.state.transition(StateStarting, StateReady)
	return nil
}

// startWithRetry launches slapd and waits for readiness. When slapd cannot
// bind and every port was allocated here, the ports are replaced and slapd
// is launched again, up to MaxStartRetries attempts in total.
func (s *Server) startWithRetry(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := s.reservePorts(); err != nil {
			return err
		}

		proc, err := slapd.New(slapd.Config{
			Binary:      s.cfg.SlapdBinary,
			ConfigDir:   s.ws.ConfigDir(),
			WorkDir:     s.ws.Root(),
			Host:        s.cfg.BindAddr,
			Port:        s.port,
			TLSPort:     s.tlsPort,
			DebugLevel:  s.cfg.DebugLevel,
			RootCAs:     s.pool,
			StopTimeout: s.cfg.StopTimeout,
			Logger:      s.log,
		})
		if err != nil {
			return &ConfigError{Reason: "slapd settings", Err: err}
		}
		if err := proc.Start(ctx); err != nil {
			proc.Close()
			return &StartupFailedError{Attempts: attempt, Err: err}
		}

		err = proc.WaitReady(ctx, s.cfg.ReadyPollInterval, s.cfg.StartTimeout)
		if err == nil {
			s.proc = proc
			if attempt > 1 {
				s.log.Info("slapd started after retry", "attempt", attempt)
			}
			return nil
		}

		exitErr := proc.ExitErr()
		if stopErr := proc.Stop(s.cfg.StopTimeout); stopErr != nil {
			s.log.Warn("stop slapd after failed start", "error", stopErr)
		}
		output := proc.Output(0)
		proc.Close()

		switch {
		case errors.Is(err, process.ErrReadyTimeout):
			return &StartupTimeoutError{Timeout: s.cfg.StartTimeout, Output: output, Err: err}

		case errors.Is(err, process.ErrProcessExited) && slapd.IsBindFailure(output):
			if s.autoPorts() && attempt < s.cfg.MaxStartRetries {
				s.log.Warn("slapd could not bind, retrying with new ports",
					"attempt", attempt,
					"max_retries", s.cfg.MaxStartRetries,
					"port", s.port,
					"tls_port", s.tlsPort,
				)
				s.releasePorts()
				continue
			}
			return &StartupFailedError{Attempts: attempt, Output: output, Err: errors.Join(ErrPortConflict, exitErr)}

		case errors.Is(err, process.ErrProcessExited):
			return &StartupFailedError{Attempts: attempt, Output: output, Err: errors.Join(err, exitErr)}

		default:
			return &StartupFailedError{Attempts: attempt, Output: output, Err: err}
		}
	}
}

// autoPorts reports whether every listener port is allocated here and may
// therefore be replaced on a bind failure.
func (s *Server) autoPorts() bool {
	return s.cfg.Port == 0 && (!s.cfg.tlsEnabled() || s.cfg.TLSPort == 0)
}

// reservePorts reserves the configured ports and allocates the missing ones.
func (s *Server) reservePorts() error {
	port := s.cfg.Port
	tlsPort := 0
	if s.cfg.tlsEnabled() {
		tlsPort = s.cfg.TLSPort
	}

	for _, p := range []int{port, tlsPort} {
		if p == 0 {
			continue
		}
		if err := s.ports.Reserve(p); err != nil {
			return &ResourceError{Stage: "port " + strconv.Itoa(p), Err: err}
		}
		s.reserved = append(s.reserved, p)
	}

	var err error
	host := s.cfg.BindAddr
	switch {
	case port == 0 && s.cfg.tlsEnabled() && tlsPort == 0:
		port, tlsPort, err = s.ports.AllocatePortPair(host)
		if err == nil {
			s.reserved = append(s.reserved, port, tlsPort)
		}
	case port == 0:
		port, err = s.ports.AllocatePort(host)
		if err == nil {
			s.reserved = append(s.reserved, port)
		}
	case s.cfg.tlsEnabled() && tlsPort == 0:
		tlsPort, err = s.ports.AllocatePort(host)
		if err == nil {
			s.reserved = append(s.reserved, tlsPort)
		}
	}
	if err != nil {
		return &ResourceError{Stage: "port", Err: err}
	}

	s.port, s.tlsPort = port, tlsPort
	s.log.Debug("ports reserved", "port", port, "tls_port", tlsPort)
	return nil
}

func (s *Server) releasePorts() {
	for _, p := range s.reserved {
		s.ports.Release(p)
	}
	s.reserved = nil
}

// teardown releases everything a failed Start acquired.
func (s *Server) teardown() {
	if err := process.StopCloseAndNil(&s.proc, s.cfg.StopTimeout); err != nil {
		s.log.Warn("stop slapd during teardown", "error", err)
	}
	s.releasePorts()
	_ = s.ws.Destroy() // logged by Destroy
}

// Close stops slapd, releases the ports and removes the workspace. Only the
// first call does any work. Close always returns nil; teardown problems are
// logged.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.state.transition(StateRunning, StateStopping)

		if err := s.proc.Stop(s.cfg.StopTimeout); err != nil {
			s.log.Warn("stop slapd", "error", err)
		}
		outcome := s.proc.StopOutcome()
		s.outcome.Store(int32(outcome))
		s.proc.Close()

		s.releasePorts()
		_ = s.ws.Destroy() // logged by Destroy

		s.state.transition(StateStopping, StateStopped)
		s.log.Debug("server closed", "outcome", outcome.String())
	})
	return nil
}

// checkRunning gates operations that need a live server.
func (s *Server) checkRunning() error {
	switch s.state.load() {
	case StateRunning:
		return nil
	case StateStopping, StateStopped:
		return ErrServerClosed
	default:
		return ErrNotRunning
	}
}

func (s *Server) endpoint() mutator.Endpoint {
	return mutator.Endpoint{
		URL:      s.URL(),
		BindDN:   s.cfg.RootDN,
		Password: s.cfg.RootPassword,
		Timeout:  s.cfg.OperationTimeout,
	}
}

// Add applies LDIF, adding records that carry no changetype.
func (s *Server) Add(ctx context.Context, text string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.Add(ctx, text) //nolint:wrapcheck // MutationError is part of the API
}

// Modify applies LDIF change records.
func (s *Server) Modify(ctx context.Context, text string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.Modify(ctx, text) //nolint:wrapcheck // MutationError is part of the API
}

// Delete removes the entries named by text, a DN list or delete records.
func (s *Server) Delete(ctx context.Context, text string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.Delete(ctx, text) //nolint:wrapcheck // MutationError is part of the API
}

// AddFile is Add with LDIF read from path.
func (s *Server) AddFile(ctx context.Context, path string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.AddFile(ctx, path) //nolint:wrapcheck // MutationError is part of the API
}

// ModifyFile is Modify with LDIF read from path.
func (s *Server) ModifyFile(ctx context.Context, path string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.ModifyFile(ctx, path) //nolint:wrapcheck // MutationError is part of the API
}

// DeleteFile is Delete with input read from path.
func (s *Server) DeleteFile(ctx context.Context, path string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.mut.DeleteFile(ctx, path) //nolint:wrapcheck // MutationError is part of the API
}

// Dial opens a connection bound as the root DN. The caller closes it.
func (s *Server) Dial(ctx context.Context) (*ldap.Conn, error) {
	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	conn, err := mutator.Connect(ctx, s.endpoint())
	if err != nil {
		return nil, fmt.Errorf("dial server: %w", err)
	}
	return conn, nil
}

// CloneTo copies the workspace, configuration and database included, to dst.
func (s *Server) CloneTo(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // plain context error
	}
	if err := s.checkRunning(); err != nil {
		return err
	}
	return s.ws.CloneTo(dst) //nolint:wrapcheck // already wrapped by workspace
}

// ID returns the instance identifier used in logs and the workspace name.
func (s *Server) ID() string { return s.id }

// Host returns the address clients should connect to.
func (s *Server) Host() string { return s.cfg.dialHost() }

// Port returns the ldap:// port.
func (s *Server) Port() int { return s.port }

// TLSPort returns the ldaps:// port, or 0 when TLS is disabled.
func (s *Server) TLSPort() int { return s.tlsPort }

// URL returns the ldap:// URL.
func (s *Server) URL() string {
	return "ldap://" + joinHostPort(s.Host(), s.port)
}

// TLSURL returns the ldaps:// URL, or "" when TLS is disabled.
func (s *Server) TLSURL() string {
	if s.tlsPort == 0 {
		return ""
	}
	return "ldaps://" + joinHostPort(s.Host(), s.tlsPort)
}

// TLSCertPEM returns the PEM certificate served on the ldaps listener.
func (s *Server) TLSCertPEM() []byte { return s.mat.CertPEM }

// TLSConfig returns a client configuration that trusts the server
// certificate. ServerName is Host, or the certificate's first DNS name when
// a supplied certificate does not cover Host.
func (s *Server) TLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    s.pool,
		ServerName: s.serverName,
		MinVersion: tls.VersionTLS12,
	}
}

// BaseDN returns the suffix of the data database.
func (s *Server) BaseDN() string { return s.cfg.BaseDN }

// RootDN returns the administrator DN.
func (s *Server) RootDN() string { return s.cfg.RootDN }

// RootPassword returns the administrator password.
func (s *Server) RootPassword() string { return s.cfg.RootPassword }

// Dir returns the workspace root.
func (s *Server) Dir() string { return s.ws.Root() }

// State returns the current lifecycle state.
func (s *Server) State() State { return s.state.load() }

// StopOutcome reports how Close ended slapd; OutcomeNone before Close.
func (s *Server) StopOutcome() process.StopOutcome {
	return process.StopOutcome(s.outcome.Load())
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
