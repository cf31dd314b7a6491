// Package ldaptest runs an in-process LDAP server that answers simple binds.
// It stands in for slapd in tests that only need a protocol peer.
package ldaptest

import (
	"crypto/tls"
	"net"
	"strconv"
	"testing"

	godap "github.com/bradleypeabody/godap"
)

// Server accepts binds for one DN and password and rejects all others.
type Server struct {
	srv  godap.LDAPServer
	Port int
}

// Start serves on ln until the test ends.
func Start(tb testing.TB, ln net.Listener, bindDN, password string) *Server {
	tb.Helper()

	s := &Server{Port: ln.Addr().(*net.TCPAddr).Port}
	s.srv.Listener = ln
	s.srv.Handlers = append(s.srv.Handlers, &godap.LDAPBindFuncHandler{
		LDAPBindFunc: func(binddn string, bindpw []byte) bool {
			return binddn == bindDN && string(bindpw) == password
		},
	})

	// Serve returns once the listener is closed during cleanup.
	go func() { _ = s.srv.Serve() }()
	tb.Cleanup(func() { _ = ln.Close() })
	return s
}

// Listen opens a loopback listener on a free port.
func Listen(tb testing.TB) net.Listener {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	return ln
}

// ListenTLS opens a loopback TLS listener serving the given PEM pair.
func ListenTLS(tb testing.TB, certPEM, keyPEM []byte) net.Listener {
	tb.Helper()
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		tb.Fatalf("load key pair: %v", err)
	}
	return tls.NewListener(Listen(tb), &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	})
}

// FreePort returns a loopback port that nothing listens on.
func FreePort(tb testing.TB) int {
	tb.Helper()
	ln := Listen(tb)
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// URL returns the ldap:// URL of s on loopback.
func (s *Server) URL() string {
	return "ldap://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port))
}
