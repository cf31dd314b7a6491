package mutator

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the part of *ldap.Conn the mutator uses.
type Conn interface {
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Close() error
}

// Dialer opens a bound connection.
type Dialer func(ctx context.Context) (Conn, error)

// Endpoint says where and as whom to connect.
type Endpoint struct {
	URL      string
	BindDN   string
	Password string
	// TLSConfig is used for ldaps:// URLs.
	TLSConfig *tls.Config
	// Timeout bounds the dial and every request. Zero means no limit
	// beyond the context.
	Timeout time.Duration
}

// Connect dials ep and binds. The returned connection is closed if ctx ends
// while connecting.
func Connect(ctx context.Context, ep Endpoint) (*ldap.Conn, error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: ep.Timeout})}
	if ep.TLSConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(ep.TLSConfig))
	}

	conn, err := ldap.DialURL(ep.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.URL, err)
	}
	if ep.Timeout > 0 {
		conn.SetTimeout(ep.Timeout)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.Bind(ep.BindDN, ep.Password); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("bind as %s: %w", ep.BindDN, ctx.Err())
		}
		return nil, fmt.Errorf("bind as %s: %w", ep.BindDN, err)
	}
	return conn, nil
}

// NewDialer returns a Dialer that connects to ep with Connect.
func NewDialer(ep Endpoint) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := Connect(ctx, ep)
		if err != nil {
			return nil, err
		}
		return ldapConn{conn}, nil
	}
}

// ldapConn adapts *ldap.Conn to Conn.
type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() error {
	c.Conn.Close()
	return nil
}
