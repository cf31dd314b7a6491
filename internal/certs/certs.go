// Package certs produces the TLS material an instance serves on its ldaps
// endpoint: either a fresh self-signed ECDSA certificate or a caller supplied
// PEM pair.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"path/filepath"
	"slices"
	"time"

	"github.com/giantswarm/ldapenv/internal/fileutil"
	"github.com/giantswarm/ldapenv/internal/sentinel"
)

// ErrNoCertificate is returned when PEM input contains no certificate block.
const ErrNoCertificate = sentinel.Error("no certificate found in PEM data")

// File names written by WriteFiles.
const (
	CertFileName = "cert.pem"
	KeyFileName  = "key.pem"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 7 * 24 * time.Hour

// minValidity is the shortest lifetime Generate accepts.
const minValidity = 24 * time.Hour

// clockSkew backdates NotBefore so freshly generated certificates verify on
// hosts whose clocks lag slightly.
const clockSkew = 5 * time.Minute

// Material is a PEM encoded certificate and private key.
type Material struct {
	CertPEM []byte
	KeyPEM  []byte
}

// DefaultHosts are always covered by generated certificates.
func DefaultHosts() []string {
	return []string{"localhost", "127.0.0.1", "::1"}
}

// Generate creates a self-signed ECDSA P-256 certificate valid for hosts
// plus DefaultHosts. Entries that parse as IP addresses become IP SANs, all
// others DNS SANs. validity below one day is raised to one day.
func Generate(hosts []string, validity time.Duration) (*Material, error) {
	validity = max(validity, minValidity)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "ldapenv", Organization: []string{"ldapenv"}},
		NotBefore:             now.Add(-clockSkew),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range mergeHosts(hosts) {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	return &Material{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// FromPEM validates a caller supplied certificate and key and wraps them.
func FromPEM(certPEM, keyPEM []byte) (*Material, error) {
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, errors.New("certificate and key PEM must both be set")
	}
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return nil, fmt.Errorf("invalid certificate/key pair: %w", err)
	}
	return &Material{
		CertPEM: slices.Clone(certPEM),
		KeyPEM:  slices.Clone(keyPEM),
	}, nil
}

// WriteFiles writes cert.pem (0644) and key.pem (0600) into dir and returns
// their paths.
func (m *Material) WriteFiles(dir string) (certPath, keyPath string, err error) {
	certPath = filepath.Join(dir, CertFileName)
	keyPath = filepath.Join(dir, KeyFileName)
	if err := fileutil.WriteFile(certPath, m.CertPEM, 0o644); err != nil {
		return "", "", fmt.Errorf("write certificate: %w", err)
	}
	if err := fileutil.WriteFile(keyPath, m.KeyPEM, 0o600); err != nil {
		return "", "", fmt.Errorf("write key: %w", err)
	}
	return certPath, keyPath, nil
}

// CertPool returns a pool trusting the certificate, for clients that verify
// the ldaps endpoint.
func (m *Material) CertPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(m.CertPEM) {
		return nil, ErrNoCertificate
	}
	return pool, nil
}

// Certificate parses the first certificate in CertPEM.
func (m *Material) Certificate() (*x509.Certificate, error) {
	block, _ := pem.Decode(m.CertPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrNoCertificate
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}

// mergeHosts returns hosts followed by DefaultHosts, without empties or
// duplicates.
func mergeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts)+3)
	for _, h := range append(slices.Clone(hosts), DefaultHosts()...) {
		if h == "" || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	return out
}
