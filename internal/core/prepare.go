package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/ldapenv/internal/certs"
	"github.com/giantswarm/ldapenv/internal/fileutil"
	"github.com/giantswarm/ldapenv/internal/slapadd"
	"github.com/giantswarm/ldapenv/internal/slapdconf"
)

// prepare produces the TLS material and locates the OpenLDAP installation.
// The two are independent and run concurrently.
func (s *Server) prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &ResourceError{Stage: "workspace", Err: err}
	}

	var g errgroup.Group
	g.Go(s.prepareTLS)
	g.Go(s.locateInstallation)
	return g.Wait()
}

func (s *Server) prepareTLS() error {
	var (
		mat *certs.Material
		err error
	)
	if len(s.cfg.TLSCertPEM) > 0 {
		mat, err = certs.FromPEM(s.cfg.TLSCertPEM, s.cfg.TLSKeyPEM)
		if err != nil {
			return &ConfigError{Reason: "TLS certificate", Err: err}
		}
	} else {
		mat, err = certs.Generate([]string{s.cfg.BindAddr}, certs.DefaultValidity)
		if err != nil {
			return &ResourceError{Stage: "certificate", Err: err}
		}
	}

	pool, err := mat.CertPool()
	if err != nil {
		return &ConfigError{Reason: "TLS certificate", Err: err}
	}
	if _, _, err := mat.WriteFiles(s.ws.Root()); err != nil {
		return &ResourceError{Stage: "certificate", Err: err}
	}
	s.mat, s.pool = mat, pool
	s.serverName = tlsServerName(mat, s.cfg.dialHost())
	return nil
}

// tlsServerName returns host when the certificate covers it and otherwise
// the first DNS name the certificate carries, so that clients verifying
// against TLSConfig accept a certificate issued for another name.
func tlsServerName(mat *certs.Material, host string) string {
	cert, err := mat.Certificate()
	if err != nil || cert.VerifyHostname(host) == nil || len(cert.DNSNames) == 0 {
		return host
	}
	return cert.DNSNames[0]
}

// locateInstallation finds the schema and module directories. A missing
// schema directory is only an error once a payload needs it.
func (s *Server) locateInstallation() error {
	switch {
	case s.cfg.SystemSchemaDir != "":
		if !fileutil.IsDir(s.cfg.SystemSchemaDir) {
			return &ConfigError{Reason: fmt.Sprintf("system schema directory %s does not exist", s.cfg.SystemSchemaDir)}
		}
		s.schemaDir = filepath.Clean(s.cfg.SystemSchemaDir)
	default:
		dir, err := slapdconf.FindSchemaDir(slapdconf.DefaultSchemaDirs())
		if err != nil {
			s.log.Debug("no system schema directory found", "candidates", slapdconf.DefaultSchemaDirs())
		}
		s.schemaDir = dir
	}

	s.moduleDir = s.cfg.ModuleDir
	if s.moduleDir == "" {
		s.moduleDir = slapdconf.FindModuleDir(slapdconf.DefaultModuleDirs())
	}
	s.log.Debug("located openldap", "schema_dir", s.schemaDir, "module_dir", s.moduleDir)
	return nil
}

// vars returns the placeholder values for this instance.
func (s *Server) vars() slapdconf.Vars {
	return slapdconf.Vars{
		WorkDir:      s.ws.Root(),
		ConfigDir:    s.ws.ConfigDir(),
		DataDir:      s.ws.DataDir(),
		BaseDN:       s.cfg.BaseDN,
		RootDN:       s.cfg.RootDN,
		RootPassword: s.cfg.RootPassword,
		SchemaDir:    s.schemaDir,
		CertFile:     filepath.Join(s.ws.Root(), certs.CertFileName),
		KeyFile:      filepath.Join(s.ws.Root(), certs.KeyFileName),
		ModuleDir:    s.moduleDir,
	}
}

// writePayloads materializes every payload as a file in the workspace's
// ldif directory, rendering templates on the way.
func (s *Server) writePayloads() ([]slapadd.Payload, error) {
	vars := s.vars()
	if err := vars.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already a ConfigError
	}

	out := make([]slapadd.Payload, 0, len(s.cfg.Payloads))
	for i, p := range s.cfg.Payloads {
		dst := filepath.Join(s.ws.LDIFDir(), fmt.Sprintf("%03d-layer%d.ldif", i, p.Layer))
		source, err := s.materialize(i, p, vars, dst)
		if err != nil {
			return nil, err
		}
		out = append(out, slapadd.Payload{Layer: p.Layer, Path: dst, Source: source})
	}
	return out, nil
}

func (s *Server) materialize(idx int, p Payload, vars slapdconf.Vars, dst string) (string, error) {
	switch p.Kind {
	case PayloadText:
		return fmt.Sprintf("text payload %d", idx), writeLDIF(dst, p.Value)

	case PayloadFile:
		return p.Value, copyLDIF(p.Value, dst)

	case PayloadSystemFile:
		if s.schemaDir == "" {
			return "", &ConfigError{Reason: "system file " + p.Value, Err: ErrNoSchemaDir}
		}
		src := filepath.Join(s.schemaDir, p.Value)
		return src, copyLDIF(src, dst)

	case PayloadTemplate, PayloadTemplateFile:
		text, source := p.Value, fmt.Sprintf("template payload %d", idx)
		if p.Kind == PayloadTemplateFile {
			data, err := os.ReadFile(p.Value)
			if err != nil {
				return "", &ConfigError{Reason: "read template " + p.Value, Err: err}
			}
			text, source = string(data), p.Value
		}
		if s.schemaDir == "" && strings.Contains(text, "@SCHEMADIR@") {
			return "", &ConfigError{Reason: source + " refers to @SCHEMADIR@", Err: ErrNoSchemaDir}
		}
		rendered, err := slapdconf.Render(text, vars)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", source, err)
		}
		return source, writeLDIF(dst, rendered)
	}
	return "", &ConfigError{Reason: fmt.Sprintf("payload %d has unknown kind %v", idx, p.Kind)}
}

func writeLDIF(dst, text string) error {
	if err := fileutil.WriteFile(dst, []byte(text), 0o600); err != nil {
		return &ResourceError{Stage: "workspace", Err: err}
	}
	return nil
}

func copyLDIF(src, dst string) error {
	if !fileutil.IsFile(src) {
		return &ConfigError{Reason: fmt.Sprintf("LDIF file %s does not exist", src)}
	}
	if err := fileutil.CopyFile(src, dst, 0o600); err != nil {
		return &ResourceError{Stage: "workspace", Err: err}
	}
	return nil
}
