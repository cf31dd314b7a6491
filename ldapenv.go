package ldapenv

import (
	"context"
	"fmt"
	"slices"

	"github.com/giantswarm/ldapenv/internal/certs"
	"github.com/giantswarm/ldapenv/internal/core"
	"github.com/giantswarm/ldapenv/internal/fileutil"
	"github.com/giantswarm/ldapenv/internal/slapdconf"
)

// Builder collects the configuration and LDIF of a server. Create one with
// New or NewEmpty, register LDIF with the Add* methods and call Run.
//
// A Builder is not safe for concurrent use. Run may be called more than
// once; every call starts an independent server from the same input.
type Builder struct {
	cfg      builderConfig
	payloads []core.Payload
}

// New returns a Builder for a server rooted at baseDN, administered by
// cn=admin,<baseDN> with a random password, and preloaded with the default
// cn=config template at ConfigLayer. The template loads the core, cosine,
// nis and inetorgperson schemas and defines an mdb database for baseDN.
// The base entry itself is not created.
//
// Panics if baseDN is empty or an option receives an invalid value.
func New(baseDN string, opts ...Option) *Builder {
	requireNonEmpty("base DN", baseDN)
	b := newBuilder(baseDN, DefaultRootRDN+","+baseDN, certs.RandomPassword(), opts)
	b.payloads = slices.Insert(b.payloads, 0, core.Payload{
		Layer: ConfigLayer,
		Kind:  core.PayloadTemplate,
		Value: slapdconf.DefaultTemplate,
	})
	return b
}

// DefaultConfig returns the cn=config template New registers at
// ConfigLayer. NewEmpty callers can extend it and register the result with
// AddTemplate.
func DefaultConfig() string {
	return slapdconf.DefaultTemplate
}

// NewEmpty returns a Builder with no default configuration. The caller
// registers the whole cn=config database at ConfigLayer, typically with
// AddTemplate or AddTemplateFile.
//
// Panics if any argument is empty or an option receives an invalid value.
func NewEmpty(baseDN, rootDN, rootPassword string, opts ...Option) *Builder {
	requireNonEmpty("base DN", baseDN)
	requireNonEmpty("root DN", rootDN)
	requireNonEmpty("root password", rootPassword)
	return newBuilder(baseDN, rootDN, rootPassword, opts)
}

func newBuilder(baseDN, rootDN, rootPassword string, opts []Option) *Builder {
	cfg := defaultBuilderConfig(baseDN, rootDN, rootPassword)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{cfg: cfg}
}

// requireLayer panics if layer is negative.
func requireLayer(layer int) {
	if layer < 0 {
		panic(fmt.Sprintf("ldapenv: layer must not be negative, got %d", layer))
	}
}

func (b *Builder) add(layer int, kind core.PayloadKind, value string) *Builder {
	requireLayer(layer)
	b.payloads = append(b.payloads, core.Payload{Layer: layer, Kind: kind, Value: value})
	return b
}

// Add registers LDIF text, loaded verbatim into layer.
// Panics if layer is negative.
func (b *Builder) Add(layer int, ldif string) *Builder {
	return b.add(layer, core.PayloadText, ldif)
}

// AddFile registers an LDIF file, loaded verbatim into layer. The file is
// read by Run.
// Panics if layer is negative or path is empty.
func (b *Builder) AddFile(layer int, path string) *Builder {
	requireNonEmpty("LDIF file path", path)
	return b.add(layer, core.PayloadFile, path)
}

// AddSystemFile registers a file from the system schema directory, such as
// "ppolicy.ldif".
// Panics if layer is negative or name is empty.
func (b *Builder) AddSystemFile(layer int, name string) *Builder {
	requireNonEmpty("system file name", name)
	return b.add(layer, core.PayloadSystemFile, name)
}

// AddTemplate registers LDIF text whose @NAME@ placeholders are replaced
// before loading. An unknown or unavailable placeholder fails Run with a
// ConfigError.
// Panics if layer is negative.
func (b *Builder) AddTemplate(layer int, ldif string) *Builder {
	return b.add(layer, core.PayloadTemplate, ldif)
}

// AddTemplateFile is AddTemplate with the template read from path.
// Panics if layer is negative or path is empty.
func (b *Builder) AddTemplateFile(layer int, path string) *Builder {
	requireNonEmpty("template file path", path)
	return b.add(layer, core.PayloadTemplateFile, path)
}

// Run provisions the server and returns once it answers LDAP requests on
// every listener. On failure nothing is left behind and the error is one of
// ConfigError, ResourceError, LoadError, StartupFailedError or
// StartupTimeoutError.
//
//nolint:ireturn // Returns Server interface by design for testability (mockable).
func (b *Builder) Run(ctx context.Context) (Server, error) {
	cfg := b.cfg.Config
	payloads, err := b.expandPayloads()
	if err != nil {
		return nil, err
	}
	cfg.Payloads = payloads

	srv, err := core.Start(ctx, cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // typed errors are part of the API
	}
	return srv, nil
}

// expandPayloads returns the registered payloads followed by the files of
// the schema and data directories.
func (b *Builder) expandPayloads() ([]core.Payload, error) {
	payloads := slices.Clone(b.payloads)
	for _, d := range []struct {
		layer int
		dirs  []string
	}{
		{ConfigLayer, b.cfg.schemaDirs},
		{DataLayer, b.cfg.dataDirs},
	} {
		for _, dir := range d.dirs {
			files, err := fileutil.ListFiles(dir, ".ldif")
			if err != nil {
				return nil, &ConfigError{Reason: "read LDIF directory " + dir, Err: err}
			}
			for _, f := range files {
				payloads = append(payloads, core.Payload{Layer: d.layer, Kind: core.PayloadFile, Value: f})
			}
		}
	}
	return payloads, nil
}
