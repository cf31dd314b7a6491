package ldapenv

import "time"

// ConfigSnapshot holds a copy of builderConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures without accessing internals.
type ConfigSnapshot struct {
	BaseDN            string
	RootDN            string
	RootPassword      string
	BindAddr          string
	Port              int
	TLSPort           int
	DisableTLS        bool
	TLSCertPEM        []byte
	TLSKeyPEM         []byte
	SlapdBinary       string
	SlapaddBinary     string
	SystemSchemaDir   string
	ModuleDir         string
	BaseDir           string
	StartTimeout      time.Duration
	StopTimeout       time.Duration
	LoadTimeout       time.Duration
	OperationTimeout  time.Duration
	ReadyPollInterval time.Duration
	MaxStartRetries   int
	DebugLevel        int
	SchemaDirs        []string
	DataDirs          []string
}

// ApplyOptionsForTesting applies opts to the configuration New would use
// for baseDN and returns a snapshot of the result.
func ApplyOptionsForTesting(baseDN string, opts ...Option) ConfigSnapshot {
	return New(baseDN, opts...).ConfigForTesting()
}

// ConfigForTesting returns a snapshot of the builder's configuration.
func (b *Builder) ConfigForTesting() ConfigSnapshot {
	c := b.cfg
	return ConfigSnapshot{
		BaseDN:            c.BaseDN,
		RootDN:            c.RootDN,
		RootPassword:      c.RootPassword,
		BindAddr:          c.BindAddr,
		Port:              c.Port,
		TLSPort:           c.TLSPort,
		DisableTLS:        c.DisableTLS,
		TLSCertPEM:        c.TLSCertPEM,
		TLSKeyPEM:         c.TLSKeyPEM,
		SlapdBinary:       c.SlapdBinary,
		SlapaddBinary:     c.SlapaddBinary,
		SystemSchemaDir:   c.SystemSchemaDir,
		ModuleDir:         c.ModuleDir,
		BaseDir:           c.BaseDir,
		StartTimeout:      c.StartTimeout,
		StopTimeout:       c.StopTimeout,
		LoadTimeout:       c.LoadTimeout,
		OperationTimeout:  c.OperationTimeout,
		ReadyPollInterval: c.ReadyPollInterval,
		MaxStartRetries:   c.MaxStartRetries,
		DebugLevel:        c.DebugLevel,
		SchemaDirs:        c.schemaDirs,
		DataDirs:          c.dataDirs,
	}
}

// PayloadSnapshot describes one payload Run would pass on.
type PayloadSnapshot struct {
	Layer int
	Kind  string
	Value string
}

// PayloadsForTesting returns the payloads Run would load, directories
// expanded.
func (b *Builder) PayloadsForTesting() ([]PayloadSnapshot, error) {
	payloads, err := b.expandPayloads()
	if err != nil {
		return nil, err
	}
	out := make([]PayloadSnapshot, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, PayloadSnapshot{Layer: p.Layer, Kind: p.Kind.String(), Value: p.Value})
	}
	return out, nil
}
