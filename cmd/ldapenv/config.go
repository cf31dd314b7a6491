package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration. Values come from the YAML file given with
// --config, then struct defaults, then flags set on the command line.
type Config struct {
	BaseDN          string        `yaml:"base_dn" default:"dc=planetexpress,dc=com"`
	RootPassword    string        `yaml:"root_password"`
	BindAddr        string        `yaml:"bind_addr" default:"127.0.0.1"`
	Port            int           `yaml:"port"`
	TLSPort         int           `yaml:"tls_port"`
	DisableTLS      bool          `yaml:"disable_tls"`
	SchemaDirs      []string      `yaml:"schema_dirs"`
	DataDirs        []string      `yaml:"data_dirs"`
	SystemSchemaDir string        `yaml:"system_schema_dir"`
	SlapdBinary     string        `yaml:"slapd_binary" default:"slapd"`
	SlapaddBinary   string        `yaml:"slapadd_binary" default:"slapadd"`
	StartTimeout    time.Duration `yaml:"start_timeout" default:"60s"`
	ControlAddr     string        `yaml:"control_addr"`
	LogLevel        string        `yaml:"log_level" default:"info"`
}

// flagValues mirrors Config for pflag. Only flags the user set override
// the file.
type flagValues struct {
	configFile string
	cfg        Config
}

func newFlagSet(v *flagValues) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ldapenv", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&v.configFile, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&v.cfg.BaseDN, "base-dn", "b", "", "base DN (default dc=planetexpress,dc=com)")
	fs.StringVar(&v.cfg.RootPassword, "root-password", "", "root password (default random)")
	fs.StringVar(&v.cfg.BindAddr, "bind-addr", "", "listen address (default 127.0.0.1)")
	fs.IntVar(&v.cfg.Port, "port", 0, "ldap:// port (default allocated)")
	fs.IntVar(&v.cfg.TLSPort, "tls-port", 0, "ldaps:// port (default allocated)")
	fs.BoolVar(&v.cfg.DisableTLS, "no-tls", false, "do not listen on ldaps://")
	fs.StringSliceVarP(&v.cfg.SchemaDirs, "schema-dir", "s", nil, "directory of LDIF files loaded into database 0")
	fs.StringSliceVarP(&v.cfg.DataDirs, "data-dir", "d", nil, "directory of LDIF files loaded into database 1")
	fs.StringVar(&v.cfg.SystemSchemaDir, "system-schema-dir", "", "OpenLDAP schema directory (default searched)")
	fs.StringVar(&v.cfg.SlapdBinary, "slapd", "", "slapd binary (default slapd)")
	fs.StringVar(&v.cfg.SlapaddBinary, "slapadd", "", "slapadd binary (default slapadd)")
	fs.DurationVar(&v.cfg.StartTimeout, "start-timeout", 0, "time to wait for slapd (default 60s)")
	fs.StringVar(&v.cfg.ControlAddr, "control-addr", "", "serve the HTTP control API on this address")
	fs.StringVar(&v.cfg.LogLevel, "log-level", "", "debug, info, warn or error (default info)")
	return fs
}

// loadConfig parses args and merges them with the configuration file.
func loadConfig(args []string, stderr io.Writer) (Config, error) {
	var v flagValues
	fs := newFlagSet(&v)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return Config{}, err //nolint:wrapcheck // pflag errors are user-facing
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var cfg Config
	if v.configFile != "" {
		data, err := os.ReadFile(v.configFile)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeConfig(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", v.configFile, err)
		}
	}

	overrides := map[string]func(){
		"base-dn":           func() { cfg.BaseDN = v.cfg.BaseDN },
		"root-password":     func() { cfg.RootPassword = v.cfg.RootPassword },
		"bind-addr":         func() { cfg.BindAddr = v.cfg.BindAddr },
		"port":              func() { cfg.Port = v.cfg.Port },
		"tls-port":          func() { cfg.TLSPort = v.cfg.TLSPort },
		"no-tls":            func() { cfg.DisableTLS = v.cfg.DisableTLS },
		"schema-dir":        func() { cfg.SchemaDirs = v.cfg.SchemaDirs },
		"data-dir":          func() { cfg.DataDirs = v.cfg.DataDirs },
		"system-schema-dir": func() { cfg.SystemSchemaDir = v.cfg.SystemSchemaDir },
		"slapd":             func() { cfg.SlapdBinary = v.cfg.SlapdBinary },
		"slapadd":           func() { cfg.SlapaddBinary = v.cfg.SlapaddBinary },
		"start-timeout":     func() { cfg.StartTimeout = v.cfg.StartTimeout },
		"control-addr":      func() { cfg.ControlAddr = v.cfg.ControlAddr },
		"log-level":         func() { cfg.LogLevel = v.cfg.LogLevel },
	}
	for name, apply := range overrides {
		if fs.Changed(name) {
			apply()
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, cfg.Validate()
}

// decodeConfig decodes YAML strictly: unknown keys are errors. An empty
// file is a valid, empty configuration.
func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err //nolint:wrapcheck // wrapped by the caller
	}
	return nil
}

// Validate checks the values the library would otherwise reject with a
// panic.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", c.Port))
	}
	if c.TLSPort < 0 || c.TLSPort > 65535 {
		errs = append(errs, fmt.Errorf("TLS port must be between 0 and 65535, got %d", c.TLSPort))
	}
	if c.StartTimeout <= 0 {
		errs = append(errs, fmt.Errorf("start timeout must be greater than 0, got %s", c.StartTimeout))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
