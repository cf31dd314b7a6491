// Command ldapenv runs a throwaway OpenLDAP server until interrupted.
//
//	ldapenv --base-dn dc=example,dc=com --data-dir ./testdata
//
// The server, its workspace and its ports are released on SIGINT or
// SIGTERM. With --control-addr, LDIF can also be applied over HTTP:
//
//	curl --data-binary @users.ldif http://localhost:8389/add
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/ldapenv"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(args, stderr)
	if err != nil {
		return err
	}

	log, slogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ldapenv.SetLogger(slogger.With("component", "ldapenv"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder, err := newBuilder(cfg)
	if err != nil {
		return err
	}
	log.Info("starting server", zap.String("base_dn", cfg.BaseDN),
		zap.Strings("schema_dirs", cfg.SchemaDirs), zap.Strings("data_dirs", cfg.DataDirs))

	srv, err := builder.Run(ctx)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	log.Info("server started", zap.String("url", srv.URL()), zap.String("tls_url", srv.TLSURL()),
		zap.String("dir", srv.Dir()))
	_, _ = fmt.Fprintf(stdout, "ldapsearch -x -H %q -D %q -w %q -b %q \"(objectClass=*)\"\n",
		srv.URL(), srv.RootDN(), srv.RootPassword(), srv.BaseDN())

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.ControlAddr != "" {
		control := NewControlServer(log, cfg.ControlAddr, srv)
		group.Go(func() error { return control.ListenAndServe(groupCtx) })
	}
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")
		return nil
	})
	return group.Wait()
}

// newBuilder translates the CLI configuration into a Builder that also
// creates the base entry.
func newBuilder(cfg Config) (*ldapenv.Builder, error) {
	entry, err := baseEntry(cfg.BaseDN)
	if err != nil {
		return nil, err
	}

	opts := []ldapenv.Option{
		ldapenv.WithBindAddr(cfg.BindAddr),
		ldapenv.WithSlapdBinary(cfg.SlapdBinary),
		ldapenv.WithSlapaddBinary(cfg.SlapaddBinary),
		ldapenv.WithStartTimeout(cfg.StartTimeout),
	}
	if cfg.RootPassword != "" {
		opts = append(opts, ldapenv.WithRootPassword(cfg.RootPassword))
	}
	if cfg.Port != 0 {
		opts = append(opts, ldapenv.WithPort(cfg.Port))
	}
	if cfg.TLSPort != 0 {
		opts = append(opts, ldapenv.WithTLSPort(cfg.TLSPort))
	}
	if cfg.DisableTLS {
		opts = append(opts, ldapenv.WithoutTLS())
	}
	if cfg.SystemSchemaDir != "" {
		opts = append(opts, ldapenv.WithSystemSchemaDir(cfg.SystemSchemaDir))
	}
	for _, dir := range cfg.SchemaDirs {
		opts = append(opts, ldapenv.WithSchemaDir(dir))
	}
	for _, dir := range cfg.DataDirs {
		opts = append(opts, ldapenv.WithDataDir(dir))
	}

	return ldapenv.New(cfg.BaseDN, opts...).Add(ldapenv.DataLayer, entry), nil
}
