//go:build integration

// Package testutil provides shared helpers for integration test packages.
package testutil

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/giantswarm/ldapenv"
)

// BaseDN is the suffix every integration server is created with.
const BaseDN = "dc=planetexpress,dc=com"

// StartTimeout bounds a single server start in integration tests.
const StartTimeout = 2 * time.Minute

// baseDir is the temp directory servers create their workspaces in. It is
// set by SetupAndRun.
var baseDir string

// BaseDir returns the directory server workspaces are created in.
func BaseDir() string {
	return baseDir
}

// nameCounter is an atomic counter used by UniqueName to generate names that
// are unique across parallel test goroutines.
var nameCounter atomic.Int64

// UniqueName returns a name that is unique across all parallel tests. Use it
// for entry RDN values that must not collide between tests sharing a
// fixture.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameCounter.Add(1))
}

// BaseEntry is the LDIF of the BaseDN entry.
const BaseEntry = `dn: dc=planetexpress,dc=com
objectClass: dcObject
objectClass: organization
dc: planetexpress
o: Planet Express
`

// People is the LDIF of an ou=people subtree with three inetOrgPerson
// entries below BaseDN.
const People = `dn: ou=people,dc=planetexpress,dc=com
objectClass: organizationalUnit
ou: people

dn: uid=fry,ou=people,dc=planetexpress,dc=com
objectClass: inetOrgPerson
uid: fry
cn: Philip J. Fry
sn: Fry
mail: fry@planetexpress.com

dn: uid=leela,ou=people,dc=planetexpress,dc=com
objectClass: inetOrgPerson
uid: leela
cn: Turanga Leela
sn: Leela
mail: leela@planetexpress.com

dn: uid=bender,ou=people,dc=planetexpress,dc=com
objectClass: inetOrgPerson
uid: bender
cn: Bender Bending Rodriguez
sn: Rodriguez
mail: bender@planetexpress.com
`

// NewBuilder returns a Builder for BaseDN with the test base directory
// prepended to opts.
func NewBuilder(opts ...ldapenv.Option) *ldapenv.Builder {
	return ldapenv.New(BaseDN, append([]ldapenv.Option{ldapenv.WithBaseDir(baseDir)}, opts...)...)
}

// Run starts b and registers Close as a test cleanup. The test fails
// immediately if the server does not start.
//
//nolint:ireturn // Test helper returns Server matching the public API.
func Run(t *testing.T, b *ldapenv.Builder) ldapenv.Server {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), StartTimeout)
	defer cancel()

	srv, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return srv
}

// Bind dials srv and binds as its root DN. The connection is closed when
// the test finishes.
func Bind(t *testing.T, srv ldapenv.Server) *ldap.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := srv.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// SearchDNs returns the DNs of the entries below base that match filter.
func SearchDNs(t *testing.T, conn *ldap.Conn, base, filter string) []string {
	t.Helper()

	req := ldap.NewSearchRequest(base, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, []string{"dn"}, nil)
	res, err := conn.Search(req)
	if err != nil {
		t.Fatalf("search %q below %s: %v", filter, base, err)
	}

	dns := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		dns = append(dns, e.DN)
	}

	return dns
}

// SetupTestLogging configures slog based on the LDAPENV_LOG_LEVEL environment
// variable. This only affects test runs - the library itself inherits the
// application's logging config.
func SetupTestLogging() {
	levelStr := os.Getenv("LDAPENV_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	ldapenv.SetLogger(slog.Default().With("component", "ldapenv"))
}

// RequireBinariesOrExit checks that slapd and slapadd are available,
// exiting the process (via os.Exit) if not. This is used in TestMain where
// *testing.T is not available.
func RequireBinariesOrExit() {
	const hint = "Install OpenLDAP: apt-get install slapd ldap-utils (Debian/Ubuntu), " +
		"dnf install openldap-servers (Fedora) or brew install openldap (macOS)"

	for _, name := range []string{ldapenv.DefaultSlapdBinary, ldapenv.DefaultSlapaddBinary} {
		if _, err := exec.LookPath(name); err != nil {
			fmt.Fprintf(os.Stderr, "%s binary not found in PATH\n%s\n", name, hint)
			os.Exit(1)
		}
	}

	// slapd -VV prints its version and exits without touching any config.
	cmd := exec.Command(ldapenv.DefaultSlapdBinary, "-VV") //nolint:gosec // G204: binary name is a constant
	if out, err := cmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "%s binary exists but not working properly: %v\n%s\n",
			ldapenv.DefaultSlapdBinary, err, out)
		os.Exit(1)
	}
}

// RunTestMain sets up signal handling for graceful shutdown, runs all tests,
// then removes tmpDir. Returns the exit code.
func RunTestMain(m *testing.M, tmpDir string) int {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh) // Restore default handler so a second signal force-kills
			fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
			_ = os.RemoveAll(tmpDir)
			os.Exit(1)
		case <-done:
			return
		}
	}()

	code := m.Run()

	signal.Stop(sigCh)
	close(done)
	_ = os.RemoveAll(tmpDir)

	return code
}

// SetupAndRun handles the standard TestMain boilerplate: flag parsing,
// logging setup, binary checks, temp dir creation, test execution, and
// cleanup. This function calls os.Exit and never returns.
func SetupAndRun(m *testing.M, prefix string) {
	flag.Parse()
	SetupTestLogging()
	RequireBinariesOrExit()

	tmpDir, err := os.MkdirTemp("", prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	baseDir = tmpDir

	os.Exit(RunTestMain(m, tmpDir))
}
