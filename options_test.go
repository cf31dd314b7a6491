package ldapenv_test

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/giantswarm/ldapenv"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && r != nil {
			msg := fmt.Sprint(r)
			if msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

// runPanicTests runs a slice of panic test cases using requirePanics.
func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestDurationOptionsPanicOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "start timeout zero",
			panics:   true,
			panicMsg: "ldapenv: start timeout must be greater than 0, got 0s",
			fn:       func() { ldapenv.WithStartTimeout(0) },
		},
		{
			name:     "stop timeout negative",
			panics:   true,
			panicMsg: "ldapenv: stop timeout must be greater than 0, got -1s",
			fn:       func() { ldapenv.WithStopTimeout(-1 * time.Second) },
		},
		{
			name:     "load timeout zero",
			panics:   true,
			panicMsg: "ldapenv: load timeout must be greater than 0, got 0s",
			fn:       func() { ldapenv.WithLoadTimeout(0) },
		},
		{
			name:     "operation timeout zero",
			panics:   true,
			panicMsg: "ldapenv: operation timeout must be greater than 0, got 0s",
			fn:       func() { ldapenv.WithOperationTimeout(0) },
		},
		{
			name:     "poll interval zero",
			panics:   true,
			panicMsg: "ldapenv: ready poll interval must be greater than 0, got 0s",
			fn:       func() { ldapenv.WithReadyPollInterval(0) },
		},
		{name: "valid", fn: func() { ldapenv.WithStartTimeout(time.Second) }},
	})
}

func TestNumericOptionsPanicOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "port zero",
			panics:   true,
			panicMsg: "ldapenv: port must be between 1 and 65535, got 0",
			fn:       func() { ldapenv.WithPort(0) },
		},
		{
			name:     "TLS port too large",
			panics:   true,
			panicMsg: "ldapenv: TLS port must be between 1 and 65535, got 65536",
			fn:       func() { ldapenv.WithTLSPort(65536) },
		},
		{
			name:     "retries zero",
			panics:   true,
			panicMsg: "ldapenv: max start retries must be greater than 0, got 0",
			fn:       func() { ldapenv.WithMaxStartRetries(0) },
		},
		{
			name:     "debug level negative",
			panics:   true,
			panicMsg: "ldapenv: debug level must not be negative, got -1",
			fn:       func() { ldapenv.WithDebugLevel(-1) },
		},
		{name: "debug level zero", fn: func() { ldapenv.WithDebugLevel(0) }},
		{name: "valid port", fn: func() { ldapenv.WithPort(3890) }},
	})
}

func TestEmptyStringOptionsPanic(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "bindAddr",
			panics:   true,
			panicMsg: "ldapenv: bind address must not be empty",
			fn:       func() { ldapenv.WithBindAddr("") },
		},
		{
			name:     "rootPassword",
			panics:   true,
			panicMsg: "ldapenv: root password must not be empty",
			fn:       func() { ldapenv.WithRootPassword("") },
		},
		{
			name:     "schemaDir",
			panics:   true,
			panicMsg: "ldapenv: schema directory must not be empty",
			fn:       func() { ldapenv.WithSchemaDir("") },
		},
		{
			name:     "slapdBinary",
			panics:   true,
			panicMsg: "ldapenv: slapd binary path must not be empty",
			fn:       func() { ldapenv.WithSlapdBinary("") },
		},
		{
			name:     "baseDir",
			panics:   true,
			panicMsg: "ldapenv: base directory must not be empty",
			fn:       func() { ldapenv.WithBaseDir("") },
		},
		{
			name:     "tlsCertificate",
			panics:   true,
			panicMsg: "ldapenv: TLS certificate and key must not be empty",
			fn:       func() { ldapenv.WithTLSCertificate([]byte("cert"), nil) },
		},
		{
			name:     "baseDN",
			panics:   true,
			panicMsg: "ldapenv: base DN must not be empty",
			fn:       func() { ldapenv.New("") },
		},
		{
			name:     "negative layer",
			panics:   true,
			panicMsg: "ldapenv: layer must not be negative, got -1",
			fn:       func() { ldapenv.New("dc=example,dc=com").Add(-1, "") },
		},
	})
}

func TestOptionApplicationDefaults(t *testing.T) {
	t.Parallel()

	snap := ldapenv.ApplyOptionsForTesting("dc=example,dc=com")
	wantBaseDir := filepath.Join(os.TempDir(), ldapenv.DefaultBaseDirName)

	if snap.RootDN != "cn=admin,dc=example,dc=com" {
		t.Errorf("RootDN = %q", snap.RootDN)
	}
	if snap.RootPassword == "" {
		t.Error("RootPassword is empty, want a random password")
	}
	if snap.BindAddr != ldapenv.DefaultBindAddr {
		t.Errorf("BindAddr = %q, want %q", snap.BindAddr, ldapenv.DefaultBindAddr)
	}
	if snap.Port != 0 || snap.TLSPort != 0 || snap.DisableTLS {
		t.Errorf("ports = %d/%d disableTLS=%v, want allocated ports with TLS", snap.Port, snap.TLSPort, snap.DisableTLS)
	}
	if snap.SlapdBinary != ldapenv.DefaultSlapdBinary {
		t.Errorf("SlapdBinary = %q, want %q", snap.SlapdBinary, ldapenv.DefaultSlapdBinary)
	}
	if snap.SlapaddBinary != ldapenv.DefaultSlapaddBinary {
		t.Errorf("SlapaddBinary = %q, want %q", snap.SlapaddBinary, ldapenv.DefaultSlapaddBinary)
	}
	if snap.BaseDir != wantBaseDir {
		t.Errorf("BaseDir = %q, want %q", snap.BaseDir, wantBaseDir)
	}
	if snap.StartTimeout != ldapenv.DefaultStartTimeout {
		t.Errorf("StartTimeout = %v, want %v", snap.StartTimeout, ldapenv.DefaultStartTimeout)
	}
	if snap.StopTimeout != ldapenv.DefaultStopTimeout {
		t.Errorf("StopTimeout = %v, want %v", snap.StopTimeout, ldapenv.DefaultStopTimeout)
	}
	if snap.LoadTimeout != ldapenv.DefaultLoadTimeout {
		t.Errorf("LoadTimeout = %v, want %v", snap.LoadTimeout, ldapenv.DefaultLoadTimeout)
	}
	if snap.OperationTimeout != ldapenv.DefaultOperationTimeout {
		t.Errorf("OperationTimeout = %v, want %v", snap.OperationTimeout, ldapenv.DefaultOperationTimeout)
	}
	if snap.ReadyPollInterval != ldapenv.DefaultReadyPollInterval {
		t.Errorf("ReadyPollInterval = %v, want %v", snap.ReadyPollInterval, ldapenv.DefaultReadyPollInterval)
	}
	if snap.MaxStartRetries != ldapenv.DefaultMaxStartRetries {
		t.Errorf("MaxStartRetries = %d, want %d", snap.MaxStartRetries, ldapenv.DefaultMaxStartRetries)
	}
	if snap.DebugLevel != ldapenv.DefaultDebugLevel {
		t.Errorf("DebugLevel = %d, want %d", snap.DebugLevel, ldapenv.DefaultDebugLevel)
	}
	if snap.SystemSchemaDir != "" || snap.ModuleDir != "" {
		t.Errorf("SystemSchemaDir = %q, ModuleDir = %q, want discovery", snap.SystemSchemaDir, snap.ModuleDir)
	}
}

func TestRandomPasswordsDiffer(t *testing.T) {
	t.Parallel()

	a := ldapenv.ApplyOptionsForTesting("dc=example,dc=com").RootPassword
	b := ldapenv.ApplyOptionsForTesting("dc=example,dc=com").RootPassword
	if a == b {
		t.Errorf("two builders share the root password %q", a)
	}
}

func TestOptionApplicationOverrides(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opt    ldapenv.Option
		verify func(t *testing.T, snap ldapenv.ConfigSnapshot)
	}{
		"WithBindAddr": {
			opt: ldapenv.WithBindAddr("0.0.0.0"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.BindAddr != "0.0.0.0" {
					t.Errorf("BindAddr = %q", snap.BindAddr)
				}
			},
		},
		"WithPort": {
			opt: ldapenv.WithPort(3890),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.Port != 3890 {
					t.Errorf("Port = %d", snap.Port)
				}
			},
		},
		"WithTLSPort": {
			opt: ldapenv.WithTLSPort(6360),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.TLSPort != 6360 {
					t.Errorf("TLSPort = %d", snap.TLSPort)
				}
			},
		},
		"WithoutTLS": {
			opt: ldapenv.WithoutTLS(),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if !snap.DisableTLS {
					t.Error("DisableTLS = false")
				}
			},
		},
		"WithTLSCertificate": {
			opt: ldapenv.WithTLSCertificate([]byte("cert"), []byte("key")),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if string(snap.TLSCertPEM) != "cert" || string(snap.TLSKeyPEM) != "key" {
					t.Errorf("TLS pair = %q/%q", snap.TLSCertPEM, snap.TLSKeyPEM)
				}
			},
		},
		"WithRootDN": {
			opt: ldapenv.WithRootDN("cn=manager,dc=example,dc=com"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.RootDN != "cn=manager,dc=example,dc=com" {
					t.Errorf("RootDN = %q", snap.RootDN)
				}
			},
		},
		"WithRootPassword": {
			opt: ldapenv.WithRootPassword("secret"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.RootPassword != "secret" {
					t.Errorf("RootPassword = %q", snap.RootPassword)
				}
			},
		},
		"WithSystemSchemaDir": {
			opt: ldapenv.WithSystemSchemaDir("/opt/openldap/schema"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.SystemSchemaDir != "/opt/openldap/schema" {
					t.Errorf("SystemSchemaDir = %q", snap.SystemSchemaDir)
				}
			},
		},
		"WithModuleDir": {
			opt: ldapenv.WithModuleDir("/usr/lib/ldap"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.ModuleDir != "/usr/lib/ldap" {
					t.Errorf("ModuleDir = %q", snap.ModuleDir)
				}
			},
		},
		"WithSlapaddBinary": {
			opt: ldapenv.WithSlapaddBinary("/opt/sbin/slapadd"),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.SlapaddBinary != "/opt/sbin/slapadd" {
					t.Errorf("SlapaddBinary = %q", snap.SlapaddBinary)
				}
			},
		},
		"WithMaxStartRetries": {
			opt: ldapenv.WithMaxStartRetries(7),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.MaxStartRetries != 7 {
					t.Errorf("MaxStartRetries = %d", snap.MaxStartRetries)
				}
			},
		},
		"WithDebugLevel": {
			opt: ldapenv.WithDebugLevel(256),
			verify: func(t *testing.T, snap ldapenv.ConfigSnapshot) {
				t.Helper()
				if snap.DebugLevel != 256 {
					t.Errorf("DebugLevel = %d", snap.DebugLevel)
				}
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tc.verify(t, ldapenv.ApplyOptionsForTesting("dc=example,dc=com", tc.opt))
		})
	}
}

func TestOptionApplicationDirectoriesAccumulate(t *testing.T) {
	t.Parallel()

	snap := ldapenv.ApplyOptionsForTesting("dc=example,dc=com",
		ldapenv.WithSchemaDir("/a"),
		ldapenv.WithSchemaDir("/b"),
		ldapenv.WithDataDir("/c"),
	)
	if !slices.Equal(snap.SchemaDirs, []string{"/a", "/b"}) {
		t.Errorf("SchemaDirs = %v", snap.SchemaDirs)
	}
	if !slices.Equal(snap.DataDirs, []string{"/c"}) {
		t.Errorf("DataDirs = %v", snap.DataDirs)
	}
}

func TestOptionApplicationLastWriteWins(t *testing.T) {
	t.Parallel()

	snap := ldapenv.ApplyOptionsForTesting("dc=example,dc=com",
		ldapenv.WithStartTimeout(time.Second),
		ldapenv.WithStartTimeout(2*time.Second),
	)
	if snap.StartTimeout != 2*time.Second {
		t.Errorf("StartTimeout = %v, want 2s (last write wins)", snap.StartTimeout)
	}
}
