package slapdconf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fullVars(t *testing.T) Vars {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"config", "data", "schema"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	return Vars{
		WorkDir:      root,
		ConfigDir:    filepath.Join(root, "config"),
		DataDir:      filepath.Join(root, "data"),
		BaseDN:       "dc=planetexpress,dc=com",
		RootDN:       "cn=admin,dc=planetexpress,dc=com",
		RootPassword: "s3cret",
		SchemaDir:    filepath.Join(root, "schema"),
		CertFile:     filepath.Join(root, "cert.pem"),
		KeyFile:      filepath.Join(root, "key.pem"),
	}
}

func TestRender_DefaultTemplate(t *testing.T) {
	t.Parallel()

	vars := fullVars(t)
	out, err := Render(DefaultTemplate, vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	wants := []string{
		"olcSuffix: dc=planetexpress,dc=com",
		"olcRootDN: cn=admin,dc=planetexpress,dc=com",
		"olcRootPW: s3cret",
		"olcDbDirectory: " + vars.DataDir,
		"include: file://" + vars.SchemaDir + "/core.ldif",
		"olcTLSCertificateFile: " + vars.CertFile,
		"olcPidFile: " + vars.WorkDir + "/slapd.pid",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("rendered template missing %q", w)
		}
	}
	if strings.Contains(out, "olcModuleList") {
		t.Error("module entry rendered without a module directory")
	}
}

func TestRender_ModuleEntry(t *testing.T) {
	t.Parallel()

	vars := fullVars(t)
	vars.ModuleDir = "/usr/lib/ldap"
	out, err := Render("@MODULES@\n", vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, w := range []string{"objectClass: olcModuleList", "olcModulePath: /usr/lib/ldap", "olcModuleLoad: back_mdb"} {
		if !strings.Contains(out, w) {
			t.Errorf("module entry missing %q:\n%s", w, out)
		}
	}
}

func TestRender_Unresolved(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tmpl     string
		vars     Vars
		wantName string
	}{
		"unknown placeholder": {
			tmpl:     "dn: @BASEDN@\ndescription: @NOPE@\n",
			vars:     Vars{BaseDN: "dc=example,dc=com"},
			wantName: "@NOPE@",
		},
		"missing schema dir": {
			tmpl:     "include: @SCHEMADIR@/core.ldif\n",
			wantName: "@SCHEMADIR@",
		},
		"missing root password": {
			tmpl:     "olcRootPW: @ROOTPW@\n",
			wantName: "@ROOTPW@",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Render(tc.tmpl, tc.vars)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Render() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(cfgErr.Error(), tc.wantName) {
				t.Errorf("error %q does not name %s", cfgErr, tc.wantName)
			}
		})
	}
}

func TestRender_LeavesOtherAtSignsAlone(t *testing.T) {
	t.Parallel()

	out, err := Render("mail: fry@planetexpress.com\n", Vars{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "mail: fry@planetexpress.com\n" {
		t.Errorf("Render() = %q", out)
	}
}

func TestVars_Validate(t *testing.T) {
	t.Parallel()

	vars := fullVars(t)
	if err := vars.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	vars.SchemaDir = filepath.Join(vars.WorkDir, "missing")
	err := vars.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() = %v, want *ConfigError", err)
	}
}

func TestSchemaURL(t *testing.T) {
	t.Parallel()

	if got, want := SchemaURL("/etc/ldap/schema/"), "file:///etc/ldap/schema"; got != want {
		t.Errorf("SchemaURL() = %q, want %q", got, want)
	}
}

func TestFindSchemaDir(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	withCore := t.TempDir()
	if err := os.WriteFile(filepath.Join(withCore, "core.ldif"), []byte("dn: cn=core\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := FindSchemaDir([]string{filepath.Join(empty, "nope"), empty, withCore})
	if err != nil {
		t.Fatalf("FindSchemaDir() error = %v", err)
	}
	if got != withCore {
		t.Errorf("FindSchemaDir() = %q, want %q", got, withCore)
	}

	if _, err := FindSchemaDir([]string{empty}); !errors.Is(err, ErrNoSchemaDir) {
		t.Errorf("FindSchemaDir() error = %v, want %v", err, ErrNoSchemaDir)
	}
}

func TestFindModuleDir(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	mods := t.TempDir()
	if err := os.WriteFile(filepath.Join(mods, "back_mdb.so.2"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if got := FindModuleDir([]string{empty, mods}); got != mods {
		t.Errorf("FindModuleDir() = %q, want %q", got, mods)
	}
	if got := FindModuleDir([]string{empty}); got != "" {
		t.Errorf("FindModuleDir() = %q, want empty", got)
	}
}
