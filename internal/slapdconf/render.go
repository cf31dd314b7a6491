package slapdconf

import (
	_ "embed"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/giantswarm/ldapenv/internal/fileutil"
)

// DefaultTemplate is the cn=config loaded at layer 0 by ldapenv.New.
//
//go:embed init.ldif
var DefaultTemplate string

// placeholderRE matches anything shaped like a placeholder.
var placeholderRE = regexp.MustCompile(`@[A-Z][A-Z0-9_]*@`)

// Vars are the values substituted into templates. Empty fields leave their
// placeholder unresolved, except ModuleDir: an empty ModuleDir renders
// @MODULES@ as nothing.
type Vars struct {
	WorkDir      string // @WORKDIR@
	ConfigDir    string // @CONFIGDIR@
	DataDir      string // @DATADIR@
	BaseDN       string // @BASEDN@
	RootDN       string // @ROOTDN@
	RootPassword string // @ROOTPW@
	SchemaDir    string // @SCHEMADIR@, rendered as a file:// URL
	CertFile     string // @CERTFILE@
	KeyFile      string // @KEYFILE@
	ModuleDir    string // @MODULES@ loads back_mdb from here when set
}

// Validate checks that every directory named in v exists.
func (v Vars) Validate() error {
	dirs := []struct{ name, path string }{
		{"work directory", v.WorkDir},
		{"config directory", v.ConfigDir},
		{"data directory", v.DataDir},
		{"schema directory", v.SchemaDir},
		{"module directory", v.ModuleDir},
	}
	for _, d := range dirs {
		if d.path != "" && !fileutil.IsDir(d.path) {
			return configErrorf("%s %s does not exist", d.name, d.path)
		}
	}
	return nil
}

// pairs returns old/new replacement pairs for every resolvable placeholder.
func (v Vars) pairs() []string {
	p := []string{"@MODULES@", moduleEntry(v.ModuleDir)}
	add := func(name, value string) {
		if value != "" {
			p = append(p, "@"+name+"@", value)
		}
	}
	add("WORKDIR", v.WorkDir)
	add("CONFIGDIR", v.ConfigDir)
	add("DATADIR", v.DataDir)
	add("BASEDN", v.BaseDN)
	add("ROOTDN", v.RootDN)
	add("ROOTPW", v.RootPassword)
	add("CERTFILE", v.CertFile)
	add("KEYFILE", v.KeyFile)
	if v.SchemaDir != "" {
		add("SCHEMADIR", SchemaURL(v.SchemaDir))
	}
	return p
}

// Render substitutes vars into tmpl. It fails with a ConfigError naming
// every placeholder left unresolved.
func Render(tmpl string, vars Vars) (string, error) {
	out := strings.NewReplacer(vars.pairs()...).Replace(tmpl)

	if left := placeholderRE.FindAllString(out, -1); len(left) > 0 {
		slices.Sort(left)
		return "", configErrorf("unresolved template placeholders %s", strings.Join(slices.Compact(left), ", "))
	}
	return out, nil
}

// SchemaURL renders dir the way slapadd expects it in include: lines.
func SchemaURL(dir string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(dir))}
	return u.String()
}

// moduleEntry returns the olcModuleList entry that loads back_mdb from dir,
// or an empty string when dir is empty.
func moduleEntry(dir string) string {
	if dir == "" {
		return ""
	}
	return fmt.Sprintf(`dn: cn=module{0},cn=config
objectClass: olcModuleList
cn: module{0}
olcModulePath: %s
olcModuleLoad: back_mdb`, dir)
}
