package slapdconf

import (
	"path/filepath"

	"github.com/giantswarm/ldapenv/internal/fileutil"
)

// DefaultSchemaDirs are the schema directories of the common OpenLDAP
// packages, in lookup order.
func DefaultSchemaDirs() []string {
	return []string{
		"/etc/ldap/schema",
		"/usr/local/etc/openldap/schema",
		"/etc/openldap/schema",
	}
}

// DefaultModuleDirs are the places distributions install dynamically loaded
// slapd backends, in lookup order.
func DefaultModuleDirs() []string {
	return []string{
		"/usr/lib/ldap",
		"/usr/lib/openldap",
		"/usr/lib64/openldap",
		"/usr/libexec/openldap",
		"/usr/local/libexec/openldap",
	}
}

// FindSchemaDir returns the first candidate containing core.ldif.
func FindSchemaDir(candidates []string) (string, error) {
	for _, dir := range candidates {
		if fileutil.IsDir(dir) && fileutil.IsFile(filepath.Join(dir, "core.ldif")) {
			return filepath.Clean(dir), nil
		}
	}
	return "", ErrNoSchemaDir
}

// FindModuleDir returns the first candidate holding a back_mdb module, or ""
// when the backend is compiled into slapd.
func FindModuleDir(candidates []string) string {
	for _, dir := range candidates {
		matches, err := filepath.Glob(filepath.Join(dir, "back_mdb.*"))
		if err == nil && len(matches) > 0 {
			return filepath.Clean(dir)
		}
	}
	return ""
}
