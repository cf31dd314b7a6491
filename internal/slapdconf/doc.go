// Package slapdconf renders the LDIF that seeds a slapd instance.
//
// Templates carry @NAME@ placeholders that are substituted from Vars. Any
// placeholder still present after substitution is a configuration error, so a
// missing schema directory or a typo in a template fails before slapadd runs.
// DefaultTemplate is a complete cn=config for one mdb database; FindSchemaDir
// and FindModuleDir locate the OpenLDAP installation it refers to.
package slapdconf
