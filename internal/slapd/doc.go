// Package slapd runs an OpenLDAP server process in the foreground and
// probes it for readiness over the LDAP protocol.
package slapd
