// Package mutator applies LDIF to a running server over the LDAP protocol.
//
// Every record becomes one protocol operation, sent in input order on a
// single bound connection. Processing stops at the first failure, which is
// reported as a *MutationError carrying the LDAP result code. Calls are not
// serialized against each other.
package mutator
