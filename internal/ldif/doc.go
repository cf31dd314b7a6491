// Package ldif parses LDAP Data Interchange Format text (RFC 2849).
//
// Both content records (plain entries) and change records are supported.
// Folded lines, comments, base64 values ("::") and file URL values (":<")
// are handled; "version:" and "control:" lines are accepted and ignored.
// The "modrdn" and "moddn" change types are treated as the same operation.
package ldif
