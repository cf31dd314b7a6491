package main

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// baseEntry returns LDIF creating the entry for baseDN, with object classes
// chosen from the attribute of its first RDN.
func baseEntry(baseDN string) (string, error) {
	dn, err := ldap.ParseDN(baseDN)
	if err != nil {
		return "", fmt.Errorf("parse base DN: %w", err)
	}
	if len(dn.RDNs) == 0 || len(dn.RDNs[0].Attributes) != 1 {
		return "", fmt.Errorf("base DN %q must start with a single-valued RDN", baseDN)
	}
	attr := dn.RDNs[0].Attributes[0]

	var b strings.Builder
	fmt.Fprintf(&b, "dn: %s\n", baseDN)
	switch strings.ToLower(attr.Type) {
	case "dc":
		fmt.Fprintf(&b, "objectClass: dcObject\nobjectClass: organization\ndc: %s\no: %s\n", attr.Value, attr.Value)
	case "o":
		fmt.Fprintf(&b, "objectClass: organization\no: %s\n", attr.Value)
	case "ou":
		fmt.Fprintf(&b, "objectClass: organizationalUnit\nou: %s\n", attr.Value)
	default:
		return "", fmt.Errorf("base DN %q: cannot create an entry named by %s", baseDN, attr.Type)
	}
	return b.String(), nil
}
