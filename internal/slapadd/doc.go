// Package slapadd loads LDIF files into a stopped slapd instance.
//
// Each payload runs one "slapadd -F <configdir> -n <layer> -l <file>". Layers
// are applied in ascending order and payloads within a layer in registration
// order; the first failure aborts the load.
package slapadd
