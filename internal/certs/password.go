package certs

import "crypto/rand"

// RandomPassword returns a fresh random password made of base32 letters and
// digits, safe to pass on a command line and inside LDIF without escaping.
func RandomPassword() string {
	return rand.Text()
}
