package mutator

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Operation names used in MutationError.
const (
	OpConnect = "connect"
	OpAdd     = "add"
	OpModify  = "modify"
	OpDelete  = "delete"
	OpModDN   = "moddn"
)

// MutationError reports a failed protocol operation.
type MutationError struct {
	Operation string
	DN        string
	// Code is the LDAP result code, or zero when the failure happened below
	// the protocol (dial, timeout).
	Code    uint16
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	msg := "ldap " + e.Operation
	if e.DN != "" {
		msg += " " + e.DN
	}
	msg += " failed"
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d %s)", e.Code, ldap.LDAPResultCodeMap[e.Code])
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// newMutationError extracts the result code when err came from the server.
func newMutationError(op, dn string, err error) *MutationError {
	me := &MutationError{Operation: op, DN: dn, Err: err, Message: err.Error()}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) && ldapErr.ResultCode < ldap.ErrorNetwork {
		me.Code = ldapErr.ResultCode
		if ldapErr.Err != nil {
			me.Message = ldapErr.Err.Error()
		}
	}
	return me
}

// IsCode reports whether err is a MutationError with the given result code.
func IsCode(err error, code uint16) bool {
	var me *MutationError
	return errors.As(err, &me) && me.Code == code
}
