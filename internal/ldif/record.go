package ldif

import (
	"fmt"
	"strings"

	"github.com/giantswarm/ldapenv/internal/sentinel"
)

// ErrInvalidLDIF is returned, wrapped in a ParseError, for malformed input.
const ErrInvalidLDIF = sentinel.Error("invalid LDIF")

// ParseError reports where the input stopped making sense.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid LDIF at line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidLDIF
}

func parseErrorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// ChangeType is the value of a record's changetype line.
type ChangeType string

const (
	// ChangeNone marks a content record without a changetype line.
	ChangeNone   ChangeType = ""
	ChangeAdd    ChangeType = "add"
	ChangeDelete ChangeType = "delete"
	ChangeModify ChangeType = "modify"
	ChangeModDN  ChangeType = "moddn"
)

// ModOp is one operation inside a modify record.
type ModOp string

const (
	ModAdd       ModOp = "add"
	ModDelete    ModOp = "delete"
	ModReplace   ModOp = "replace"
	ModIncrement ModOp = "increment"
)

// Attribute is an attribute description with its values in input order.
type Attribute struct {
	Name   string
	Values []string
}

// Modification is one "op: attr ... -" group of a modify record.
type Modification struct {
	Op ModOp
	Attribute
}

// Record is a single LDIF record.
type Record struct {
	// Line is the line number of the record's dn line.
	Line       int
	DN         string
	ChangeType ChangeType

	// Attributes holds the entry of a content or add record.
	Attributes []Attribute

	// Changes holds the modifications of a modify record.
	Changes []Modification

	// NewRDN, DeleteOldRDN and NewSuperior describe a moddn record.
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

// IsAdd reports whether r adds an entry, either explicitly or as a
// content record.
func (r *Record) IsAdd() bool {
	return r.ChangeType == ChangeNone || r.ChangeType == ChangeAdd
}

// addValue appends value to the attribute called name, keeping the
// first-seen spelling and order of attribute names.
func addValue(attrs []Attribute, name, value string) []Attribute {
	for i := range attrs {
		if strings.EqualFold(attrs[i].Name, name) {
			attrs[i].Values = append(attrs[i].Values, value)
			return attrs
		}
	}
	return append(attrs, Attribute{Name: name, Values: []string{value}})
}
