// Package sentinel provides a string-backed error type that can be declared
// as a const.
//
// Sentinels declared with errors.New are package variables and can be
// reassigned by any importer. Error values are constants, and because the
// type is comparable they still match through wrapped chains with errors.Is.
package sentinel
