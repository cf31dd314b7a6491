package ldapenv

import (
	"log/slog"

	"github.com/giantswarm/ldapenv/internal/core"
)

// SetLogger replaces the package-level logger used by ldapenv. The provided
// logger should already carry any attributes the caller wants; every
// server adds an "id" attribute of its own.
//
// If l is nil, the logger resets to slog.Default() with a "component"
// attribute. Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other ldapenv operations.
//
// Example:
//
//	ldapenv.SetLogger(myLogger.With("component", "ldapenv"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
