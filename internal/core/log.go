package core

import (
	"log/slog"
	"sync/atomic"
)

// logger holds a logger installed with SetLogger. Nil means use the cached
// default.
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches slog.Default() with the component attribute, derived
// on first use. SetLogger(nil) clears it so a later slog.SetDefault is seen.
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the package-level logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "ldapenv")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger replaces the package-level logger. A nil l restores the default,
// slog.Default() with component=ldapenv.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}
