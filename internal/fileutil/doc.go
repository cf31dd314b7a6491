// Package fileutil provides the filesystem helpers used to build and tear down
// instance workspaces.
//
// EnsureDir and WriteFile create directories and files with fixed permissions,
// ListFiles enumerates LDIF payload directories in a deterministic order, and
// CopyFile/CopyTree back workspace cloning.
package fileutil
