// Package workspace owns the per-instance scratch directory that holds the
// slapd configuration, database files, TLS material and process logs.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/giantswarm/ldapenv/internal/fileutil"
)

// Subdirectories created inside every workspace.
const (
	configDirName = "config"
	dataDirName   = "data"
	ldifDirName   = "ldif"
)

// Workspace is a uniquely named directory tree exclusive to one instance.
// It is removed at most once, by Destroy.
type Workspace struct {
	root      string
	createdAt time.Time
	log       *slog.Logger

	destroyOnce sync.Once
	destroyErr  error
}

// Create makes a fresh workspace under baseDir, named "inst-<id>-<random>".
// baseDir is created if missing. The config, data and ldif subdirectories
// exist when Create returns.
func Create(baseDir, id string, logger *slog.Logger) (*Workspace, error) {
	if baseDir == "" {
		return nil, errors.New("workspace base directory must not be empty")
	}
	if id == "" {
		return nil, errors.New("workspace id must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDir(baseDir); err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp(baseDir, "inst-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace in %s: %w", baseDir, err)
	}

	w := &Workspace{root: root, createdAt: time.Now(), log: logger}
	for _, sub := range []string{configDirName, dataDirName, ldifDirName} {
		if err := fileutil.EnsureDir(filepath.Join(root, sub)); err != nil {
			_ = os.RemoveAll(root)
			return nil, err
		}
	}
	logger.Debug("workspace created", "dir", root)
	return w, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// CreatedAt returns when the workspace was created.
func (w *Workspace) CreatedAt() time.Time { return w.createdAt }

// ConfigDir is the slapd cn=config directory passed with -F.
func (w *Workspace) ConfigDir() string { return filepath.Join(w.root, configDirName) }

// DataDir is where the mdb database of the default template lives.
func (w *Workspace) DataDir() string { return filepath.Join(w.root, dataDirName) }

// LDIFDir holds the rendered payload files handed to slapadd.
func (w *Workspace) LDIFDir() string { return filepath.Join(w.root, ldifDirName) }

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// CloneTo copies the whole workspace into dst. Files written concurrently
// by a running slapd are copied as they are at that moment.
func (w *Workspace) CloneTo(dst string) error {
	if err := fileutil.CopyTree(w.root, dst); err != nil {
		return fmt.Errorf("clone workspace: %w", err)
	}
	return nil
}

// Destroy removes the workspace tree. Only the first call does any work;
// later calls return the first call's result. Failures are logged as well
// as returned, since callers usually cannot do anything about them.
func (w *Workspace) Destroy() error {
	w.destroyOnce.Do(func() {
		if err := os.RemoveAll(w.root); err != nil {
			w.destroyErr = fmt.Errorf("remove workspace %s: %w", w.root, err)
			w.log.Warn("remove workspace failed", "dir", w.root, "error", err)
			return
		}
		w.log.Debug("workspace removed", "dir", w.root, "age", time.Since(w.createdAt))
	})
	return w.destroyErr
}
