package fileutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rel string
	}{
		"single level": {rel: "config"},
		"nested":       {rel: filepath.Join("a", "b", "c")},
		"existing":     {rel: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), tc.rel)
			if err := EnsureDir(dir); err != nil {
				t.Fatalf("EnsureDir() error: %v", err)
			}
			if !IsDir(dir) {
				t.Errorf("%s is not a directory after EnsureDir", dir)
			}
		})
	}
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("create blocker: %v", err)
	}
	if err := EnsureDir(filepath.Join(blocker, "sub")); err == nil {
		t.Fatal("expected error when a file blocks the path")
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ldif", "000-layer0.ldif")
	if err := WriteFile(path, []byte("dn: cn=config\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %o, want %o", got, 0o600)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"20-users.ldif", "10-groups.LDIF", "readme.txt", "00-base.ldif"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.ldif"), 0o755); err != nil {
		t.Fatalf("create subdir: %v", err)
	}

	got, err := ListFiles(dir, ".ldif")
	if err != nil {
		t.Fatalf("ListFiles() error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "00-base.ldif"),
		filepath.Join(dir, "10-groups.LDIF"),
		filepath.Join(dir, "20-users.ldif"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("ListFiles() = %v, want %v", got, want)
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := ListFiles(filepath.Join(t.TempDir(), "missing"), ".ldif"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
