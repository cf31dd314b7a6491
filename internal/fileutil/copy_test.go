package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("create test file: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	got, err := os.ReadFile(path) //nolint:gosec // G304: path is test-controlled
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(got)
}

func TestCopyFile_EmptyPaths(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src, dst string
		want     error
	}{
		"empty source":      {src: "", dst: "/tmp/x", want: ErrEmptySrc},
		"empty destination": {src: "/tmp/x", dst: "", want: ErrEmptyDst},
		"both empty":        {src: "", dst: "", want: ErrEmptySrc},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := CopyFile(tc.src, tc.dst, 0o644)
			if !errors.Is(err, tc.want) {
				t.Errorf("CopyFile() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCopyFile_ContentAndMode(t *testing.T) {
	t.Parallel()

	src := createTestFile(t, t.TempDir(), "key.pem", "secret key")
	dst := filepath.Join(t.TempDir(), "nested", "dir", "key.pem")

	if err := CopyFile(src, dst, 0o600); err != nil {
		t.Fatalf("CopyFile() error: %v", err)
	}

	if got := readFile(t, dst); got != "secret key" {
		t.Errorf("content = %q, want %q", got, "secret key")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %o, want %o", got, 0o600)
	}
}

func TestCopyFile_SourceNotFound(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "dest.txt")
	if err := CopyFile("/nonexistent/source.ldif", dst, 0o644); err == nil {
		t.Fatal("expected error for nonexistent source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("destination should not exist after failed copy, stat err = %v", err)
	}
}

func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	createTestFile(t, src, "cert.pem", "cert")
	createTestFile(t, src, "config/cn=config.ldif", "dn: cn=config")
	createTestFile(t, src, "config/cn=config/olcDatabase={1}mdb.ldif", "dn: olcDatabase={1}mdb,cn=config")
	createTestFile(t, src, "data/data.mdb", "mdb")
	if err := os.Chmod(filepath.Join(src, "cert.pem"), 0o600); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "clone")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree() error: %v", err)
	}

	tests := map[string]string{
		"cert.pem":              "cert",
		"config/cn=config.ldif": "dn: cn=config",
		"config/cn=config/olcDatabase={1}mdb.ldif": "dn: olcDatabase={1}mdb,cn=config",
		"data/data.mdb": "mdb",
	}
	for rel, want := range tests {
		if got := readFile(t, filepath.Join(dst, rel)); got != want {
			t.Errorf("%s content = %q, want %q", rel, got, want)
		}
	}

	info, err := os.Stat(filepath.Join(dst, "cert.pem"))
	if err != nil {
		t.Fatalf("stat cloned cert: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("cloned cert mode = %o, want %o", got, 0o600)
	}
}

func TestCopyTree_MissingSource(t *testing.T) {
	t.Parallel()

	if err := CopyTree(filepath.Join(t.TempDir(), "missing"), t.TempDir()); err == nil {
		t.Fatal("expected error for missing source tree")
	}
}
