package process

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputTail is the number of bytes per stream returned by
// BaseProcess.Output when no explicit limit is given.
const DefaultOutputTail = 16 * 1024

// LogFiles manages the stdout/stderr files a child process writes into.
type LogFiles struct {
	stdout *os.File
	stderr *os.File
	dir    string
	name   string
}

// NewLogFiles creates <name>-stdout.log and <name>-stderr.log in dir. Both
// handles are stored only after both files were created.
func NewLogFiles(dir, name string) (LogFiles, error) {
	l := LogFiles{dir: dir, name: name}

	stdout, err := os.Create(l.StdoutPath())
	if err != nil {
		return LogFiles{}, fmt.Errorf("create stdout log: %w", err)
	}
	stderr, err := os.Create(l.StderrPath())
	if err != nil {
		_ = stdout.Close()
		return LogFiles{}, fmt.Errorf("create stderr log: %w", err)
	}
	l.stdout = stdout
	l.stderr = stderr
	return l, nil
}

// StdoutPath returns the path of the stdout log file.
func (l *LogFiles) StdoutPath() string {
	return filepath.Join(l.dir, l.name+"-stdout.log")
}

// StderrPath returns the path of the stderr log file.
func (l *LogFiles) StderrPath() string {
	return filepath.Join(l.dir, l.name+"-stderr.log")
}

// Close closes both handles. Calling Close more than once is safe.
func (l *LogFiles) Close() {
	if l.stdout != nil {
		_ = l.stdout.Close()
		l.stdout = nil
	}
	if l.stderr != nil {
		_ = l.stderr.Close()
		l.stderr = nil
	}
}

// Tail returns up to limit trailing bytes of stderr followed by stdout.
// Missing or unreadable files contribute nothing; Tail is a diagnostics
// helper and never fails.
func (l *LogFiles) Tail(limit int) string {
	if l.dir == "" {
		return ""
	}
	if limit <= 0 {
		limit = DefaultOutputTail
	}

	var b strings.Builder
	for _, path := range []string{l.StderrPath(), l.StdoutPath()} {
		chunk := tailFile(path, int64(limit))
		if chunk == "" {
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(chunk)
	}
	return b.String()
}

func tailFile(path string, limit int64) string {
	f, err := os.Open(path) //nolint:gosec // G304: path is derived from the workspace
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if off := info.Size() - limit; off > 0 {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return ""
	}
	return string(data)
}
