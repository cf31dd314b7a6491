package process

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/giantswarm/ldapenv/internal/sentinel"
)

const (
	// ErrAlreadyStarted is returned by SetupAndStart on a running process.
	ErrAlreadyStarted = sentinel.Error("process already started")

	// ErrNilCmd is returned when SetupAndStart is called with a nil *exec.Cmd.
	ErrNilCmd = sentinel.Error("cmd must not be nil")

	// ErrEmptyCmdPath is returned when SetupAndStart is called with an empty cmd.Path.
	ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

	// ErrEmptyDir is returned when SetupAndStart is called without a working directory.
	ErrEmptyDir = sentinel.Error("working directory must not be empty")
)

// BaseProcess provides the lifecycle shared by every supervised binary.
// Embed it in a binary-specific Process type.
//
// BaseProcess is not safe for concurrent use, with one exception: Exited may
// be selected on from any goroutine, and ExitErr may be read once Exited is
// closed.
type BaseProcess struct {
	cmd      *exec.Cmd
	waitDone <-chan error    // cmd.Wait result, consumed by Stop
	exited   <-chan struct{} // closed after cmd.Wait returns
	waitErr  error           // written before exited is closed
	logFiles LogFiles
	outcome  StopOutcome

	name        string
	log         *slog.Logger
	stopTimeout time.Duration // used by Close when Stop was skipped
}

// NewBaseProcess creates a BaseProcess. stopTimeout is the grace period
// Close uses when it has to stop a still running process; zero means
// DefaultStopTimeout. A nil logger falls back to slog.Default().
// Panics if name is empty.
func NewBaseProcess(name string, logger *slog.Logger, stopTimeout time.Duration) BaseProcess {
	if name == "" {
		panic("ldapenv: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return BaseProcess{name: name, log: logger, stopTimeout: stopTimeout}
}

// SetupAndStart creates the log files in dir, wires them to the command's
// stdout and stderr, and starts cmd with dir as its working directory.
//
// Exactly one goroutine calls cmd.Wait. Its result goes to a buffered channel
// consumed by Stop, and a second channel is closed to broadcast the exit to
// readiness pollers.
func (b *BaseProcess) SetupAndStart(cmd *exec.Cmd, dir string) error {
	switch {
	case cmd == nil:
		return ErrNilCmd
	case cmd.Path == "":
		return ErrEmptyCmdPath
	case dir == "":
		return ErrEmptyDir
	case b.cmd != nil:
		return ErrAlreadyStarted
	}

	cmd.Dir = dir
	configureSysProcAttr(cmd)

	logFiles, err := NewLogFiles(dir, b.name)
	if err != nil {
		return fmt.Errorf("create %s logs: %w", b.name, err)
	}
	cmd.Stdout = logFiles.stdout
	cmd.Stderr = logFiles.stderr

	if err := cmd.Start(); err != nil {
		logFiles.Close()
		return fmt.Errorf("start %s: %w", b.name, err)
	}

	b.cmd = cmd
	b.logFiles = logFiles
	b.outcome = OutcomeNone
	b.waitErr = nil

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		b.waitErr = err
		close(exited)
		done <- err
	}()
	b.waitDone = done
	b.exited = exited

	b.log.Debug("process started", "process", b.name, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the process, allowing timeout for a graceful exit before
// SIGKILL. The outcome is recorded and available from StopOutcome. Stop on a
// process that was never started returns nil.
func (b *BaseProcess) Stop(timeout time.Duration) error {
	if b.cmd == nil || b.cmd.Process == nil {
		b.cmd = nil
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	pid := b.cmd.Process.Pid

	var (
		outcome StopOutcome
		err     error
	)
	select {
	case <-b.exited:
		outcome = OutcomeExited
		_, _ = drainDone(b.waitDone, killDrainTimeout)
	default:
		outcome, err = stopWithDone(b.cmd, b.waitDone, timeout, b.name)
	}
	b.outcome = outcome

	if err != nil {
		b.log.Warn("process stop failed; process may be orphaned",
			"process", b.name, "pid", pid, "error", err)
	} else {
		b.log.Debug("process stopped", "process", b.name, "pid", pid, "outcome", outcome.String())
	}
	b.cmd = nil
	b.waitDone = nil
	return err
}

// Close closes the log files. A process that is still running is stopped
// first, with a warning, using the stop timeout given to NewBaseProcess.
func (b *BaseProcess) Close() {
	if b.cmd != nil {
		b.log.Warn("process closed without Stop; stopping automatically", "process", b.name)
		if err := b.Stop(b.stopTimeout); err != nil {
			b.log.Warn("auto-stop during Close failed", "process", b.name, "error", err)
		}
	}
	b.logFiles.Close()
}

// Logger returns the logger used by this process.
func (b *BaseProcess) Logger() *slog.Logger {
	return b.log
}

// Exited returns a channel closed when the process exits, or nil if the
// process was never started.
func (b *BaseProcess) Exited() <-chan struct{} {
	return b.exited
}

// ExitErr returns the cmd.Wait error once the process has exited, and nil
// while it is running.
func (b *BaseProcess) ExitErr() error {
	if b.exited == nil {
		return nil
	}
	select {
	case <-b.exited:
		return b.waitErr
	default:
		return nil
	}
}

// IsStarted reports whether the process was started and not yet stopped.
func (b *BaseProcess) IsStarted() bool {
	return b.cmd != nil
}

// StopOutcome reports how the last Stop ended the process.
func (b *BaseProcess) StopOutcome() StopOutcome {
	return b.outcome
}

// Output returns the trailing output captured from the process, up to limit
// bytes per stream (DefaultOutputTail when limit <= 0).
func (b *BaseProcess) Output(limit int) string {
	return b.logFiles.Tail(limit)
}

// LogFiles returns the log files of the current or last run.
func (b *BaseProcess) LogFiles() *LogFiles {
	return &b.logFiles
}
