package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestExpectSignalExit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err     error
		signal  syscall.Signal
		wantErr bool
	}{
		"nil error":           {},
		"SIGTERM is expected": {signal: syscall.SIGTERM},
		"SIGKILL is expected": {signal: syscall.SIGKILL},
		"SIGINT is not":       {signal: syscall.SIGINT, wantErr: true},
		"non exit error":      {err: errors.New("stuck"), wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			input := tc.err
			if input == nil && tc.signal != 0 {
				input = makeSignalExitError(t, tc.signal)
			}

			got := expectSignalExit(input, "slapd")
			if tc.wantErr != (got != nil) {
				t.Fatalf("expectSignalExit() = %v, wantErr %v", got, tc.wantErr)
			}
		})
	}
}

func TestDrainDone(t *testing.T) {
	t.Parallel()

	crashed := errors.New("crashed")

	tests := map[string]struct {
		send    bool
		value   error
		wantOK  bool
		wantErr error
	}{
		"nil result":   {send: true, wantOK: true},
		"error result": {send: true, value: crashed, wantOK: true, wantErr: crashed},
		"timeout":      {send: false, wantOK: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			done := make(chan error, 1)
			if tc.send {
				done <- tc.value
			}
			ok, err := drainDone(done, 20*time.Millisecond)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestStopOutcome_String(t *testing.T) {
	t.Parallel()

	tests := map[StopOutcome]string{
		OutcomeNone:     "none",
		OutcomeGraceful: "graceful",
		OutcomeForced:   "forced",
		OutcomeExited:   "exited",
		StopOutcome(42): "StopOutcome(42)",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(o), got, want)
		}
	}
}

func TestNewBaseProcess_PanicsOnEmptyName(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for empty name")
		}
		if msg, _ := r.(string); msg != "ldapenv: process name must not be empty" {
			t.Errorf("panic = %v", r)
		}
	}()
	NewBaseProcess("", nil, 0)
}

func TestBaseProcess_Unstarted(t *testing.T) {
	t.Parallel()

	bp := NewBaseProcess("slapd", nil, 0)
	if bp.IsStarted() {
		t.Error("new process should not be started")
	}
	if bp.Exited() != nil {
		t.Error("Exited should be nil before start")
	}
	if err := bp.ExitErr(); err != nil {
		t.Errorf("ExitErr = %v, want nil", err)
	}
	if err := bp.Stop(time.Second); err != nil {
		t.Errorf("Stop on unstarted process = %v, want nil", err)
	}
	if got := bp.StopOutcome(); got != OutcomeNone {
		t.Errorf("StopOutcome = %v, want %v", got, OutcomeNone)
	}
	if got := bp.Output(0); got != "" {
		t.Errorf("Output = %q, want empty", got)
	}
	bp.Close()
}

func TestBaseProcess_SetupAndStartValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cmd  *exec.Cmd
		dir  string
		want error
	}{
		"nil cmd":    {cmd: nil, dir: "/tmp", want: ErrNilCmd},
		"empty path": {cmd: &exec.Cmd{}, dir: "/tmp", want: ErrEmptyCmdPath},
		"empty dir":  {cmd: exec.Command("true"), dir: "", want: ErrEmptyDir},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			bp := NewBaseProcess("slapd", nil, 0)
			if err := bp.SetupAndStart(tc.cmd, tc.dir); !errors.Is(err, tc.want) {
				t.Errorf("SetupAndStart() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBaseProcess_GracefulStop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bp := NewBaseProcess("sleeper", nil, time.Second)
	if err := bp.SetupAndStart(exec.Command("sleep", "60"), dir); err != nil {
		t.Fatalf("SetupAndStart: %v", err)
	}
	if err := bp.SetupAndStart(exec.Command("sleep", "60"), dir); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second SetupAndStart = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := bp.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := bp.StopOutcome(); got != OutcomeGraceful {
		t.Errorf("StopOutcome = %v, want %v", got, OutcomeGraceful)
	}
	if bp.IsStarted() {
		t.Error("process still started after Stop")
	}
	bp.Close()

	for _, name := range []string{"sleeper-stdout.log", "sleeper-stderr.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("log file %s missing: %v", name, err)
		}
	}
}

func TestBaseProcess_ForcedStop(t *testing.T) {
	t.Parallel()

	// The shell ignores SIGTERM, so only SIGKILL ends it.
	cmd := exec.Command("sh", "-c", "trap '' TERM; while :; do sleep 0.05; done")
	bp := NewBaseProcess("stubborn", nil, 0)
	if err := bp.SetupAndStart(cmd, t.TempDir()); err != nil {
		t.Fatalf("SetupAndStart: %v", err)
	}
	// Give the shell time to install the trap.
	time.Sleep(200 * time.Millisecond)

	if err := bp.Stop(100 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := bp.StopOutcome(); got != OutcomeForced {
		t.Errorf("StopOutcome = %v, want %v", got, OutcomeForced)
	}
	bp.Close()
}

func TestBaseProcess_EarlyExitOutput(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sh", "-c", "echo to-stdout; echo 'daemon: bind(8) failed' >&2; exit 3")
	bp := NewBaseProcess("crasher", nil, 0)
	if err := bp.SetupAndStart(cmd, t.TempDir()); err != nil {
		t.Fatalf("SetupAndStart: %v", err)
	}

	select {
	case <-bp.Exited():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}

	var exitErr *exec.ExitError
	if err := bp.ExitErr(); !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Errorf("ExitErr = %v, want exit status 3", err)
	}

	out := bp.Output(0)
	if !strings.Contains(out, "daemon: bind(8) failed") || !strings.Contains(out, "to-stdout") {
		t.Errorf("Output = %q, want both streams", out)
	}

	if err := bp.Stop(time.Second); err != nil {
		t.Errorf("Stop after exit = %v, want nil", err)
	}
	if got := bp.StopOutcome(); got != OutcomeExited {
		t.Errorf("StopOutcome = %v, want %v", got, OutcomeExited)
	}
	bp.Close()
}

func TestLogFiles_Tail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lf, err := NewLogFiles(dir, "slapd")
	if err != nil {
		t.Fatalf("NewLogFiles: %v", err)
	}
	defer lf.Close()

	if _, err := lf.stderr.WriteString("0123456789"); err != nil {
		t.Fatalf("write stderr: %v", err)
	}

	tests := map[string]struct {
		limit int
		want  string
	}{
		"whole file": {limit: 100, want: "0123456789"},
		"tail only":  {limit: 4, want: "6789"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := lf.Tail(tc.limit); got != tc.want {
				t.Errorf("Tail(%d) = %q, want %q", tc.limit, got, tc.want)
			}
		})
	}

	if got, want := lf.StderrPath(), filepath.Join(dir, "slapd-stderr.log"); got != want {
		t.Errorf("StderrPath = %q, want %q", got, want)
	}
}

func TestStopCloseAndNil(t *testing.T) {
	t.Parallel()

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()
		if err := StopCloseAndNil[*fakeStoppable](nil, time.Second); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("stop then close then nil", func(t *testing.T) {
		t.Parallel()
		f := &fakeStoppable{}
		p := f
		if err := StopCloseAndNil(&p, 3*time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != nil || !f.stopped || !f.closed || f.stopTimeout != 3*time.Second {
			t.Errorf("unexpected state: p=%v stopped=%v closed=%v timeout=%v", p, f.stopped, f.closed, f.stopTimeout)
		}
	})

	t.Run("stop error still closes", func(t *testing.T) {
		t.Parallel()
		f := &fakeStoppable{stopErr: errors.New("stop failed")}
		p := f
		if err := StopCloseAndNil(&p, time.Second); err == nil || err.Error() != "stop failed" {
			t.Fatalf("err = %v, want stop failed", err)
		}
		if p != nil || !f.closed {
			t.Error("pointer must be nil and Close called even when Stop fails")
		}
	})
}

type fakeStoppable struct {
	stopped     bool
	closed      bool
	stopErr     error
	stopTimeout time.Duration
}

func (f *fakeStoppable) Stop(timeout time.Duration) error {
	f.stopped = true
	f.stopTimeout = timeout
	return f.stopErr
}

func (f *fakeStoppable) Close() {
	f.closed = true
}

// makeSignalExitError returns the *exec.ExitError of a real process killed by sig.
func makeSignalExitError(tb testing.TB, sig syscall.Signal) *exec.ExitError {
	tb.Helper()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		tb.Fatalf("start sleep: %v", err)
	}
	if err := cmd.Process.Signal(sig); err != nil {
		_ = cmd.Process.Kill()
		tb.Fatalf("signal %v: %v", sig, err)
	}

	var exitErr *exec.ExitError
	if err := cmd.Wait(); !errors.As(err, &exitErr) {
		tb.Fatalf("expected *exec.ExitError, got %v", err)
	}
	return exitErr
}
