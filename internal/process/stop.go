package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL when no
// explicit stop timeout is configured.
const DefaultStopTimeout = 10 * time.Second

// killDrainTimeout bounds the wait for cmd.Wait after SIGKILL. SIGKILL cannot
// be caught, so this only fires if Wait hangs on stuck I/O.
const killDrainTimeout = 10 * time.Second

// StopOutcome records how a process ended when it was stopped.
type StopOutcome int

const (
	// OutcomeNone means the process was never started or not stopped yet.
	OutcomeNone StopOutcome = iota
	// OutcomeGraceful means the process exited after SIGTERM within the grace period.
	OutcomeGraceful
	// OutcomeForced means the grace period elapsed and the process was killed.
	OutcomeForced
	// OutcomeExited means the process had already exited on its own.
	OutcomeExited
)

// String returns the lower-case name used in logs.
func (o StopOutcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeGraceful:
		return "graceful"
	case OutcomeForced:
		return "forced"
	case OutcomeExited:
		return "exited"
	default:
		return fmt.Sprintf("StopOutcome(%d)", int(o))
	}
}

// drainDone reads the cmd.Wait result with timeout as a hard upper bound.
// It reports false if the timeout elapsed first.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// stopWithDone sends SIGTERM, waits up to grace for the exit, then sends
// SIGKILL and waits again for at most killDrainTimeout. done must carry the
// result of the single cmd.Wait call for cmd.
//
// The worst-case blocking time is grace + killDrainTimeout.
func stopWithDone(cmd *exec.Cmd, done <-chan error, grace time.Duration, name string) (StopOutcome, error) {
	if cmd == nil || cmd.Process == nil {
		return OutcomeNone, nil
	}
	if done == nil {
		return OutcomeNone, fmt.Errorf("%s: done channel must not be nil", name)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; collect the status so Wait is not leaked.
		ok, _ := drainDone(done, killDrainTimeout)
		if !ok {
			return OutcomeExited, fmt.Errorf("%s: timed out draining process after signal failure", name)
		}
		return OutcomeExited, nil
	}

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case err := <-done:
		return OutcomeGraceful, expectSignalExit(err, name)
	case <-graceTimer.C:
	}

	// Kill on a process that exited in the meantime returns
	// os.ErrProcessDone, which is harmless.
	_ = cmd.Process.Kill()

	ok, waitErr := drainDone(done, killDrainTimeout)
	if !ok {
		return OutcomeForced, fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", name)
	}
	return OutcomeForced, expectSignalExit(waitErr, name)
}

// expectSignalExit interprets the cmd.Wait error after a termination signal.
// Exits caused by SIGTERM or SIGKILL count as success.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
