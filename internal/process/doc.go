// Package process supervises the external slapd and slapadd binaries.
//
// BaseProcess owns a started *exec.Cmd: it redirects output into per-process
// log files in the instance workspace, runs the single cmd.Wait goroutine,
// exposes early exit through a broadcast channel, and stops the child with
// SIGTERM followed by SIGKILL once a grace period elapses. WaitReady polls a
// readiness probe with a bounded timeout, and StopCloseAndNil gives callers a
// one-line cleanup for any Stoppable.
package process
