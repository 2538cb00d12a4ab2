// Package worker launches agent processes, probes their liveness, and parses
// the completion markers they emit. The dispatcher never trusts a recorded
// PID until this package has verified it.
package worker

import (
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Prober checks whether a recorded worker handle still maps to a live
// process.
type Prober interface {
	Alive(pid int) bool
}

// Terminator stops a running worker, gracefully first.
type Terminator interface {
	Terminate(pid int, gracefulWait time.Duration) error
}

// ProcessManager probes and terminates worker processes by PID.
type ProcessManager struct {
	logger zerolog.Logger
}

// NewProcessManager creates a new process manager.
func NewProcessManager(logger zerolog.Logger) *ProcessManager {
	return &ProcessManager{logger: logger}
}

// Ensure ProcessManager satisfies both interfaces.
var (
	_ Prober     = (*ProcessManager)(nil)
	_ Terminator = (*ProcessManager)(nil)
)

// Alive checks if a process with the given PID is currently running.
func (pm *ProcessManager) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 doesn't actually send a signal, but checks if we can signal the process
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// Terminate attempts to gracefully stop a worker, then forcefully kills it if
// needed. It uses a two-phase approach:
//  1. Send SIGTERM and wait for gracefulWait duration
//  2. Send SIGKILL if the process didn't terminate
func (pm *ProcessManager) Terminate(pid int, gracefulWait time.Duration) error {
	if !pm.Alive(pid) {
		pm.logger.Debug().Int("pid", pid).Msg("process not found (already terminated)")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	pm.logger.Info().
		Int("pid", pid).
		Dur("graceful_wait", gracefulWait).
		Msg("terminating worker process")

	if err := process.Signal(syscall.SIGTERM); err != nil {
		pm.logger.Warn().
			Err(err).
			Int("pid", pid).
			Msg("failed to send SIGTERM, will try SIGKILL")
	} else {
		time.Sleep(gracefulWait)
		if !pm.Alive(pid) {
			pm.logger.Debug().Int("pid", pid).Msg("process terminated gracefully")
			return nil
		}
	}

	pm.logger.Warn().Int("pid", pid).Msg("process did not terminate gracefully, sending SIGKILL")
	if err := process.Signal(syscall.SIGKILL); err != nil {
		pm.logger.Error().Err(err).Int("pid", pid).Msg("failed to send SIGKILL")
		return err
	}
	return nil
}
