package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

// LaunchSpec describes one worker launch.
type LaunchSpec struct {
	// Task is the work unit handed to the worker. It is serialized to JSON
	// and written to the worker's stdin.
	Task *domain.Task

	// Phase lists every task in the phase under validation, Task included.
	// Builder launches leave it nil.
	Phase []*domain.Task

	// Role selects the worker class.
	Role constants.Role

	// Command is the full argv of the worker process.
	Command []string

	// Timeout is the wall-clock bound advertised to the worker via its
	// environment. Enforcement stays with the dispatcher's staleness check;
	// well-behaved workers use it to wind down on their own.
	Timeout time.Duration

	// OutputDir is where the worker's combined output is captured, one file
	// per run named <run_id>.log.
	OutputDir string
}

// launchPayload is the stdin document handed to a worker: the task itself,
// for validators the full phase, and the exact marker lines the worker must
// echo back verbatim in its final output.
type launchPayload struct {
	Task    *domain.Task   `json:"task"`
	Phase   []*domain.Task `json:"phase,omitempty"`
	Markers payloadMarkers `json:"markers"`
}

// payloadMarkers spells out the completion lines for one launch. The worker
// substitutes its own text for the bracketed placeholders.
type payloadMarkers struct {
	Complete string `json:"complete"`
	Blocked  string `json:"blocked"`
	Pushed   string `json:"pushed,omitempty"`
}

// buildPayload assembles the stdin document for a launch.
func buildPayload(spec LaunchSpec) launchPayload {
	p := launchPayload{
		Task:  spec.Task,
		Phase: spec.Phase,
		Markers: payloadMarkers{
			Complete: fmt.Sprintf("%s%d", constants.MarkerComplete, spec.Task.ID),
			Blocked:  fmt.Sprintf("%s%d:<reason>", constants.MarkerBlocked, spec.Task.ID),
		},
	}
	if spec.Role == constants.RoleValidator {
		p.Markers.Pushed = fmt.Sprintf("%s%d:<ref>:<short_id>", constants.MarkerPushed, spec.Task.ID)
	}
	return p
}

// Launch is the recorded result of a successful spawn.
type Launch struct {
	PID        int
	RunID      string
	OutputPath string
}

// Launcher spawns worker processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (*Launch, error)
}

// ExecLauncher spawns real OS processes. Workers are started in their own
// session so they survive a one-shot dispatch invocation exiting.
type ExecLauncher struct {
	logger zerolog.Logger
}

// NewExecLauncher creates a launcher that spawns real processes.
func NewExecLauncher(logger zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{logger: logger}
}

// Ensure ExecLauncher implements Launcher.
var _ Launcher = (*ExecLauncher)(nil)

// Launch starts one worker process and returns its handle. The context only
// bounds the spawn itself, not the worker's lifetime.
func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (*Launch, error) {
	if len(spec.Command) == 0 {
		return nil, foremanerrors.Wrapf(foremanerrors.ErrSpawnFailed, "no %s command configured", spec.Role)
	}
	if spec.Task == nil {
		return nil, foremanerrors.Wrap(foremanerrors.ErrSpawnFailed, "no task provided")
	}
	if err := ctx.Err(); err != nil {
		return nil, foremanerrors.Wrap(err, "launch canceled")
	}

	runID := uuid.NewString()
	if err := os.MkdirAll(spec.OutputDir, 0o750); err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to create output directory %s", spec.OutputDir)
	}
	outputPath := filepath.Join(spec.OutputDir, runID+".log")
	output, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to create output file %s", outputPath)
	}

	payload, err := json.Marshal(buildPayload(spec))
	if err != nil {
		_ = output.Close()
		return nil, foremanerrors.Wrap(err, "failed to encode task payload")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...) //nolint:gosec // argv comes from operator config
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s_TASK_ID=%d", constants.EnvPrefix, spec.Task.ID),
		fmt.Sprintf("%s_RUN_ID=%s", constants.EnvPrefix, runID),
		fmt.Sprintf("%s_ROLE=%s", constants.EnvPrefix, spec.Role),
		fmt.Sprintf("%s_TIMEOUT_SECONDS=%d", constants.EnvPrefix, int(spec.Timeout.Seconds())),
	)
	// Own session so the worker outlives a one-shot dispatch run.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = output.Close()
		return nil, foremanerrors.Wrapf(foremanerrors.ErrSpawnFailed, "%s: %s", spec.Command[0], err.Error())
	}
	// The parent's copy of the file handle is no longer needed.
	_ = output.Close()

	pid := cmd.Process.Pid
	l.logger.Info().
		Int64("task_id", spec.Task.ID).
		Str("role", string(spec.Role)).
		Str("run_id", runID).
		Int("pid", pid).
		Msg("worker launched")

	// Reap the child when running in watch mode. In one-shot mode the
	// dispatcher exits first and init inherits the worker.
	go func() { _ = cmd.Wait() }()

	return &Launch{PID: pid, RunID: runID, OutputPath: outputPath}, nil
}
