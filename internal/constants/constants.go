// Package constants provides shared constants for the foreman orchestrator.
// This package MUST NOT import any other internal packages.
package constants

import "time"

// Application constants.
const (
	// AppName is the application name used in CLI output and paths.
	AppName = "foreman"

	// ForemanHome is the home directory name (e.g., ~/.foreman).
	ForemanHome = ".foreman"

	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"

	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"

	// LogsDir is the directory name for log files within the foreman home.
	LogsDir = "logs"

	// LogFileName is the rotating log file name.
	LogFileName = "foreman.log"

	// DBFileName is the default SQLite database file name.
	DBFileName = "foreman.db"

	// LockFileSuffix is appended to the database path to form the
	// single-writer dispatcher lock file.
	LockFileSuffix = ".lock"

	// EnvPrefix is the environment variable prefix for configuration.
	EnvPrefix = "FOREMAN"
)

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to keep.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated log files.
	LogMaxAgeDays = 30

	// LogCompress controls whether rotated log files are gzipped.
	LogCompress = true
)

// Wire markers workers must echo in their final output. The orchestrator
// parses these into typed outcomes at the boundary; everything past the
// parser operates on the typed value.
const (
	// MarkerComplete prefixes a completion signal: TASK_COMPLETE:<task_id>
	MarkerComplete = "TASK_COMPLETE:"

	// MarkerBlocked prefixes a block signal: TASK_BLOCKED:<task_id>:<reason>
	MarkerBlocked = "TASK_BLOCKED:"

	// MarkerPushed prefixes a publish confirmation from the validator:
	// GIT_PUSHED:<task_id>:<ref>:<short_id>
	MarkerPushed = "GIT_PUSHED:"
)

// Scheduling defaults. These mirror the deployment defaults of the system
// foreman replaces and can all be overridden via configuration.
const (
	// DefaultBuilderSlots is the default concurrent builder worker cap.
	DefaultBuilderSlots = 2

	// DefaultValidatorSlots is the default concurrent validator worker cap.
	// Kept at 1 so a validation run sees a stable snapshot of a phase.
	DefaultValidatorSlots = 1

	// DefaultBuilderAttempts is the default builder attempt budget.
	DefaultBuilderAttempts = 2

	// DefaultValidatorAttempts is the default validator attempt budget.
	// Validation is cheaper to retry than to re-plan.
	DefaultValidatorAttempts = 3

	// DefaultBuilderTimeout is the wall-clock bound passed to builder workers.
	DefaultBuilderTimeout = 30 * time.Minute

	// DefaultValidatorTimeout is the wall-clock bound passed to validator workers.
	DefaultValidatorTimeout = 40 * time.Minute

	// DefaultStaleThreshold is how long a task may sit IN_PROGRESS before its
	// worker is treated as stale even if the process still exists. Must be at
	// least as large as the worker timeouts so a worker's own timeout fires
	// first.
	DefaultStaleThreshold = 45 * time.Minute

	// DefaultGracePeriod is the wait between SIGTERM and SIGKILL when
	// terminating a stale worker.
	DefaultGracePeriod = 10 * time.Second

	// DefaultRetention is how long completed tasks and their logs are kept
	// before the sweep purges them.
	DefaultRetention = 14 * 24 * time.Hour

	// DefaultQuestionExpiry is how long a pending worker question stays open
	// before the sweep marks it expired.
	DefaultQuestionExpiry = 60 * time.Minute

	// DefaultWatchInterval is the default tick for `foreman watch`.
	DefaultWatchInterval = time.Minute
)

// Synthetic block reasons recorded by the orchestrator itself.
const (
	// ReasonNoMarker is recorded when a worker terminates without emitting a
	// completion or block marker. Silence is never interpreted as success.
	ReasonNoMarker = "no completion marker"

	// ReasonAbruptStop is recorded when a worker process died without
	// reporting back.
	ReasonAbruptStop = "abrupt stop"

	// ReasonStaleTimeout is recorded when a worker exceeded the staleness
	// threshold and was terminated.
	ReasonStaleTimeout = "stale timeout"

	// ReasonAttemptLimit is recorded when a task's attempt budget is
	// exhausted and it escalates to BLOCKED.
	ReasonAttemptLimit = "attempt limit reached"

	// ReasonNoPublish is recorded when a validation run reported success
	// without the required publish confirmation.
	ReasonNoPublish = "validation passed without publish confirmation"
)
