// Package errors provides centralized error handling for foreman.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the application. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
var (
	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotBlocked indicates an unblock was attempted on a task that is
	// not in the BLOCKED state.
	ErrTaskNotBlocked = errors.New("task is not blocked")

	// ErrInvalidStatus indicates a persisted status value could not be
	// normalized to the canonical enum.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidRole indicates an unknown worker role.
	ErrInvalidRole = errors.New("invalid worker role")

	// ErrInvalidTransition indicates an attempt to make an invalid state
	// transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStoreUnavailable indicates the task store could not be reached.
	// The current dispatch pass aborts cleanly and retries next invocation.
	ErrStoreUnavailable = errors.New("task store unavailable")

	// ErrDispatcherLocked indicates another orchestrator instance holds the
	// single-writer lock for the same store.
	ErrDispatcherLocked = errors.New("dispatcher already running against this store")

	// ErrSpawnFailed indicates a worker process could not be started.
	ErrSpawnFailed = errors.New("worker spawn failed")

	// ErrNoMarker indicates worker output contained neither a completion nor
	// a block marker for its task.
	ErrNoMarker = errors.New("worker output missing completion marker")

	// ErrMarkerMismatch indicates a worker emitted a marker for a different
	// task than the one it was dispatched.
	ErrMarkerMismatch = errors.New("worker marker references wrong task")

	// ErrQuestionNotFound indicates no pending question matched the request.
	ErrQuestionNotFound = errors.New("pending question not found")

	// ErrNoPendingQuestions indicates there are no questions awaiting an answer.
	ErrNoPendingQuestions = errors.New("no pending questions")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidSlots indicates an invalid concurrency cap value.
	ErrConfigInvalidSlots = errors.New("invalid slot configuration")

	// ErrConfigInvalidAttempts indicates an invalid attempt budget value.
	ErrConfigInvalidAttempts = errors.New("invalid attempt configuration")

	// ErrConfigInvalidTimeout indicates an invalid or inconsistent timeout.
	// Worker timeouts must not exceed the staleness threshold.
	ErrConfigInvalidTimeout = errors.New("invalid timeout configuration")

	// ErrConfigInvalidRetention indicates an invalid retention window.
	ErrConfigInvalidRetention = errors.New("invalid retention configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrWatchIntervalTooShort indicates the watch interval is below minimum.
	ErrWatchIntervalTooShort = errors.New("watch interval too short")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfigExists indicates `foreman init` found an existing config file.
	ErrConfigExists = errors.New("config file already exists")
)
