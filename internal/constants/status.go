package constants

import "strings"

// TaskStatus represents the state of a task in the foreman state machine.
// The canonical values match the persisted store representation.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// These follow the lifecycle state machine:
//
//	Todo → InProgress → ReadyForTesting → Complete
//	InProgress → Blocked, Todo (stale reset)
//	ReadyForTesting → InProgress (validation) → ReadyForTesting, Blocked
//	Blocked → Todo (operator unblock only)
const (
	// TaskStatusTodo indicates a task is queued and eligible for dispatch.
	TaskStatusTodo TaskStatus = "TODO"

	// TaskStatusInProgress indicates a worker is (or was last known to be)
	// running the task. A task in this state must carry a worker handle.
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"

	// TaskStatusReadyForTesting indicates the build finished and the task is
	// waiting for its phase to be validated as a unit.
	TaskStatusReadyForTesting TaskStatus = "READY_FOR_TESTING"

	// TaskStatusComplete indicates the task's phase passed validation and the
	// changes were confirmed published.
	TaskStatusComplete TaskStatus = "COMPLETE"

	// TaskStatusBlocked indicates the task requires operator intervention.
	// Only an explicit operator unblock leaves this state.
	TaskStatusBlocked TaskStatus = "BLOCKED"
)

// String returns the string representation of the TaskStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s TaskStatus) String() string {
	return string(s)
}

// statusAliases maps free-text status spellings seen in legacy or external
// data to canonical values. The store normalizes on read so the rest of the
// system only ever sees the closed enum.
//
//nolint:gochecknoglobals // Read-only lookup table
var statusAliases = map[string]TaskStatus{
	"todo":              TaskStatusTodo,
	"in_progress":       TaskStatusInProgress,
	"in-progress":       TaskStatusInProgress,
	"inprogress":        TaskStatusInProgress,
	"ready":             TaskStatusReadyForTesting,
	"ready_for_testing": TaskStatusReadyForTesting,
	"ready-for-testing": TaskStatusReadyForTesting,
	"readyfortesting":   TaskStatusReadyForTesting,
	"complete":          TaskStatusComplete,
	"completed":         TaskStatusComplete,
	"done":              TaskStatusComplete,
	"blocked":           TaskStatusBlocked,
}

// NormalizeStatus maps a raw status string to its canonical TaskStatus.
// Returns the canonical status and true on success, or empty and false for
// values that cannot be mapped.
func NormalizeStatus(raw string) (TaskStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	// Exact canonical match first
	switch TaskStatus(trimmed) {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReadyForTesting,
		TaskStatusComplete, TaskStatusBlocked:
		return TaskStatus(trimmed), true
	}

	if status, ok := statusAliases[strings.ToLower(trimmed)]; ok {
		return status, true
	}
	return "", false
}

// IsTerminal returns true for states that require no further scheduling.
// Blocked is terminal pending operator action; Complete is fully terminal.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusComplete || s == TaskStatusBlocked
}

// IsUnfinishedBuild reports whether the status counts against a phase's
// readiness for validation. A phase may only be validated when none of its
// tasks are in an unfinished build state.
func (s TaskStatus) IsUnfinishedBuild() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusBlocked
}

// Role identifies the class of worker a task is dispatched to.
type Role string

// Worker role constants.
const (
	// RoleBuilder performs the implementation work for a single task.
	RoleBuilder Role = "builder"

	// RoleValidator validates a fully built phase as one unit.
	RoleValidator Role = "validator"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// NormalizeRole maps a raw role string to its canonical Role.
func NormalizeRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "builder", "build", "coder":
		return RoleBuilder, true
	case "validator", "validate", "tester":
		return RoleValidator, true
	}
	return "", false
}
