// Package domain provides shared domain types for the foreman orchestrator.
// These types are used across all internal packages to ensure consistent
// data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/quarryworks/foreman/internal/constants"
)

// Task is the unit of schedulable work. Tasks are created by an external
// planner in status TODO and mutated exclusively by the dispatch loop and by
// explicit operator unblock actions.
//
// Example JSON representation:
//
//	{
//	    "id": 42,
//	    "name": "Add rate limiting to the API gateway",
//	    "project": "gateway",
//	    "phase": "phase-2",
//	    "priority": 5,
//	    "status": "IN_PROGRESS",
//	    "role": "builder",
//	    "worker_pid": 31337,
//	    "attempt_count": 1,
//	    "created_at": "2026-08-30T10:00:00Z"
//	}
type Task struct {
	// ID is the store-assigned immutable identifier.
	ID int64 `json:"id"`

	// Name is a human-readable summary of the work.
	Name string `json:"name"`

	// Project and Phase are grouping labels. Tasks sharing the same
	// (project, phase) pair form a gating group validated atomically.
	Project string `json:"project,omitempty"`
	Phase   string `json:"phase,omitempty"`

	// Priority orders dispatch; higher values dispatch first.
	Priority int `json:"priority"`

	// Plan is the free-text implementation plan handed to workers.
	Plan string `json:"plan,omitempty"`

	// Notes accumulates free-text context across attempts.
	Notes string `json:"notes,omitempty"`

	// Solution is operator-supplied unblock guidance, appended on each
	// unblock action.
	Solution string `json:"solution,omitempty"`

	// Status is the current state in the task lifecycle.
	Status constants.TaskStatus `json:"status"`

	// Role is the worker class the task is currently assigned to.
	Role constants.Role `json:"role"`

	// WorkerPID is the recorded worker handle. Non-zero only while the task
	// is IN_PROGRESS; recorded and cleared atomically with the status change.
	WorkerPID int `json:"worker_pid,omitempty"`

	// RunID identifies the most recent worker launch for this task.
	RunID string `json:"run_id,omitempty"`

	// AttemptCount is monotonically non-decreasing until the task reaches a
	// terminal state or an operator unblock resets it.
	AttemptCount int `json:"attempt_count"`

	// BlockedReason holds the most recent block reason, if any.
	BlockedReason string `json:"blocked_reason,omitempty"`

	// ErrorLog holds the most recent worker error output, if any.
	ErrorLog string `json:"error_log,omitempty"`

	// Timestamps. StartedAt is set when a worker is launched and cleared
	// with the handle; CompletedAt is set on transition to COMPLETE.
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PhaseKey returns the gating-group key for the task.
func (t *Task) PhaseKey() PhaseKey {
	return PhaseKey{Project: t.Project, Phase: t.Phase}
}

// HasWorker reports whether the task carries a recorded worker handle.
func (t *Task) HasWorker() bool {
	return t.WorkerPID > 0
}

// PhaseKey identifies a gating group: the set of tasks sharing the same
// (project, phase) pair, validated atomically as one unit.
type PhaseKey struct {
	Project string `json:"project"`
	Phase   string `json:"phase"`
}

// TaskHistory is an append-only audit row recorded whenever a task's status,
// notes, or error log changes. History rows are written in the same store
// transaction as the mutation they describe, so the trail is authoritative
// even if notification delivery fails.
type TaskHistory struct {
	ID        int64                `json:"id"`
	TaskID    int64                `json:"task_id"`
	Status    constants.TaskStatus `json:"status"`
	Detail    string               `json:"detail,omitempty"`
	RunID     string               `json:"run_id,omitempty"`
	ChangedAt time.Time            `json:"changed_at"`
}

// BlockedReason is one row of the ordered incident log kept per task: every
// reason a task was blocked or reset, oldest first. Used to build the
// multi-incident summary shown to the operator on escalation.
type BlockedReason struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// QuestionStatus represents the state of a pending worker question.
type QuestionStatus string

// Question status constants.
const (
	QuestionPending  QuestionStatus = "pending"
	QuestionAnswered QuestionStatus = "answered"
	QuestionExpired  QuestionStatus = "expired"
)

// PendingQuestion is a clarification request raised by a worker mid-task.
// The dispatch loop only expires stale questions; answers arrive through the
// operator interface. Expiry never mutates the owning task.
type PendingQuestion struct {
	ID        int64          `json:"id"`
	Agent     string         `json:"agent"`
	TaskID    int64          `json:"task_id,omitempty"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer,omitempty"`
	Status    QuestionStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StatusSummary holds per-state task counts, refreshed every dispatch pass
// for external monitoring.
type StatusSummary struct {
	Todo            int       `json:"todo"`
	InProgress      int       `json:"in_progress"`
	ReadyForTesting int       `json:"ready_for_testing"`
	Complete        int       `json:"complete"`
	Blocked         int       `json:"blocked"`
	PendingQuestion int       `json:"pending_questions"`
	RefreshedAt     time.Time `json:"refreshed_at"`
}

// Total returns the total number of tasks across all states.
func (s StatusSummary) Total() int {
	return s.Todo + s.InProgress + s.ReadyForTesting + s.Complete + s.Blocked
}
