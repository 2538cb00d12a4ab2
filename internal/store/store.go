// Package store persists tasks, their history, and operator questions in a
// local SQLite database. All writes that change a task's status also append a
// task_history row inside the same transaction, so the audit trail can never
// drift from the task table.
package store

import (
	"context"
	"time"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
)

// Filter narrows a task listing. Zero values mean "no constraint".
type Filter struct {
	Statuses []constants.TaskStatus
	Role     constants.Role
	Project  string
	Phase    string

	// OrderByPriority sorts by priority descending, then id ascending.
	// When false, rows come back ordered by id.
	OrderByPriority bool

	Limit int
}

// Store is the persistence boundary for the dispatcher and the CLI.
type Store interface {
	// CreateTask inserts a task and returns its id. Status defaults to TODO
	// and role to builder when unset.
	CreateTask(ctx context.Context, t *domain.Task) (int64, error)

	// GetTask loads one task by id. Returns ErrTaskNotFound when absent.
	GetTask(ctx context.Context, id int64) (*domain.Task, error)

	// ListTasks returns tasks matching the filter.
	ListTasks(ctx context.Context, f Filter) ([]*domain.Task, error)

	// NormalizeStatuses rewrites any non-canonical status value stored by an
	// external writer to its canonical form. Returns the number of rows fixed.
	NormalizeStatuses(ctx context.Context) (int64, error)

	// MarkInProgress moves the given tasks to IN_PROGRESS and records the
	// worker handle on each. The attempt counter is incremented on primaryID
	// only; the other ids follow as passengers.
	MarkInProgress(ctx context.Context, ids []int64, primaryID int64, role constants.Role, pid int, runID string) error

	// MarkReady moves the given tasks to READY_FOR_TESTING and clears their
	// worker handles. When resetAttempts is true the attempt counter is
	// zeroed, which is the build-success path; validation soft failures keep
	// the counter so the cap still applies.
	MarkReady(ctx context.Context, ids []int64, detail string, resetAttempts bool) error

	// MarkBlocked moves the given tasks to BLOCKED, clears their worker
	// handles, and records the reason against primaryID in blocked_reasons.
	MarkBlocked(ctx context.Context, ids []int64, primaryID int64, reason, errorLog string) error

	// ResetToTodo returns a stale task to TODO, clears its worker handle,
	// and records the incident in blocked_reasons. The attempt counter is
	// left as incremented at launch so repeated staleness still escalates.
	ResetToTodo(ctx context.Context, id int64, reason string) error

	// MarkComplete moves the given tasks to COMPLETE and stamps completed_at.
	MarkComplete(ctx context.Context, ids []int64, detail string) error

	// Unblock returns a BLOCKED task to target, zeroes its attempt counter,
	// clears the blocked reason and error log, appends solution to the task's
	// solution notes, and deletes its blocked_reasons rows. Returns
	// ErrTaskNotBlocked when the task is not BLOCKED.
	Unblock(ctx context.Context, id int64, target constants.TaskStatus, solution string) error

	// UnblockAll applies Unblock to every BLOCKED task and returns how many
	// were released.
	UnblockAll(ctx context.Context, target constants.TaskStatus, solution string) (int64, error)

	// ListBlockedReasons returns the incident log for a task, oldest first.
	ListBlockedReasons(ctx context.Context, taskID int64) ([]domain.BlockedReason, error)

	// ListHistory returns the status transitions for a task, oldest first.
	ListHistory(ctx context.Context, taskID int64) ([]domain.TaskHistory, error)

	// CountByStatus aggregates the task table into a status summary.
	CountByStatus(ctx context.Context) (domain.StatusSummary, error)

	// SaveSummary persists the latest status summary for external readers.
	SaveSummary(ctx context.Context, s domain.StatusSummary) error

	// SweepCompleted deletes COMPLETE tasks whose completed_at precedes the
	// cutoff, together with their history and incident rows. Returns the
	// number of tasks removed.
	SweepCompleted(ctx context.Context, before time.Time) (int64, error)

	// CreateQuestion records a pending operator question.
	CreateQuestion(ctx context.Context, q *domain.PendingQuestion) (int64, error)

	// ListQuestions returns questions in the given state, oldest first.
	ListQuestions(ctx context.Context, status domain.QuestionStatus) ([]domain.PendingQuestion, error)

	// AnswerOldest answers the oldest pending question and returns it.
	// Returns ErrNoPendingQuestions when none are pending.
	AnswerOldest(ctx context.Context, answer string) (*domain.PendingQuestion, error)

	// ExpireQuestions marks pending questions asked before the cutoff as
	// expired and returns how many were expired.
	ExpireQuestions(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
