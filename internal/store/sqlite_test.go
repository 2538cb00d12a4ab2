package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/clock"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

// newTestStore creates a SQLiteStore backed by a temp file with a mock clock
// frozen at a fixed instant.
func newTestStore(t *testing.T) (*SQLiteStore, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "foreman.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func createTask(t *testing.T, s *SQLiteStore, task domain.Task) int64 {
	t.Helper()

	id, err := s.CreateTask(context.Background(), &task)
	require.NoError(t, err)
	return id
}

func TestCreateAndGetTask(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{
		Name:     "wire payment webhook",
		Project:  "billing",
		Phase:    "phase-1",
		Priority: 5,
		Plan:     "add handler, add retries",
	})
	require.Positive(t, id)

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "wire payment webhook", task.Name)
	assert.Equal(t, constants.TaskStatusTodo, task.Status)
	assert.Equal(t, constants.RoleBuilder, task.Role)
	assert.Zero(t, task.AttemptCount)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	history, err := s.ListHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, constants.TaskStatusTodo, history[0].Status)
	assert.Equal(t, "created", history[0].Detail)
}

func TestCreateTaskPersistsOptionalTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)
	completed := time.Date(2026, 2, 28, 10, 15, 0, 0, time.UTC)

	id := createTask(t, s, domain.Task{
		Name:        "imported from previous run",
		Status:      constants.TaskStatusComplete,
		StartedAt:   &started,
		CompletedAt: &completed,
	})

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.StartedAt.Equal(started))
	assert.True(t, task.CompletedAt.Equal(completed))
}

func TestGetTaskNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetTask(context.Background(), 999)
	require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
}

func TestListTasksFilterAndOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	low := createTask(t, s, domain.Task{Name: "low", Priority: 1})
	high := createTask(t, s, domain.Task{Name: "high", Priority: 9})
	mid := createTask(t, s, domain.Task{Name: "mid", Priority: 5})

	require.NoError(t, s.MarkInProgress(ctx, []int64{mid}, mid, constants.RoleBuilder, 100, "run-1"))

	todos, err := s.ListTasks(ctx, Filter{
		Statuses:        []constants.TaskStatus{constants.TaskStatusTodo},
		OrderByPriority: true,
	})
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, high, todos[0].ID)
	assert.Equal(t, low, todos[1].ID)

	limited, err := s.ListTasks(ctx, Filter{OrderByPriority: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, high, limited[0].ID)
}

func TestListTasksPriorityTieBreaksOnID(t *testing.T) {
	s, _ := newTestStore(t)

	first := createTask(t, s, domain.Task{Name: "first", Priority: 5})
	second := createTask(t, s, domain.Task{Name: "second", Priority: 5})

	tasks, err := s.ListTasks(context.Background(), Filter{OrderByPriority: true})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first, tasks[0].ID)
	assert.Equal(t, second, tasks[1].ID)
}

func TestNormalizeStatuses(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "legacy row"})
	_, err := s.db.Exec(`UPDATE tasks SET status = 'in_progress' WHERE id = ?`, id)
	require.NoError(t, err)
	weird := createTask(t, s, domain.Task{Name: "garbage row"})
	_, err = s.db.Exec(`UPDATE tasks SET status = 'exploded' WHERE id = ?`, weird)
	require.NoError(t, err)

	fixed, err := s.NormalizeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fixed)

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusInProgress, task.Status)
}

func TestMarkInProgressIncrementsPrimaryOnly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	primary := createTask(t, s, domain.Task{Name: "primary", Project: "p", Phase: "1"})
	sibling := createTask(t, s, domain.Task{Name: "sibling", Project: "p", Phase: "1"})

	err := s.MarkInProgress(ctx, []int64{primary, sibling}, primary, constants.RoleValidator, 4242, "run-7")
	require.NoError(t, err)

	p, err := s.GetTask(ctx, primary)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusInProgress, p.Status)
	assert.Equal(t, constants.RoleValidator, p.Role)
	assert.Equal(t, 4242, p.WorkerPID)
	assert.Equal(t, "run-7", p.RunID)
	assert.Equal(t, 1, p.AttemptCount)
	require.NotNil(t, p.StartedAt)

	sib, err := s.GetTask(ctx, sibling)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusInProgress, sib.Status)
	assert.Equal(t, 4242, sib.WorkerPID)
	assert.Zero(t, sib.AttemptCount)
}

func TestMarkInProgressUnknownTask(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.MarkInProgress(context.Background(), []int64{555}, 555, constants.RoleBuilder, 1, "run-x")
	require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
}

func TestMarkReady(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "build me"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleBuilder, 77, "run-1"))

	require.NoError(t, s.MarkReady(ctx, []int64{id}, "build finished", true))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusReadyForTesting, task.Status)
	assert.Zero(t, task.WorkerPID)
	assert.Nil(t, task.StartedAt)
	assert.Zero(t, task.AttemptCount, "build success resets the counter")
}

func TestMarkReadyKeepsAttemptsOnSoftFailure(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "flappy"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleValidator, 77, "run-1"))

	require.NoError(t, s.MarkReady(ctx, []int64{id}, "validated but publish unconfirmed", false))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusReadyForTesting, task.Status)
	assert.Equal(t, 1, task.AttemptCount)
}

func TestMarkBlockedRecordsIncident(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	primary := createTask(t, s, domain.Task{Name: "primary"})
	sibling := createTask(t, s, domain.Task{Name: "sibling"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{primary, sibling}, primary, constants.RoleValidator, 9, "run-2"))

	err := s.MarkBlocked(ctx, []int64{primary, sibling}, primary, "migration conflicts with main", "stderr tail here")
	require.NoError(t, err)

	p, err := s.GetTask(ctx, primary)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusBlocked, p.Status)
	assert.Equal(t, "migration conflicts with main", p.BlockedReason)
	assert.Equal(t, "stderr tail here", p.ErrorLog)
	assert.Zero(t, p.WorkerPID)

	sib, err := s.GetTask(ctx, sibling)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusBlocked, sib.Status)
	assert.Empty(t, sib.ErrorLog)

	reasons, err := s.ListBlockedReasons(ctx, primary)
	require.NoError(t, err)
	require.Len(t, reasons, 1)
	assert.Equal(t, "migration conflicts with main", reasons[0].Reason)

	sibReasons, err := s.ListBlockedReasons(ctx, sibling)
	require.NoError(t, err)
	assert.Empty(t, sibReasons)
}

func TestBlockedReasonsAccumulate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "repeat offender"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleBuilder, 9, "run-1"))
	require.NoError(t, s.MarkBlocked(ctx, []int64{id}, id, "first failure", ""))
	require.NoError(t, s.Unblock(ctx, id, constants.TaskStatusTodo, ""))
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleBuilder, 10, "run-2"))
	require.NoError(t, s.MarkBlocked(ctx, []int64{id}, id, "second failure", ""))

	reasons, err := s.ListBlockedReasons(ctx, id)
	require.NoError(t, err)
	require.Len(t, reasons, 1, "unblock clears prior incidents")
	assert.Equal(t, "second failure", reasons[0].Reason)
}

func TestResetToTodoKeepsAttemptCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "stale worker"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleBuilder, 31337, "run-1"))

	require.NoError(t, s.ResetToTodo(ctx, id, "stale timeout"))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusTodo, task.Status)
	assert.Equal(t, constants.RoleBuilder, task.Role)
	assert.Zero(t, task.WorkerPID)
	assert.Nil(t, task.StartedAt)
	assert.Equal(t, 1, task.AttemptCount, "reset must not forgive the attempt")

	reasons, err := s.ListBlockedReasons(ctx, id)
	require.NoError(t, err)
	require.Len(t, reasons, 1)
	assert.Equal(t, "stale timeout", reasons[0].Reason)
}

func TestMarkComplete(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	a := createTask(t, s, domain.Task{Name: "a"})
	b := createTask(t, s, domain.Task{Name: "b"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{a, b}, a, constants.RoleValidator, 5, "run-1"))

	clk.Advance(10 * time.Minute)
	require.NoError(t, s.MarkComplete(ctx, []int64{a, b}, "phase validated and published"))

	for _, id := range []int64{a, b} {
		task, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusComplete, task.Status)
		require.NotNil(t, task.CompletedAt)
		assert.True(t, task.CompletedAt.Equal(clk.Now().UTC()))
	}
}

func TestUnblock(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id := createTask(t, s, domain.Task{Name: "needs help", Solution: "earlier hint"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{id}, id, constants.RoleBuilder, 5, "run-1"))
	require.NoError(t, s.MarkBlocked(ctx, []int64{id}, id, "missing credentials", "log"))

	require.NoError(t, s.Unblock(ctx, id, constants.TaskStatusTodo, "use the staging key"))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusTodo, task.Status)
	assert.Zero(t, task.AttemptCount)
	assert.Empty(t, task.BlockedReason)
	assert.Empty(t, task.ErrorLog)
	assert.Empty(t, task.RunID)
	assert.Equal(t, "earlier hint\nuse the staging key", task.Solution)

	reasons, err := s.ListBlockedReasons(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, reasons)
}

func TestUnblockRejectsNonBlockedTask(t *testing.T) {
	s, _ := newTestStore(t)

	id := createTask(t, s, domain.Task{Name: "fine actually"})
	err := s.Unblock(context.Background(), id, constants.TaskStatusTodo, "")
	require.ErrorIs(t, err, foremanerrors.ErrTaskNotBlocked)
}

func TestUnblockAll(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := createTask(t, s, domain.Task{Name: "a"})
	b := createTask(t, s, domain.Task{Name: "b"})
	c := createTask(t, s, domain.Task{Name: "c"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{a, b}, a, constants.RoleBuilder, 5, "run-1"))
	require.NoError(t, s.MarkBlocked(ctx, []int64{a}, a, "reason a", ""))
	require.NoError(t, s.MarkBlocked(ctx, []int64{b}, b, "reason b", ""))

	released, err := s.UnblockAll(ctx, constants.TaskStatusTodo, "retry everything")
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	for _, id := range []int64{a, b} {
		task, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusTodo, task.Status)
	}

	untouched, err := s.GetTask(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusTodo, untouched.Status)
	assert.Empty(t, untouched.Solution)
}

func TestCountByStatusAndSaveSummary(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := createTask(t, s, domain.Task{Name: "a"})
	createTask(t, s, domain.Task{Name: "b"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{a}, a, constants.RoleBuilder, 5, "run-1"))
	_, err := s.CreateQuestion(ctx, &domain.PendingQuestion{Agent: "builder", Question: "which branch?"})
	require.NoError(t, err)

	summary, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Todo)
	assert.Equal(t, 1, summary.InProgress)
	assert.Equal(t, 1, summary.PendingQuestion)
	assert.Equal(t, 2, summary.Total())

	require.NoError(t, s.SaveSummary(ctx, summary))
	require.NoError(t, s.SaveSummary(ctx, summary), "upsert must be repeatable")
}

func TestSweepCompleted(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	old := createTask(t, s, domain.Task{Name: "old"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{old}, old, constants.RoleValidator, 5, "run-1"))
	require.NoError(t, s.MarkComplete(ctx, []int64{old}, "done"))

	clk.Advance(21 * 24 * time.Hour)
	fresh := createTask(t, s, domain.Task{Name: "fresh"})
	require.NoError(t, s.MarkInProgress(ctx, []int64{fresh}, fresh, constants.RoleValidator, 6, "run-2"))
	require.NoError(t, s.MarkComplete(ctx, []int64{fresh}, "done"))

	swept, err := s.SweepCompleted(ctx, clk.Now().UTC().Add(-14*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, err = s.GetTask(ctx, old)
	require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
	history, err := s.ListHistory(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = s.GetTask(ctx, fresh)
	require.NoError(t, err)
}

func TestQuestionLifecycle(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateQuestion(ctx, &domain.PendingQuestion{Agent: "builder", Question: "first?"})
	require.NoError(t, err)
	_, err = s.CreateQuestion(ctx, &domain.PendingQuestion{Agent: "builder", Question: "second?"})
	require.NoError(t, err)

	pending, err := s.ListQuestions(ctx, domain.QuestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].ID)

	answered, err := s.AnswerOldest(ctx, "use main")
	require.NoError(t, err)
	assert.Equal(t, first, answered.ID)
	assert.Equal(t, "use main", answered.Answer)
	assert.Equal(t, domain.QuestionAnswered, answered.Status)

	clk.Advance(2 * time.Hour)
	expired, err := s.ExpireQuestions(ctx, clk.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	pending, err = s.ListQuestions(ctx, domain.QuestionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.AnswerOldest(ctx, "anyone?")
	require.ErrorIs(t, err, foremanerrors.ErrNoPendingQuestions)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
