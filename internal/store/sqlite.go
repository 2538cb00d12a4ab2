package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quarryworks/foreman/internal/clock"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	project        TEXT NOT NULL DEFAULT '',
	phase          TEXT NOT NULL DEFAULT '',
	priority       INTEGER NOT NULL DEFAULT 0,
	plan           TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	solution       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'TODO',
	role           TEXT NOT NULL DEFAULT 'builder',
	worker_pid     INTEGER NOT NULL DEFAULT 0,
	run_id         TEXT NOT NULL DEFAULT '',
	attempt_count  INTEGER NOT NULL DEFAULT 0,
	blocked_reason TEXT NOT NULL DEFAULT '',
	error_log      TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL,
	started_at     DATETIME,
	completed_at   DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_status   ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_role     ON tasks(role);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority DESC, id ASC);
CREATE INDEX IF NOT EXISTS idx_tasks_phase    ON tasks(project, phase);

CREATE TABLE IF NOT EXISTS task_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	changed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_task ON task_history(task_id, id);

CREATE TABLE IF NOT EXISTS blocked_reasons (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocked_task ON blocked_reasons(task_id, id);

CREATE TABLE IF NOT EXISTS pending_questions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	agent      TEXT NOT NULL DEFAULT '',
	task_id    INTEGER NOT NULL DEFAULT 0,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_status ON pending_questions(status, id);

CREATE TABLE IF NOT EXISTS status_summary (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	todo              INTEGER NOT NULL DEFAULT 0,
	in_progress       INTEGER NOT NULL DEFAULT 0,
	ready_for_testing INTEGER NOT NULL DEFAULT 0,
	complete          INTEGER NOT NULL DEFAULT 0,
	blocked           INTEGER NOT NULL DEFAULT 0,
	pending_questions INTEGER NOT NULL DEFAULT 0,
	refreshed_at      DATETIME NOT NULL
);
`

// SQLiteStore persists tasks in a local SQLite database. A single open
// connection serializes writers, which is all the dispatcher needs.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string, clk clock.Clock) (*SQLiteStore, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, foremanerrors.Wrapf(err, "failed to create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to open sqlite database %s", dbPath)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, foremanerrors.Wrap(err, "failed to configure sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, foremanerrors.Wrap(err, "failed to create schema")
	}
	return &SQLiteStore{db: db, clock: clk}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return foremanerrors.Wrap(foremanerrors.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return foremanerrors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return foremanerrors.Wrap(tx.Commit(), "failed to commit transaction")
}

// appendHistory writes one audit row. Always called inside the transaction of
// the mutation it describes.
func appendHistory(tx *sql.Tx, taskID int64, status constants.TaskStatus, detail, runID string, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO task_history (task_id, status, detail, run_id, changed_at) VALUES (?,?,?,?,?)`,
		taskID, status.String(), detail, runID, now,
	)
	return foremanerrors.Wrapf(err, "failed to append history for task %d", taskID)
}

// CreateTask inserts a task and returns its id.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *domain.Task) (int64, error) {
	if t.Status == "" {
		t.Status = constants.TaskStatusTodo
	}
	if t.Role == "" {
		t.Role = constants.RoleBuilder
	}
	now := s.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO tasks
				(name, project, phase, priority, plan, notes, solution, status, role,
				 worker_pid, run_id, attempt_count, blocked_reason, error_log,
				 created_at, updated_at, started_at, completed_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.Name, t.Project, t.Phase, t.Priority, t.Plan, t.Notes, t.Solution,
			t.Status.String(), string(t.Role),
			t.WorkerPID, t.RunID, t.AttemptCount, t.BlockedReason, t.ErrorLog,
			t.CreatedAt, t.UpdatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt),
		)
		if err != nil {
			return foremanerrors.Wrap(err, "failed to insert task")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return foremanerrors.Wrap(err, "failed to read inserted task id")
		}
		return appendHistory(tx, id, t.Status, "created", t.RunID, now)
	})
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// GetTask loads one task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, foremanerrors.Wrapf(foremanerrors.ErrTaskNotFound, "task %d", id)
	}
	return t, err
}

// ListTasks returns tasks matching the filter.
func (s *SQLiteStore) ListTasks(ctx context.Context, f Filter) ([]*domain.Task, error) {
	q := strings.Builder{}
	q.WriteString(selectTask + ` WHERE 1=1`)
	args := []any{}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, st.String())
		}
		q.WriteString(" AND status IN (" + strings.Join(placeholders, ",") + ")")
	}
	if f.Role != "" {
		q.WriteString(" AND role = ?")
		args = append(args, string(f.Role))
	}
	if f.Project != "" {
		q.WriteString(" AND project = ?")
		args = append(args, f.Project)
	}
	if f.Phase != "" {
		q.WriteString(" AND phase = ?")
		args = append(args, f.Phase)
	}
	if f.OrderByPriority {
		q.WriteString(" ORDER BY priority DESC, id ASC")
	} else {
		q.WriteString(" ORDER BY id ASC")
	}
	if f.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, foremanerrors.Wrap(err, "failed to list tasks")
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, foremanerrors.Wrap(rows.Err(), "failed to iterate tasks")
}

// NormalizeStatuses rewrites non-canonical status values written by external
// tools to canonical form. Unrecognized values are left alone.
func (s *SQLiteStore) NormalizeStatuses(ctx context.Context) (int64, error) {
	var fixed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id, status FROM tasks WHERE status NOT IN (?,?,?,?,?)`,
			constants.TaskStatusTodo.String(), constants.TaskStatusInProgress.String(),
			constants.TaskStatusReadyForTesting.String(), constants.TaskStatusComplete.String(),
			constants.TaskStatusBlocked.String(),
		)
		if err != nil {
			return foremanerrors.Wrap(err, "failed to scan for non-canonical statuses")
		}
		type fixup struct {
			id     int64
			status constants.TaskStatus
		}
		var fixes []fixup
		for rows.Next() {
			var id int64
			var raw string
			if err := rows.Scan(&id, &raw); err != nil {
				_ = rows.Close()
				return foremanerrors.Wrap(err, "failed to scan status row")
			}
			if canonical, ok := constants.NormalizeStatus(raw); ok {
				fixes = append(fixes, fixup{id: id, status: canonical})
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return foremanerrors.Wrap(err, "failed to iterate status rows")
		}
		_ = rows.Close()

		now := s.clock.Now().UTC()
		for _, f := range fixes {
			if _, err := tx.Exec(
				`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
				f.status.String(), now, f.id,
			); err != nil {
				return foremanerrors.Wrapf(err, "failed to normalize task %d", f.id)
			}
			if err := appendHistory(tx, f.id, f.status, "status normalized", "", now); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	return fixed, err
}

// MarkInProgress moves tasks to IN_PROGRESS with the given worker handle.
// Only primaryID has its attempt counter incremented.
func (s *SQLiteStore) MarkInProgress(ctx context.Context, ids []int64, primaryID int64, role constants.Role, pid int, runID string) error {
	now := s.clock.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			increment := 0
			if id == primaryID {
				increment = 1
			}
			res, err := tx.Exec(`
				UPDATE tasks SET
					status = ?, role = ?, worker_pid = ?, run_id = ?,
					attempt_count = attempt_count + ?,
					started_at = ?, updated_at = ?
				WHERE id = ?`,
				constants.TaskStatusInProgress.String(), string(role), pid, runID,
				increment, now, now, id,
			)
			if err != nil {
				return foremanerrors.Wrapf(err, "failed to mark task %d in progress", id)
			}
			if err := requireRow(res, id); err != nil {
				return err
			}
			if err := appendHistory(tx, id, constants.TaskStatusInProgress, string(role)+" started", runID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkReady moves tasks to READY_FOR_TESTING and clears their worker handles.
func (s *SQLiteStore) MarkReady(ctx context.Context, ids []int64, detail string, resetAttempts bool) error {
	now := s.clock.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			query := `
				UPDATE tasks SET
					status = ?, worker_pid = 0, started_at = NULL, updated_at = ?
				WHERE id = ?`
			args := []any{constants.TaskStatusReadyForTesting.String(), now, id}
			if resetAttempts {
				query = `
				UPDATE tasks SET
					status = ?, worker_pid = 0, started_at = NULL, updated_at = ?,
					attempt_count = 0
				WHERE id = ?`
			}
			res, err := tx.Exec(query, args...)
			if err != nil {
				return foremanerrors.Wrapf(err, "failed to mark task %d ready", id)
			}
			if err := requireRow(res, id); err != nil {
				return err
			}
			if err := appendHistory(tx, id, constants.TaskStatusReadyForTesting, detail, "", now); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkBlocked moves tasks to BLOCKED and records the incident on primaryID.
func (s *SQLiteStore) MarkBlocked(ctx context.Context, ids []int64, primaryID int64, reason, errorLog string) error {
	now := s.clock.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			logValue := ""
			if id == primaryID {
				logValue = errorLog
			}
			res, err := tx.Exec(`
				UPDATE tasks SET
					status = ?, blocked_reason = ?, error_log = ?,
					worker_pid = 0, started_at = NULL, updated_at = ?
				WHERE id = ?`,
				constants.TaskStatusBlocked.String(), reason, logValue, now, id,
			)
			if err != nil {
				return foremanerrors.Wrapf(err, "failed to mark task %d blocked", id)
			}
			if err := requireRow(res, id); err != nil {
				return err
			}
			if err := appendHistory(tx, id, constants.TaskStatusBlocked, reason, "", now); err != nil {
				return err
			}
		}
		_, err := tx.Exec(
			`INSERT INTO blocked_reasons (task_id, reason, created_at) VALUES (?,?,?)`,
			primaryID, reason, now,
		)
		return foremanerrors.Wrapf(err, "failed to record blocked reason for task %d", primaryID)
	})
}

// ResetToTodo returns a stale task to TODO. The attempt counter keeps its
// launch-time increment so repeated staleness still hits the cap.
func (s *SQLiteStore) ResetToTodo(ctx context.Context, id int64, reason string) error {
	now := s.clock.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE tasks SET
				status = ?, role = ?, worker_pid = 0, started_at = NULL, updated_at = ?
			WHERE id = ?`,
			constants.TaskStatusTodo.String(), string(constants.RoleBuilder), now, id,
		)
		if err != nil {
			return foremanerrors.Wrapf(err, "failed to reset task %d", id)
		}
		if err := requireRow(res, id); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO blocked_reasons (task_id, reason, created_at) VALUES (?,?,?)`,
			id, reason, now,
		); err != nil {
			return foremanerrors.Wrapf(err, "failed to record reset reason for task %d", id)
		}
		return appendHistory(tx, id, constants.TaskStatusTodo, reason, "", now)
	})
}

// MarkComplete moves tasks to COMPLETE and stamps completed_at.
func (s *SQLiteStore) MarkComplete(ctx context.Context, ids []int64, detail string) error {
	now := s.clock.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.Exec(`
				UPDATE tasks SET
					status = ?, worker_pid = 0, started_at = NULL,
					completed_at = ?, updated_at = ?
				WHERE id = ?`,
				constants.TaskStatusComplete.String(), now, now, id,
			)
			if err != nil {
				return foremanerrors.Wrapf(err, "failed to mark task %d complete", id)
			}
			if err := requireRow(res, id); err != nil {
				return err
			}
			if err := appendHistory(tx, id, constants.TaskStatusComplete, detail, "", now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Unblock releases one BLOCKED task back to target.
func (s *SQLiteStore) Unblock(ctx context.Context, id int64, target constants.TaskStatus, solution string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.unblockInTx(tx, id, target, solution)
	})
}

// UnblockAll releases every BLOCKED task back to target.
func (s *SQLiteStore) UnblockAll(ctx context.Context, target constants.TaskStatus, solution string) (int64, error) {
	var released int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id FROM tasks WHERE status = ? ORDER BY id ASC`, constants.TaskStatusBlocked.String())
		if err != nil {
			return foremanerrors.Wrap(err, "failed to list blocked tasks")
		}
		var ids []int64
		for rows.Next() {
			var taskID int64
			if err := rows.Scan(&taskID); err != nil {
				_ = rows.Close()
				return foremanerrors.Wrap(err, "failed to scan blocked task id")
			}
			ids = append(ids, taskID)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return foremanerrors.Wrap(err, "failed to iterate blocked tasks")
		}
		_ = rows.Close()

		for _, taskID := range ids {
			if err := s.unblockInTx(tx, taskID, target, solution); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	return released, err
}

func (s *SQLiteStore) unblockInTx(tx *sql.Tx, id int64, target constants.TaskStatus, solution string) error {
	var rawStatus, existing string
	err := tx.QueryRow(`SELECT status, solution FROM tasks WHERE id = ?`, id).Scan(&rawStatus, &existing)
	if stderrors.Is(err, sql.ErrNoRows) {
		return foremanerrors.Wrapf(foremanerrors.ErrTaskNotFound, "task %d", id)
	}
	if err != nil {
		return foremanerrors.Wrapf(err, "failed to load task %d", id)
	}
	status, _ := constants.NormalizeStatus(rawStatus)
	if status != constants.TaskStatusBlocked {
		return foremanerrors.Wrapf(foremanerrors.ErrTaskNotBlocked, "task %d is %s", id, rawStatus)
	}

	merged := existing
	if solution != "" {
		if merged != "" {
			merged += "\n"
		}
		merged += solution
	}

	now := s.clock.Now().UTC()
	if _, err := tx.Exec(`
		UPDATE tasks SET
			status = ?, role = ?, solution = ?,
			attempt_count = 0, blocked_reason = '', error_log = '',
			worker_pid = 0, run_id = '', started_at = NULL, updated_at = ?
		WHERE id = ?`,
		target.String(), string(constants.RoleBuilder), merged, now, id,
	); err != nil {
		return foremanerrors.Wrapf(err, "failed to unblock task %d", id)
	}
	if _, err := tx.Exec(`DELETE FROM blocked_reasons WHERE task_id = ?`, id); err != nil {
		return foremanerrors.Wrapf(err, "failed to clear blocked reasons for task %d", id)
	}
	return appendHistory(tx, id, target, "unblocked by operator", "", now)
}

// ListBlockedReasons returns the incident log for a task, oldest first.
func (s *SQLiteStore) ListBlockedReasons(ctx context.Context, taskID int64) ([]domain.BlockedReason, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, reason, created_at FROM blocked_reasons WHERE task_id = ? ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to list blocked reasons for task %d", taskID)
	}
	defer func() { _ = rows.Close() }()

	var reasons []domain.BlockedReason
	for rows.Next() {
		var r domain.BlockedReason
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Reason, &r.CreatedAt); err != nil {
			return nil, foremanerrors.Wrap(err, "failed to scan blocked reason")
		}
		reasons = append(reasons, r)
	}
	return reasons, foremanerrors.Wrap(rows.Err(), "failed to iterate blocked reasons")
}

// ListHistory returns the audit trail for a task, oldest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, taskID int64) ([]domain.TaskHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, status, detail, run_id, changed_at FROM task_history WHERE task_id = ? ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to list history for task %d", taskID)
	}
	defer func() { _ = rows.Close() }()

	var history []domain.TaskHistory
	for rows.Next() {
		var h domain.TaskHistory
		var status string
		if err := rows.Scan(&h.ID, &h.TaskID, &status, &h.Detail, &h.RunID, &h.ChangedAt); err != nil {
			return nil, foremanerrors.Wrap(err, "failed to scan history row")
		}
		if canonical, ok := constants.NormalizeStatus(status); ok {
			h.Status = canonical
		} else {
			h.Status = constants.TaskStatus(status)
		}
		history = append(history, h)
	}
	return history, foremanerrors.Wrap(rows.Err(), "failed to iterate history")
}

// CountByStatus aggregates the task table into a status summary.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (domain.StatusSummary, error) {
	summary := domain.StatusSummary{RefreshedAt: s.clock.Now().UTC()}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return summary, foremanerrors.Wrap(err, "failed to count tasks")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var raw string
		var count int
		if err := rows.Scan(&raw, &count); err != nil {
			return summary, foremanerrors.Wrap(err, "failed to scan status count")
		}
		status, _ := constants.NormalizeStatus(raw)
		switch status {
		case constants.TaskStatusTodo:
			summary.Todo += count
		case constants.TaskStatusInProgress:
			summary.InProgress += count
		case constants.TaskStatusReadyForTesting:
			summary.ReadyForTesting += count
		case constants.TaskStatusComplete:
			summary.Complete += count
		case constants.TaskStatusBlocked:
			summary.Blocked += count
		}
	}
	if err := rows.Err(); err != nil {
		return summary, foremanerrors.Wrap(err, "failed to iterate status counts")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_questions WHERE status = ?`,
		string(domain.QuestionPending),
	).Scan(&summary.PendingQuestion)
	if err != nil {
		return summary, foremanerrors.Wrap(err, "failed to count pending questions")
	}
	return summary, nil
}

// SaveSummary upserts the single status summary row read by external monitors.
func (s *SQLiteStore) SaveSummary(ctx context.Context, sum domain.StatusSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_summary
			(id, todo, in_progress, ready_for_testing, complete, blocked, pending_questions, refreshed_at)
		VALUES (1,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			todo = excluded.todo,
			in_progress = excluded.in_progress,
			ready_for_testing = excluded.ready_for_testing,
			complete = excluded.complete,
			blocked = excluded.blocked,
			pending_questions = excluded.pending_questions,
			refreshed_at = excluded.refreshed_at`,
		sum.Todo, sum.InProgress, sum.ReadyForTesting, sum.Complete, sum.Blocked,
		sum.PendingQuestion, sum.RefreshedAt,
	)
	return foremanerrors.Wrap(err, "failed to save status summary")
}

// SweepCompleted deletes COMPLETE tasks older than the cutoff along with
// their history and incident rows.
func (s *SQLiteStore) SweepCompleted(ctx context.Context, before time.Time) (int64, error) {
	var swept int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT id FROM tasks WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
			constants.TaskStatusComplete.String(), before,
		)
		if err != nil {
			return foremanerrors.Wrap(err, "failed to find expired tasks")
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return foremanerrors.Wrap(err, "failed to scan expired task id")
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return foremanerrors.Wrap(err, "failed to iterate expired tasks")
		}
		_ = rows.Close()

		for _, id := range ids {
			if _, err := tx.Exec(`DELETE FROM task_history WHERE task_id = ?`, id); err != nil {
				return foremanerrors.Wrapf(err, "failed to delete history for task %d", id)
			}
			if _, err := tx.Exec(`DELETE FROM blocked_reasons WHERE task_id = ?`, id); err != nil {
				return foremanerrors.Wrapf(err, "failed to delete blocked reasons for task %d", id)
			}
			if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
				return foremanerrors.Wrapf(err, "failed to delete task %d", id)
			}
			swept++
		}
		return nil
	})
	return swept, err
}

// CreateQuestion records a pending operator question.
func (s *SQLiteStore) CreateQuestion(ctx context.Context, q *domain.PendingQuestion) (int64, error) {
	if q.Status == "" {
		q.Status = domain.QuestionPending
	}
	now := s.clock.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_questions (agent, task_id, question, answer, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		q.Agent, q.TaskID, q.Question, q.Answer, string(q.Status), q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to insert question")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to read inserted question id")
	}
	q.ID = id
	return id, nil
}

// ListQuestions returns questions in the given state, oldest first.
func (s *SQLiteStore) ListQuestions(ctx context.Context, status domain.QuestionStatus) ([]domain.PendingQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, task_id, question, answer, status, created_at, updated_at
		FROM pending_questions WHERE status = ? ORDER BY id ASC`,
		string(status),
	)
	if err != nil {
		return nil, foremanerrors.Wrap(err, "failed to list questions")
	}
	defer func() { _ = rows.Close() }()

	var questions []domain.PendingQuestion
	for rows.Next() {
		var q domain.PendingQuestion
		var qs string
		if err := rows.Scan(&q.ID, &q.Agent, &q.TaskID, &q.Question, &q.Answer, &qs, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, foremanerrors.Wrap(err, "failed to scan question")
		}
		q.Status = domain.QuestionStatus(qs)
		questions = append(questions, q)
	}
	return questions, foremanerrors.Wrap(rows.Err(), "failed to iterate questions")
}

// AnswerOldest answers the oldest pending question and returns it.
func (s *SQLiteStore) AnswerOldest(ctx context.Context, answer string) (*domain.PendingQuestion, error) {
	var q domain.PendingQuestion
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var qs string
		err := tx.QueryRow(`
			SELECT id, agent, task_id, question, answer, status, created_at, updated_at
			FROM pending_questions WHERE status = ? ORDER BY id ASC LIMIT 1`,
			string(domain.QuestionPending),
		).Scan(&q.ID, &q.Agent, &q.TaskID, &q.Question, &q.Answer, &qs, &q.CreatedAt, &q.UpdatedAt)
		if stderrors.Is(err, sql.ErrNoRows) {
			return foremanerrors.ErrNoPendingQuestions
		}
		if err != nil {
			return foremanerrors.Wrap(err, "failed to load oldest pending question")
		}

		now := s.clock.Now().UTC()
		if _, err := tx.Exec(
			`UPDATE pending_questions SET answer = ?, status = ?, updated_at = ? WHERE id = ?`,
			answer, string(domain.QuestionAnswered), now, q.ID,
		); err != nil {
			return foremanerrors.Wrapf(err, "failed to answer question %d", q.ID)
		}
		q.Answer = answer
		q.Status = domain.QuestionAnswered
		q.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ExpireQuestions marks pending questions asked before the cutoff as expired.
func (s *SQLiteStore) ExpireQuestions(ctx context.Context, before time.Time) (int64, error) {
	now := s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_questions SET status = ?, updated_at = ?
		WHERE status = ? AND created_at < ?`,
		string(domain.QuestionExpired), now, string(domain.QuestionPending), before,
	)
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to expire questions")
	}
	expired, err := res.RowsAffected()
	return expired, foremanerrors.Wrap(err, "failed to count expired questions")
}

const selectTask = `
	SELECT id, name, project, phase, priority, plan, notes, solution, status, role,
	       worker_pid, run_id, attempt_count, blocked_reason, error_log,
	       created_at, updated_at, started_at, completed_at
	FROM tasks`

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row. Status values are normalized on the way out so
// callers never see an alias written by an external tool.
func scanTask(sc scanner) (*domain.Task, error) {
	var t domain.Task
	var status, role string
	var startedAt, completedAt sql.NullTime

	err := sc.Scan(
		&t.ID, &t.Name, &t.Project, &t.Phase, &t.Priority,
		&t.Plan, &t.Notes, &t.Solution, &status, &role,
		&t.WorkerPID, &t.RunID, &t.AttemptCount, &t.BlockedReason, &t.ErrorLog,
		&t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if canonical, ok := constants.NormalizeStatus(status); ok {
		t.Status = canonical
	} else {
		t.Status = constants.TaskStatus(status)
	}
	if canonical, ok := constants.NormalizeRole(role); ok {
		t.Role = canonical
	} else {
		t.Role = constants.Role(role)
	}

	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// nullTime converts an optional timestamp to its nullable column value.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return foremanerrors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return foremanerrors.Wrapf(foremanerrors.ErrTaskNotFound, "task %d", id)
	}
	return nil
}
