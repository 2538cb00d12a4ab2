package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/store"
	"github.com/quarryworks/foreman/internal/worker"
)

// workerGroup is the set of IN_PROGRESS tasks sharing one worker handle. For
// builders the group is a single task; for validators it is a whole phase.
type workerGroup struct {
	pid   int
	runID string
	role  constants.Role
	tasks []*domain.Task
}

// primary returns the task carrying the group's bookkeeping: the lowest id.
func (g *workerGroup) primary() *domain.Task {
	return g.tasks[0]
}

func (g *workerGroup) ids() []int64 {
	ids := make([]int64, len(g.tasks))
	for i, t := range g.tasks {
		ids[i] = t.ID
	}
	return ids
}

// reconcile verifies every recorded worker handle against a live process and
// applies the outcomes of workers that finished or went stale. Nothing is
// dispatched until this has run; slot math depends on it.
func (d *Dispatcher) reconcile(ctx context.Context, result *PassResult) error {
	inProgress, err := d.store.ListTasks(ctx, store.Filter{
		Statuses: []constants.TaskStatus{constants.TaskStatusInProgress},
	})
	if err != nil {
		return foremanerrors.Wrap(err, "failed to list in-progress tasks")
	}

	for _, group := range groupByWorker(inProgress) {
		if err := d.reconcileGroup(ctx, group, result); err != nil {
			return err
		}
	}
	return nil
}

// groupByWorker buckets in-progress tasks by their recorded handle, ordered
// by primary id for deterministic processing.
func groupByWorker(tasks []*domain.Task) []*workerGroup {
	byHandle := make(map[string]*workerGroup)
	for _, t := range tasks {
		key := fmt.Sprintf("%d/%s", t.WorkerPID, t.RunID)
		g, ok := byHandle[key]
		if !ok {
			g = &workerGroup{pid: t.WorkerPID, runID: t.RunID, role: t.Role}
			byHandle[key] = g
		}
		g.tasks = append(g.tasks, t)
	}

	groups := make([]*workerGroup, 0, len(byHandle))
	for _, g := range byHandle {
		sort.Slice(g.tasks, func(i, j int) bool { return g.tasks[i].ID < g.tasks[j].ID })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].primary().ID < groups[j].primary().ID })
	return groups
}

func (d *Dispatcher) reconcileGroup(ctx context.Context, group *workerGroup, result *PassResult) error {
	primary := group.primary()

	// A task IN_PROGRESS without a handle should not exist; an external
	// writer put it there. Treat it as an abrupt stop.
	if group.pid <= 0 {
		d.logger.Warn().Int64("task_id", primary.ID).Msg("in-progress task without worker handle")
		return d.applyFailure(ctx, group, constants.ReasonAbruptStop, "", result)
	}

	alive := d.prober.Alive(group.pid)
	stale := false
	if primary.StartedAt != nil {
		stale = d.clock.Now().UTC().Sub(primary.StartedAt.UTC()) >= d.cfg.Dispatch.StaleThreshold
	}

	switch {
	case alive && !stale:
		// Healthy worker; keeps its slot.
		return nil

	case alive && stale:
		d.logger.Warn().
			Int("pid", group.pid).
			Int64("task_id", primary.ID).
			Msg("worker exceeded stale threshold, terminating")
		if err := d.terminator.Terminate(group.pid, d.cfg.Dispatch.GracePeriod); err != nil {
			d.logger.Error().Err(err).Int("pid", group.pid).Msg("failed to terminate stale worker")
		}
		return d.applyFailure(ctx, group, constants.ReasonStaleTimeout, d.outputTail(group), result)

	default:
		// Worker is gone; its output file carries the verdict, if any.
		return d.applyVerdict(ctx, group, result)
	}
}

// applyVerdict reads a finished worker's output and applies the parsed
// outcome. A markerless exit is a synthetic failure: silence is never
// success.
func (d *Dispatcher) applyVerdict(ctx context.Context, group *workerGroup, result *PassResult) error {
	primary := group.primary()

	if group.runID == "" {
		return d.applyFailure(ctx, group, constants.ReasonAbruptStop, "", result)
	}

	outcome, err := worker.ReadOutcome(d.outputPath(group.runID), primary.ID)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Int64("task_id", primary.ID).
			Str("run_id", group.runID).
			Msg("worker finished without a verdict")
		return d.applyFailure(ctx, group, constants.ReasonNoMarker, d.outputTail(group), result)
	}

	if outcome.Kind == domain.OutcomeBlocked {
		return d.applyFailure(ctx, group, outcome.Reason, d.outputTail(group), result)
	}

	if group.role == constants.RoleValidator {
		return d.applyValidatorSuccess(ctx, group, outcome, result)
	}
	return d.applyBuilderSuccess(ctx, group, result)
}

func (d *Dispatcher) applyBuilderSuccess(ctx context.Context, group *workerGroup, result *PassResult) error {
	primary := group.primary()

	if err := d.store.MarkReady(ctx, group.ids(), "build finished", true); err != nil {
		return foremanerrors.Wrapf(err, "failed to mark task %d ready", primary.ID)
	}
	result.ReadyTasks += len(group.tasks)
	d.notify(ctx, domain.Event{
		Kind: domain.EventReady, TaskID: primary.ID, TaskName: primary.Name,
	})
	return nil
}

// applyValidatorSuccess completes a phase only when the worker confirmed the
// publish. A success claim without the confirmation is a soft failure: the
// phase returns to the validation queue instead of silently completing.
func (d *Dispatcher) applyValidatorSuccess(ctx context.Context, group *workerGroup, outcome *domain.WorkerOutcome, result *PassResult) error {
	primary := group.primary()

	if !outcome.Published {
		d.logger.Warn().
			Int64("task_id", primary.ID).
			Msg("validation passed without publish confirmation, requeueing phase")
		if err := d.store.MarkReady(ctx, group.ids(), constants.ReasonNoPublish, false); err != nil {
			return foremanerrors.Wrapf(err, "failed to requeue phase for task %d", primary.ID)
		}
		result.ReadyTasks += len(group.tasks)
		return nil
	}

	detail := fmt.Sprintf("validated, pushed %s (%s)", outcome.PublishRef, outcome.PublishID)
	if err := d.store.MarkComplete(ctx, group.ids(), detail); err != nil {
		return foremanerrors.Wrapf(err, "failed to complete phase for task %d", primary.ID)
	}
	result.CompletedTasks += len(group.tasks)
	d.notify(ctx, domain.Event{
		Kind: domain.EventComplete, TaskID: primary.ID, TaskName: primary.Name, Details: detail,
	})
	return nil
}

// applyFailure records one failed attempt for a worker group. Below the
// attempt budget the work is retried; at the budget it escalates to BLOCKED
// with the accumulated incident log attached.
func (d *Dispatcher) applyFailure(ctx context.Context, group *workerGroup, reason, errorLog string, result *PassResult) error {
	primary := group.primary()

	budget := d.cfg.Builder.MaxAttempts
	if group.role == constants.RoleValidator {
		budget = d.cfg.Validator.MaxAttempts
	}

	if primary.AttemptCount >= budget {
		return d.escalate(ctx, group.ids(), primary, reason, errorLog, result)
	}

	if group.role == constants.RoleValidator {
		// A failed validation returns the whole phase to the validation
		// queue; the build results are still good.
		if err := d.store.MarkReady(ctx, group.ids(), reason, false); err != nil {
			return foremanerrors.Wrapf(err, "failed to requeue phase for task %d", primary.ID)
		}
		result.ReadyTasks += len(group.tasks)
	} else {
		if err := d.store.ResetToTodo(ctx, primary.ID, reason); err != nil {
			return foremanerrors.Wrapf(err, "failed to reset task %d", primary.ID)
		}
		result.ResetTasks++
	}

	d.notify(ctx, domain.Event{
		Kind: domain.EventReset, TaskID: primary.ID, TaskName: primary.Name,
		Details: fmt.Sprintf("%s (attempt %d of %d)", reason, primary.AttemptCount, budget),
	})
	return nil
}

// escalate blocks a worker group and sends the operator the full incident
// history, not just the final straw.
func (d *Dispatcher) escalate(ctx context.Context, ids []int64, primary *domain.Task, reason, errorLog string, result *PassResult) error {
	if err := d.store.MarkBlocked(ctx, ids, primary.ID, reason, errorLog); err != nil {
		return foremanerrors.Wrapf(err, "failed to block task %d", primary.ID)
	}
	result.BlockedTasks += len(ids)

	d.notify(ctx, domain.Event{
		Kind: domain.EventBlocker, TaskID: primary.ID, TaskName: primary.Name, Details: reason,
	})

	incidents, err := d.store.ListBlockedReasons(ctx, primary.ID)
	if err != nil {
		d.logger.Warn().Err(err).Int64("task_id", primary.ID).Msg("failed to load incident log")
		return nil
	}
	if len(incidents) > 1 {
		lines := make([]string, len(incidents))
		for i, incident := range incidents {
			lines[i] = fmt.Sprintf("%d. %s", i+1, incident.Reason)
		}
		d.notify(ctx, domain.Event{
			Kind: domain.EventBlockedSummary, TaskID: primary.ID, TaskName: primary.Name,
			Details: strings.Join(lines, "\n"),
		})
	}
	return nil
}

// escalateExhausted blocks queued tasks whose attempt budget is already
// spent, instead of burning a slot on a launch that would escalate anyway.
func (d *Dispatcher) escalateExhausted(ctx context.Context, result *PassResult) error {
	todos, err := d.store.ListTasks(ctx, store.Filter{
		Statuses: []constants.TaskStatus{constants.TaskStatusTodo},
	})
	if err != nil {
		return foremanerrors.Wrap(err, "failed to list queued tasks")
	}

	for _, t := range todos {
		if t.AttemptCount < d.cfg.Builder.MaxAttempts {
			continue
		}
		if err := d.escalate(ctx, []int64{t.ID}, t, constants.ReasonAttemptLimit, "", result); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) outputPath(runID string) string {
	return filepath.Join(d.outputDir, runID+".log")
}

func (d *Dispatcher) outputTail(group *workerGroup) string {
	if group.runID == "" {
		return ""
	}
	return worker.TailOutput(d.outputPath(group.runID))
}
