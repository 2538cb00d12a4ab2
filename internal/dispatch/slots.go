package dispatch

import (
	"context"
	stderrors "errors"

	"github.com/quarryworks/foreman/internal/config"
	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/store"
	"github.com/quarryworks/foreman/internal/worker"
)

// freeSlots computes the remaining launch capacity for a role: the configured
// cap minus verified-live workers. Distinct PIDs, not tasks, occupy slots; a
// validator run holds one slot no matter how many tasks ride along.
func (d *Dispatcher) freeSlots(ctx context.Context, role constants.Role, limit int) (int, error) {
	inProgress, err := d.store.ListTasks(ctx, store.Filter{
		Statuses: []constants.TaskStatus{constants.TaskStatusInProgress},
		Role:     role,
	})
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to list in-progress tasks")
	}

	livePIDs := make(map[int]bool)
	for _, t := range inProgress {
		if t.WorkerPID > 0 && d.prober.Alive(t.WorkerPID) {
			livePIDs[t.WorkerPID] = true
		}
	}

	free := limit - len(livePIDs)
	if free < 0 {
		free = 0
	}
	return free, nil
}

// dispatchBuilders fills free builder slots from the queue in priority
// order. A spawn failure is an infrastructure problem, not the task's fault:
// the task stays queued, no attempt is consumed, and the pass moves on.
func (d *Dispatcher) dispatchBuilders(ctx context.Context, result *PassResult) error {
	free, err := d.freeSlots(ctx, constants.RoleBuilder, d.cfg.Builder.Slots)
	if err != nil {
		return err
	}
	if free == 0 {
		return nil
	}

	todos, err := d.store.ListTasks(ctx, store.Filter{
		Statuses:        []constants.TaskStatus{constants.TaskStatusTodo},
		OrderByPriority: true,
		Limit:           free,
	})
	if err != nil {
		return foremanerrors.Wrap(err, "failed to claim queued tasks")
	}

	for _, t := range todos {
		if err := d.launch(ctx, []*domain.Task{t}, t, constants.RoleBuilder, d.cfg.Builder); err != nil {
			if stderrors.Is(err, foremanerrors.ErrSpawnFailed) {
				d.logger.Error().Err(err).Int64("task_id", t.ID).Msg("builder spawn failed, leaving task queued")
				return nil
			}
			return err
		}
		result.LaunchedBuilders++
	}
	return nil
}

// launch spawns one worker and records its handle on the given tasks in a
// single store transaction. If the record fails the orphan is terminated so
// no untracked worker survives. Validator launches carry every member of the
// phase in the payload; builders carry just their own task.
func (d *Dispatcher) launch(ctx context.Context, members []*domain.Task, primary *domain.Task, role constants.Role, roleCfg config.RoleConfig) error {
	spec := worker.LaunchSpec{
		Task:      primary,
		Role:      role,
		Command:   roleCfg.Command,
		Timeout:   roleCfg.Timeout,
		OutputDir: d.outputDir,
	}
	if role == constants.RoleValidator {
		spec.Phase = members
	}
	spawned, err := d.launcher.Launch(ctx, spec)
	if err != nil {
		return err
	}

	ids := make([]int64, len(members))
	for i, t := range members {
		ids[i] = t.ID
	}

	if err := d.store.MarkInProgress(ctx, ids, primary.ID, role, spawned.PID, spawned.RunID); err != nil {
		d.logger.Error().Err(err).Int("pid", spawned.PID).Msg("failed to record worker, terminating it")
		if termErr := d.terminator.Terminate(spawned.PID, d.cfg.Dispatch.GracePeriod); termErr != nil {
			d.logger.Error().Err(termErr).Int("pid", spawned.PID).Msg("failed to terminate orphan worker")
		}
		return foremanerrors.Wrapf(err, "failed to record %s launch for task %d", role, primary.ID)
	}

	d.notify(ctx, domain.Event{
		Kind: domain.EventStarted, TaskID: primary.ID, TaskName: primary.Name,
		Details: string(role),
	})
	return nil
}
