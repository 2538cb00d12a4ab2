package dispatch

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/store"
)

// phaseGroup is the set of live tasks sharing a (project, phase) pair.
// Tasks carrying no grouping labels each form a group of one.
type phaseGroup struct {
	key   domain.PhaseKey
	ready []*domain.Task
	// unfinished counts members still building (TODO, IN_PROGRESS, BLOCKED).
	unfinished int
	// maxPriority is the highest priority across ready members.
	maxPriority int
}

// eligible reports whether the group may enter validation: every member is
// done building and at least one is waiting.
func (g *phaseGroup) eligible() bool {
	return g.unfinished == 0 && len(g.ready) > 0
}

// primary returns the member carrying the validation bookkeeping: the lowest
// ready id.
func (g *phaseGroup) primary() *domain.Task {
	return g.ready[0]
}

func (g *phaseGroup) readyIDs() []int64 {
	ids := make([]int64, len(g.ready))
	for i, t := range g.ready {
		ids[i] = t.ID
	}
	return ids
}

// dispatchValidators gates fully built phases into validation, one worker
// per phase, atomically for all sibling tasks.
func (d *Dispatcher) dispatchValidators(ctx context.Context, result *PassResult) error {
	free, err := d.freeSlots(ctx, constants.RoleValidator, d.cfg.Validator.Slots)
	if err != nil {
		return err
	}
	if free == 0 {
		return nil
	}

	tasks, err := d.store.ListTasks(ctx, store.Filter{
		Statuses: []constants.TaskStatus{
			constants.TaskStatusTodo,
			constants.TaskStatusInProgress,
			constants.TaskStatusReadyForTesting,
			constants.TaskStatusBlocked,
		},
	})
	if err != nil {
		return foremanerrors.Wrap(err, "failed to list tasks for phase gating")
	}

	for _, group := range buildPhaseGroups(tasks) {
		if free == 0 {
			return nil
		}
		if !group.eligible() {
			continue
		}

		primary := group.primary()
		if primary.AttemptCount >= d.cfg.Validator.MaxAttempts {
			if err := d.escalate(ctx, group.readyIDs(), primary, constants.ReasonAttemptLimit, "", result); err != nil {
				return err
			}
			continue
		}

		if err := d.launch(ctx, group.ready, primary, constants.RoleValidator, d.cfg.Validator); err != nil {
			if stderrors.Is(err, foremanerrors.ErrSpawnFailed) {
				d.logger.Error().Err(err).Int64("task_id", primary.ID).Msg("validator spawn failed, phase stays queued")
				return nil
			}
			return err
		}
		result.LaunchedValidators++
		free--
	}
	return nil
}

// groupKey distinguishes labeled phases from ungrouped solo tasks.
type groupKey struct {
	phase domain.PhaseKey
	solo  int64
}

// buildPhaseGroups buckets tasks into gating groups and orders them by
// descending ready priority, then ascending primary id, so validation order
// is deterministic.
func buildPhaseGroups(tasks []*domain.Task) []*phaseGroup {
	byKey := make(map[groupKey]*phaseGroup)
	for _, t := range tasks {
		key := groupKey{phase: t.PhaseKey()}
		if t.Project == "" && t.Phase == "" {
			key.solo = t.ID
		}

		g, ok := byKey[key]
		if !ok {
			g = &phaseGroup{key: t.PhaseKey()}
			byKey[key] = g
		}
		switch {
		case t.Status == constants.TaskStatusReadyForTesting:
			g.ready = append(g.ready, t)
			if t.Priority > g.maxPriority {
				g.maxPriority = t.Priority
			}
		case t.Status.IsUnfinishedBuild():
			g.unfinished++
		}
	}

	groups := make([]*phaseGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.ready, func(i, j int) bool { return g.ready[i].ID < g.ready[j].ID })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.maxPriority != b.maxPriority {
			return a.maxPriority > b.maxPriority
		}
		return groupMinID(a) < groupMinID(b)
	})
	return groups
}

func groupMinID(g *phaseGroup) int64 {
	if len(g.ready) > 0 {
		return g.ready[0].ID
	}
	return 1<<63 - 1
}
