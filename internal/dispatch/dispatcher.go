// Package dispatch implements the orchestration loop: reconcile worker
// liveness, apply parsed outcomes, fill builder slots from the queue, gate
// phases into validation, and run end-of-pass housekeeping. Each pass is
// idempotent; running it twice against an unchanged world changes nothing.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryworks/foreman/internal/clock"
	"github.com/quarryworks/foreman/internal/config"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
	"github.com/quarryworks/foreman/internal/heartbeat"
	"github.com/quarryworks/foreman/internal/notify"
	"github.com/quarryworks/foreman/internal/store"
	"github.com/quarryworks/foreman/internal/worker"
)

// Dispatcher runs the orchestration loop against a single task store.
type Dispatcher struct {
	cfg        *config.Config
	store      store.Store
	launcher   worker.Launcher
	prober     worker.Prober
	terminator worker.Terminator
	notifier   notify.Notifier
	heartbeat  heartbeat.Publisher
	clock      clock.Clock
	logger     zerolog.Logger
	outputDir  string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLauncher overrides the worker launcher.
func WithLauncher(l worker.Launcher) Option {
	return func(d *Dispatcher) { d.launcher = l }
}

// WithProber overrides the liveness prober.
func WithProber(p worker.Prober) Option {
	return func(d *Dispatcher) { d.prober = p }
}

// WithTerminator overrides the process terminator.
func WithTerminator(t worker.Terminator) Option {
	return func(d *Dispatcher) { d.terminator = t }
}

// WithNotifier overrides the event sink.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithHeartbeat sets the optional status-summary publisher.
func WithHeartbeat(h heartbeat.Publisher) Option {
	return func(d *Dispatcher) { d.heartbeat = h }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithOutputDir sets the directory worker output files are written to.
func WithOutputDir(dir string) Option {
	return func(d *Dispatcher) { d.outputDir = dir }
}

// New creates a Dispatcher with production defaults. Pass options to replace
// collaborators, which tests do.
func New(cfg *config.Config, st store.Store, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		return nil, foremanerrors.ErrConfigNil
	}
	if st == nil {
		return nil, foremanerrors.Wrap(foremanerrors.ErrStoreUnavailable, "nil store")
	}

	d := &Dispatcher{
		cfg:    cfg,
		store:  st,
		clock:  clock.RealClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.launcher == nil {
		d.launcher = worker.NewExecLauncher(d.logger)
	}
	pm := worker.NewProcessManager(d.logger)
	if d.prober == nil {
		d.prober = pm
	}
	if d.terminator == nil {
		d.terminator = pm
	}
	if d.notifier == nil {
		d.notifier = notify.NewLogNotifier(d.logger, notify.Config{
			Quiet:  cfg.Notifications.Quiet,
			Events: cfg.Notifications.Events,
		})
	}
	return d, nil
}

// PassResult summarizes the effects of one dispatch pass.
type PassResult struct {
	Normalized         int64
	ResetTasks         int
	BlockedTasks       int
	ReadyTasks         int
	CompletedTasks     int
	LaunchedBuilders   int
	LaunchedValidators int
	ExpiredQuestions   int64
	SweptTasks         int64
	Summary            domain.StatusSummary
}

// RunOnce executes a single dispatch pass:
//
//  1. Normalize any externally written status values.
//  2. Reconcile recorded worker handles against live processes and apply
//     the outcomes of finished or stale workers.
//  3. Escalate queued tasks that already exhausted their attempt budget.
//  4. Fill free builder slots from the queue.
//  5. Gate fully built phases into validation.
//  6. Expire stale questions, sweep old completed tasks, refresh and publish
//     the status summary.
func (d *Dispatcher) RunOnce(ctx context.Context) (*PassResult, error) {
	result := &PassResult{}

	normalized, err := d.store.NormalizeStatuses(ctx)
	if err != nil {
		return nil, foremanerrors.Wrap(err, "failed to normalize statuses")
	}
	result.Normalized = normalized

	if err := d.reconcile(ctx, result); err != nil {
		return nil, err
	}
	if err := d.escalateExhausted(ctx, result); err != nil {
		return nil, err
	}
	if err := d.dispatchBuilders(ctx, result); err != nil {
		return nil, err
	}
	if err := d.dispatchValidators(ctx, result); err != nil {
		return nil, err
	}
	if err := d.housekeeping(ctx, result); err != nil {
		return nil, err
	}

	d.logger.Info().
		Int64("normalized", result.Normalized).
		Int("reset", result.ResetTasks).
		Int("blocked", result.BlockedTasks).
		Int("ready", result.ReadyTasks).
		Int("completed", result.CompletedTasks).
		Int("builders_launched", result.LaunchedBuilders).
		Int("validators_launched", result.LaunchedValidators).
		Int64("questions_expired", result.ExpiredQuestions).
		Int64("tasks_swept", result.SweptTasks).
		Msg("dispatch pass complete")
	return result, nil
}

// Run executes dispatch passes on the configured interval until the context
// is canceled. A failing pass is logged and the loop keeps going; transient
// store trouble must not take the orchestrator down.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.cfg.Dispatch.WatchInterval
	if interval <= 0 {
		return foremanerrors.ErrWatchIntervalTooShort
	}

	d.logger.Info().Dur("interval", interval).Msg("watch mode started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := d.RunOnce(ctx); err != nil {
		d.logger.Error().Err(err).Msg("dispatch pass failed")
	}
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("watch mode stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error().Err(err).Msg("dispatch pass failed")
			}
		}
	}
}

// housekeeping expires questions, sweeps old completed tasks, and refreshes
// the status summary. Heartbeat publishing is best-effort.
func (d *Dispatcher) housekeeping(ctx context.Context, result *PassResult) error {
	now := d.clock.Now().UTC()

	expired, err := d.store.ExpireQuestions(ctx, now.Add(-d.cfg.Dispatch.QuestionExpiry))
	if err != nil {
		return foremanerrors.Wrap(err, "failed to expire questions")
	}
	result.ExpiredQuestions = expired

	swept, err := d.store.SweepCompleted(ctx, now.Add(-d.cfg.Store.Retention))
	if err != nil {
		return foremanerrors.Wrap(err, "failed to sweep completed tasks")
	}
	result.SweptTasks = swept

	summary, err := d.store.CountByStatus(ctx)
	if err != nil {
		return foremanerrors.Wrap(err, "failed to count tasks")
	}
	result.Summary = summary
	if err := d.store.SaveSummary(ctx, summary); err != nil {
		return foremanerrors.Wrap(err, "failed to save summary")
	}

	if d.heartbeat != nil {
		if err := d.heartbeat.Publish(ctx, summary); err != nil {
			d.logger.Warn().Err(err).Msg("heartbeat publish failed")
		}
	}
	return nil
}

// notify delivers one event. Events are best-effort and never fail a pass.
func (d *Dispatcher) notify(ctx context.Context, event domain.Event) {
	d.notifier.Notify(ctx, event)
}
