// Package notify delivers lifecycle events to the operator. Delivery is
// best-effort: the audit trail is written to the store before any event goes
// out, and a failing sink never aborts a dispatch pass.
package notify

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quarryworks/foreman/internal/domain"
)

// Notifier receives lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event)
}

// Config controls which events are delivered.
type Config struct {
	// Quiet suppresses all notifications.
	Quiet bool

	// Events is the list of event kinds that are delivered. Empty means all.
	Events []string
}

// DefaultConfig returns the default notification filter: everything except
// per-task start events, which are noise at any real queue depth.
func DefaultConfig() Config {
	return Config{
		Events: []string{
			string(domain.EventReady),
			string(domain.EventComplete),
			string(domain.EventBlocker),
			string(domain.EventBlockedSummary),
			string(domain.EventReset),
		},
	}
}

// wants reports whether the configured filter passes the event.
func (c Config) wants(kind domain.EventKind) bool {
	if c.Quiet {
		return false
	}
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == string(kind) {
			return true
		}
	}
	return false
}

// LogNotifier writes events to the structured log. It is the always-on sink;
// operator-facing channels layer on top of it via Multi.
type LogNotifier struct {
	logger zerolog.Logger
	config Config
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger, cfg Config) *LogNotifier {
	return &LogNotifier{logger: logger, config: cfg}
}

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// Notify writes one event to the log.
func (n *LogNotifier) Notify(_ context.Context, event domain.Event) {
	if !n.config.wants(event.Kind) {
		return
	}

	entry := n.logger.Info()
	if event.Kind == domain.EventBlocker || event.Kind == domain.EventBlockedSummary {
		entry = n.logger.Warn()
	}
	entry.
		Str("event", string(event.Kind)).
		Int64("task_id", event.TaskID).
		Str("task", event.TaskName).
		Str("details", event.Details).
		Msg("task event")
}

// Multi fans out to several sinks. A sink that panics or fails silently does
// not affect the others.
type Multi struct {
	sinks []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

// Ensure Multi implements Notifier.
var _ Notifier = (*Multi)(nil)

// Notify delivers the event to every sink concurrently and waits for all of
// them, so one slow operator channel cannot stall the rest.
func (m *Multi) Notify(ctx context.Context, event domain.Event) {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		if sink == nil {
			continue
		}
		g.Go(func() error {
			defer func() { _ = recover() }()
			sink.Notify(ctx, event)
			return nil
		})
	}
	_ = g.Wait()
}
