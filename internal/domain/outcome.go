package domain

// OutcomeKind classifies the terminal signal parsed from a worker's output.
type OutcomeKind string

// Outcome kinds.
const (
	// OutcomeComplete means the worker emitted TASK_COMPLETE for its task.
	OutcomeComplete OutcomeKind = "complete"

	// OutcomeBlocked means the worker emitted TASK_BLOCKED with a reason,
	// or terminated without any marker (synthetic block).
	OutcomeBlocked OutcomeKind = "blocked"
)

// WorkerOutcome is the typed result of parsing a worker's free-text output.
// The plain-text marker contract stays on the wire for compatibility with
// the execution agents; everything inside the orchestrator operates on this
// value.
type WorkerOutcome struct {
	// Kind is the terminal classification.
	Kind OutcomeKind `json:"kind"`

	// TaskID is the task the markers referenced.
	TaskID int64 `json:"task_id"`

	// Reason carries the block reason when Kind is OutcomeBlocked.
	Reason string `json:"reason,omitempty"`

	// Published is true when a GIT_PUSHED confirmation accompanied the
	// completion. A validator completion without it is a soft failure: the
	// phase returns to READY_FOR_TESTING instead of COMPLETE.
	Published bool `json:"published,omitempty"`

	// PublishRef and PublishID carry the confirmed ref and short id.
	PublishRef string `json:"publish_ref,omitempty"`
	PublishID  string `json:"publish_id,omitempty"`
}

// EventKind classifies lifecycle notifications sent to the operator sink.
type EventKind string

// Notification event kinds.
const (
	EventStarted        EventKind = "started"
	EventReady          EventKind = "ready"
	EventComplete       EventKind = "complete"
	EventBlocker        EventKind = "blocker"
	EventBlockedSummary EventKind = "blocked-summary"
	EventReset          EventKind = "reset"
)

// Event is a lifecycle notification. Delivery is best-effort: a failing sink
// never aborts the dispatch pass, and the audit trail is written before any
// notification goes out.
type Event struct {
	Kind     EventKind `json:"kind"`
	TaskID   int64     `json:"task_id"`
	TaskName string    `json:"task_name"`
	Details  string    `json:"details,omitempty"`
}
