package saga

import "time"

// Status is the terminal state of a saga run.
type Status string

const (
	// StatusSucceeded means every step on the taken path completed.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusRejected means validation turned the order away before any side
	// effect was committed; nothing needed compensation.
	StatusRejected Status = "VALIDATION_REJECTED"
	// StatusFailed means a step failed and compensations were applied.
	StatusFailed Status = "FAILED"
	// StatusUnrecoverable means a compensation itself failed; the stores may
	// be inconsistent and external intervention is required.
	StatusUnrecoverable Status = "FAILED_UNRECOVERABLE"
)

// Outcome is the result of one saga run.
type Outcome struct {
	Status  Status
	Reason  string
	Step    string // step at which the run ended or failed
	Context Context

	Err              error
	CompensationsRun []string
	CompensationErr  error
}

// EventType identifies a run lifecycle notification.
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventStepStarted         EventType = "step_started"
	EventStepSucceeded       EventType = "step_succeeded"
	EventStepFailed          EventType = "step_failed"
	EventCompensationApplied EventType = "compensation_applied"
	EventRunFinished         EventType = "run_finished"
)

// Event is a single run lifecycle notification delivered to the sink.
type Event struct {
	Type    EventType
	RunID   string
	Step    string
	Result  any
	Err     error
	Outcome *Outcome
	At      time.Time
	Elapsed time.Duration
}

// EventSink receives run lifecycle events. Sinks must not block; slow
// consumers should buffer on their side.
type EventSink func(Event)
