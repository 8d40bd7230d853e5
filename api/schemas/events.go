package schemas

import "time"

// -- Execution Event Schemas --

// EventType classifies a progress event emitted during execution.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventStepStart   EventType = "step_start"
	EventStepEnd     EventType = "step_end"
	// EventAttempt is emitted for every executor attempt, success or not.
	EventAttempt EventType = "attempt"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// AttemptInfo describes a single executor attempt.
type AttemptInfo struct {
	Number   int           `json:"number"`
	Strategy string        `json:"strategy"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Outcome summarizes the result of a finished step.
type Outcome struct {
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	// Extracted carries the result of an extract action.
	Extracted string `json:"extracted,omitempty"`
}

// Event is one entry of the progress stream consumed by observers and
// progress UIs. Observers are read-only taps; they cannot affect control
// flow.
type Event struct {
	Type      EventType     `json:"type"`
	RunID     string        `json:"run_id"`
	StepPath  string        `json:"step_path,omitempty"`
	StepID    string        `json:"step_id,omitempty"`
	State     WorkflowState `json:"state,omitempty"`
	Action    *Action       `json:"action,omitempty"`
	Outcome   *Outcome      `json:"outcome,omitempty"`
	Attempt   *AttemptInfo  `json:"attempt,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// -- Execution Record Schemas --

// RecordEntry is one successful action in the replayable trace.
type RecordEntry struct {
	StepPath   string    `json:"step_path"`
	Action     Action    `json:"action"`
	Outcome    Outcome   `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ExecutionRecord is the append-only log of the path that worked. Failed
// and retried attempts are deliberately excluded; a replay represents only
// successful actions.
type ExecutionRecord struct {
	RunID        string        `json:"run_id"`
	WorkflowName string        `json:"workflow_name"`
	StartedAt    time.Time     `json:"started_at"`
	Entries      []RecordEntry `json:"entries"`
}
