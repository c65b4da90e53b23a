package domain

import "time"

// TaskState is the final state recorded on an ExecutionResult.
type TaskState string

// Final task states. LimitReached is deliberately a success state: provider
// usage limits are an expected operating condition, not a defect, and
// surfacing them as failures would trigger inappropriate caller-side retries.
const (
	// TaskStateCompleted means the run finished successfully.
	TaskStateCompleted TaskState = "completed"

	// TaskStateLimitReached means a failure-shaped terminal signal was
	// reclassified as success because a provider limit notice preceded it.
	TaskStateLimitReached TaskState = "limit_reached"

	// TaskStateFailed means the subprocess reported a failure and no limit
	// notice preceded it.
	TaskStateFailed TaskState = "failed"

	// TaskStateTimeout means the wall-clock limit elapsed first.
	TaskStateTimeout TaskState = "timeout"

	// TaskStateCancelled means the task was cancelled before completion.
	TaskStateCancelled TaskState = "cancelled"

	// TaskStateTerminated means the subprocess died before reporting any
	// terminal event (spawn failures and unclean exits land here).
	TaskStateTerminated TaskState = "terminated"
)

// Success reports whether the state counts as a successful outcome.
func (s TaskState) Success() bool {
	return s == TaskStateCompleted || s == TaskStateLimitReached
}

// LimitDetails records how a provider usage-limit notice was detected.
type LimitDetails struct {
	// Notice is the human-readable limit message extracted from the event.
	Notice string `json:"notice"`

	// Event is the protocol event kind that carried the signal.
	Event string `json:"event"`

	// DetectedAt is when the notice was observed.
	DetectedAt time.Time `json:"detected_at"`
}

// ExecutionResult is produced exactly once per task, at the moment the
// supervisor finalizes, and is immutable thereafter.
type ExecutionResult struct {
	// TaskID echoes the request's task ID.
	TaskID string `json:"task_id"`

	// State is the final task state.
	State TaskState `json:"state"`

	// Success is true iff State is completed or limit_reached.
	Success bool `json:"success"`

	// StartTime is when the supervisor accepted the task.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the result was finalized.
	EndTime time.Time `json:"end_time"`

	// Message explains the outcome in human terms.
	Message string `json:"message,omitempty"`

	// LimitReached is true when a provider usage-limit notice was observed,
	// regardless of whether it drove the final state.
	LimitReached bool `json:"limit_reached"`

	// LimitDetails is populated when LimitReached is true.
	LimitDetails *LimitDetails `json:"limit_details,omitempty"`

	// ExitCode is the subprocess exit code for unclean exits, nil otherwise.
	ExitCode *int `json:"exit_code,omitempty"`

	// EventLog is the bounded rolling log of normalized events, attached to
	// failures for diagnostics.
	EventLog []string `json:"event_log,omitempty"`
}
