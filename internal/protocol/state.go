package protocol

// WrapperState describes the subprocess as a whole, independent of any
// single run.
type WrapperState string

// Wrapper states.
const (
	WrapperIdle        WrapperState = "idle"
	WrapperExecuting   WrapperState = "executing"
	WrapperTerminating WrapperState = "terminating"
)

// SessionState describes the agent's internal conversation, which may
// outlive a single run.
type SessionState string

// Session states.
const (
	SessionNone         SessionState = "none"
	SessionInitializing SessionState = "initializing"
	SessionActive       SessionState = "active"
	SessionCompleting   SessionState = "completing"
	SessionTerminated   SessionState = "terminated"
)

// RunState describes one execution attempt within a session.
type RunState string

// Run states. The completed, failed, cancelled and terminated states are
// absorbing: once entered, no event moves the run elsewhere.
const (
	RunPending    RunState = "pending"
	RunStarting   RunState = "starting"
	RunRunning    RunState = "running"
	RunStreaming  RunState = "streaming"
	RunCancelling RunState = "cancelling"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
	RunCancelled  RunState = "cancelled"
	RunTerminated RunState = "terminated"
)

// Terminal reports whether the run state is absorbing.
func (s RunState) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunTerminated:
		return true
	default:
		return false
	}
}

// Advance returns the run state after observing the given event kind.
// Terminal states absorb every event. Events that carry no run-state
// information leave the state unchanged.
func (s RunState) Advance(kind EventKind) RunState {
	if s.Terminal() {
		return s
	}
	switch kind {
	case EventRunStarted:
		return RunRunning
	case EventStream:
		return RunStreaming
	case EventCancelRequested:
		return RunCancelling
	case EventRunCompleted:
		return RunCompleted
	case EventRunFailed:
		return RunFailed
	case EventRunCancelled:
		return RunCancelled
	case EventRunTerminated, EventFatal:
		return RunTerminated
	default:
		return s
	}
}
