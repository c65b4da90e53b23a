package protocol

// Canonical statuses produced by Normalize. Downstream logic keys off these
// instead of the raw event-name sprawl.
const (
	StatusReady     = "ready"
	StatusStarted   = "started"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusShutdown  = "shutdown"
)

// defaultMessage is used when an event carries no resolvable message text.
const defaultMessage = "Processing..."

// statusByKind maps event discriminators to canonical statuses. Kinds absent
// from this table fall through to the default running bucket since the
// subprocess's event vocabulary is not guaranteed closed.
var statusByKind = map[EventKind]string{
	EventReady:               StatusReady,
	EventRunStarted:          StatusStarted,
	EventStream:              StatusRunning,
	EventRunCompleted:        StatusCompleted,
	EventRunFailed:           StatusFailed,
	EventRunCancelled:        StatusFailed,
	EventRunTerminated:       StatusError,
	EventCancelIgnored:       StatusError,
	EventSignal:              StatusError,
	EventError:               StatusError,
	EventFatal:               StatusError,
	EventKind("timeout"):     StatusTimeout,
	EventKind("run_timeout"): StatusTimeout,
	EventState:               StatusRunning,
	EventShutdown:            StatusShutdown,
	EventAutoShutdown:        StatusShutdown,
}

// Normalized is the canonical status/message pair extracted from one raw
// event, decoupling downstream logic from the raw event vocabulary.
type Normalized struct {
	Status  string
	Message string
}

// Normalize maps a parsed event (or nil, when the line failed to parse) into
// a canonical status/message pair. The function is pure and total: every
// syntactically valid input produces an answer, including previously-unseen
// event names.
func Normalize(ev *Event) Normalized {
	if ev == nil {
		return Normalized{Status: StatusRunning, Message: defaultMessage}
	}

	status := ev.Status
	if status == "" {
		if mapped, ok := statusByKind[ev.Event]; ok {
			status = mapped
		} else {
			status = StatusRunning
		}
	}

	return Normalized{Status: status, Message: resolveMessage(ev)}
}

// resolveMessage picks the most specific message text available:
// explicit message, then reason, then payload.message, then the raw event
// name, then a generic placeholder.
func resolveMessage(ev *Event) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Reason != "" {
		return ev.Reason
	}
	if msg, ok := ev.Payload["message"].(string); ok && msg != "" {
		return msg
	}
	if ev.Event != "" {
		return string(ev.Event)
	}
	return defaultMessage
}
