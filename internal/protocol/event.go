package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind discriminates the outbound event union.
type EventKind string

// Event kinds emitted by the wrapper subprocess. The vocabulary is not
// guaranteed closed; unknown kinds are still parsed and normalized through
// the default bucket.
const (
	EventReady           EventKind = "ready"
	EventShutdown        EventKind = "shutdown"
	EventRunStarted      EventKind = "run_started"
	EventRunCompleted    EventKind = "run_completed"
	EventRunCancelled    EventKind = "run_cancelled"
	EventRunTerminated   EventKind = "run_terminated"
	EventRunFailed       EventKind = "run_failed"
	EventStream          EventKind = "stream"
	EventStatus          EventKind = "status"
	EventError           EventKind = "error"
	EventFatal           EventKind = "fatal"
	EventSignal          EventKind = "signal"
	EventState           EventKind = "state"
	EventCancelRequested EventKind = "cancel_requested"
	EventCancelIgnored   EventKind = "cancel_ignored"
	EventLimitNotice     EventKind = "limit_notice"
	EventAutoShutdown    EventKind = "auto_shutdown"
)

// Authoritative outcome values carried on terminal-run events. These supersede any
// status-name heuristic when present.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeTimeout    = "timeout"
	OutcomeTerminated = "terminated"
)

// Well-known reason and tag values.
const (
	ReasonLimitReached   = "limit_reached"
	ReasonExitOnComplete = "exit_on_complete"
	TagLimit             = "limit"
)

// EventTime decodes the wire timestamp leniently. Wrappers normally emit
// RFC 3339 strings, but epoch seconds and milliseconds appear in the wild.
// A timestamp the decoder cannot make sense of leaves the time zero; it
// never invalidates an otherwise well-formed event.
type EventTime struct {
	time.Time
}

// millisEpochFloor is the smallest value read as epoch milliseconds rather
// than epoch seconds. As seconds it would be past the year 33000.
const millisEpochFloor = 1e12

// UnmarshalJSON accepts RFC 3339 strings and numeric epochs. It never
// returns an error.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			t.Time = parsed
		}
		return nil
	}

	var epoch float64
	if err := json.Unmarshal(data, &epoch); err != nil {
		return nil
	}
	if epoch >= millisEpochFloor {
		t.Time = time.UnixMilli(int64(epoch))
	} else {
		t.Time = time.Unix(int64(epoch), 0)
	}

	return nil
}

// Event is one outbound message from the wrapper subprocess. All fields other
// than Event are optional on the wire; terminal-run events additionally carry
// the authoritative Outcome, Reason and Tags fields.
type Event struct {
	Event     EventKind       `json:"event"`
	Timestamp EventTime       `json:"timestamp,omitzero"`
	State     WrapperState    `json:"state,omitempty"`
	Status    string          `json:"status,omitempty"`
	Message   string          `json:"message,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Outcome   string          `json:"outcome,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   map[string]any  `json:"payload,omitempty"`
	Data      map[string]any  `json:"data,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// TerminalRun reports whether the event kind ends a run.
func (e *Event) TerminalRun() bool {
	switch e.Event {
	case EventRunCompleted, EventRunCancelled, EventRunTerminated, EventRunFailed:
		return true
	default:
		return false
	}
}

// HasTag reports whether the event's tags include the given tag,
// case-insensitively.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ParseLine decodes one outbound line from the subprocess. A line that is not
// a JSON object is not an error at this layer: ok is false and the caller
// treats the line as incidental log output.
func ParseLine(line []byte) (*Event, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return nil, false
	}
	ev.Raw = json.RawMessage(trimmed)
	return &ev, true
}
