// Package outcome decides, from the stream of normalized protocol events,
// whether a task is still running, terminally successful, terminally failed,
// or terminally successful despite a failure-looking signal (the limit-reached
// reclassification).
//
// Detection relies only on structured event fields (outcome, reason, tags and
// the limit_notice kind), never on free-text pattern matching, since that is
// brittle across wrapper versions.
package outcome

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/clock"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/protocol"
)

// Verdict is a terminal decision about a task.
type Verdict struct {
	// State is the final task state.
	State domain.TaskState

	// Success mirrors State.Success() for convenience.
	Success bool

	// Message explains the outcome.
	Message string

	// Limit carries limit-notice details when the verdict involved one.
	Limit *domain.LimitDetails
}

// Policy is the per-task outcome reducer. Events from one subprocess are
// applied strictly in arrival order by a single writer; the mutex exists only
// because finalization may read the accumulated state from a timer or
// cancellation goroutine. A Policy must never be shared across tasks.
type Policy struct {
	logger zerolog.Logger
	clk    clock.Clock

	mu           sync.Mutex
	lastStatus   string
	events       []string
	limitReached bool
	limitDetails *domain.LimitDetails
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the policy logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// WithClock sets the clock used for limit-detection timestamps.
func WithClock(clk clock.Clock) Option {
	return func(p *Policy) { p.clk = clk }
}

// NewPolicy creates a fresh per-task Policy.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		logger: zerolog.Nop(),
		clk:    clock.RealClock{},
		events: make([]string, 0, constants.EventLogSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Observe applies one normalized event and returns a Verdict when the task
// reached a terminal decision, or nil while it is still running.
//
// The rules are order-sensitive: the limit signal must be recorded before the
// failure check runs, since the two signals commonly arrive in the same or
// adjacent lines.
func (p *Policy) Observe(ev *protocol.Event, norm protocol.Normalized) *Verdict {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(ev, norm)

	// Rule 1: authoritative or normalized completion.
	if ev.Outcome == protocol.OutcomeCompleted || norm.Status == protocol.StatusCompleted {
		return p.verdict(domain.TaskStateCompleted, norm.Message)
	}

	// Rule 2: limit signal. Recorded, never terminal on its own.
	if p.isLimitSignal(ev) {
		p.limitReached = true
		p.limitDetails = &domain.LimitDetails{
			Notice:     norm.Message,
			Event:      string(ev.Event),
			DetectedAt: p.clk.Now(),
		}
		p.logger.Info().
			Str("event", string(ev.Event)).
			Str("notice", norm.Message).
			Msg("provider limit notice observed")
	}

	// Rule 3: failure-shaped signal, possibly reclassified.
	if p.isFailureShaped(ev, norm) {
		if p.limitReached {
			p.logger.Info().
				Str("status", norm.Status).
				Msg("reclassifying failure-shaped signal as limit-reached success")
			return p.verdict(domain.TaskStateLimitReached, p.limitDetails.Notice)
		}
		state := domain.TaskStateFailed
		if norm.Status == protocol.StatusTimeout || ev.Outcome == protocol.OutcomeTimeout {
			state = domain.TaskStateTimeout
		}
		return p.verdict(state, norm.Message)
	}

	// Rule 4: intentional wrapper exit after finishing its own work.
	if norm.Status == protocol.StatusShutdown && ev.Reason == protocol.ReasonExitOnComplete {
		return p.verdict(domain.TaskStateCompleted, norm.Message)
	}

	return nil
}

// LastStatus returns the most recent normalized status.
func (p *Policy) LastStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}

// LimitReached reports whether a limit signal has been recorded.
func (p *Policy) LimitReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limitReached
}

// LimitDetails returns the recorded limit details, or nil.
func (p *Policy) LimitDetails() *domain.LimitDetails {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limitDetails
}

// EventLog returns a copy of the bounded rolling event log for diagnostics.
func (p *Policy) EventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Policy) isLimitSignal(ev *protocol.Event) bool {
	return ev.Event == protocol.EventLimitNotice ||
		ev.Reason == protocol.ReasonLimitReached ||
		ev.HasTag(protocol.TagLimit)
}

func (p *Policy) isFailureShaped(ev *protocol.Event, norm protocol.Normalized) bool {
	switch norm.Status {
	case protocol.StatusFailed, protocol.StatusError, protocol.StatusTimeout:
		return true
	}
	switch ev.Outcome {
	case protocol.OutcomeFailed, protocol.OutcomeTimeout, protocol.OutcomeTerminated:
		return true
	}
	return false
}

func (p *Policy) record(ev *protocol.Event, norm protocol.Normalized) {
	p.lastStatus = norm.Status
	entry := fmt.Sprintf("%s status=%s message=%s", ev.Event, norm.Status, norm.Message)
	if len(p.events) >= constants.EventLogSize {
		p.events = p.events[1:]
	}
	p.events = append(p.events, entry)
}

func (p *Policy) verdict(state domain.TaskState, message string) *Verdict {
	v := &Verdict{
		State:   state,
		Success: state.Success(),
		Message: message,
	}
	if p.limitReached {
		v.Limit = p.limitDetails
	}
	return v
}
