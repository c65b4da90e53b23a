package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStateTerminal(t *testing.T) {
	for _, s := range []RunState{RunCompleted, RunFailed, RunCancelled, RunTerminated} {
		assert.True(t, s.Terminal(), "state %s", s)
	}
	for _, s := range []RunState{RunPending, RunStarting, RunRunning, RunStreaming, RunCancelling} {
		assert.False(t, s.Terminal(), "state %s", s)
	}
}

func TestRunStateAdvance(t *testing.T) {
	t.Run("follows the happy path", func(t *testing.T) {
		s := RunPending
		s = s.Advance(EventRunStarted)
		assert.Equal(t, RunRunning, s)
		s = s.Advance(EventStream)
		assert.Equal(t, RunStreaming, s)
		s = s.Advance(EventRunCompleted)
		assert.Equal(t, RunCompleted, s)
	})

	t.Run("terminal states absorb every event", func(t *testing.T) {
		for _, terminal := range []RunState{RunCompleted, RunFailed, RunCancelled, RunTerminated} {
			for _, kind := range []EventKind{EventRunStarted, EventStream, EventRunFailed, EventRunCompleted} {
				assert.Equal(t, terminal, terminal.Advance(kind), "state %s kind %s", terminal, kind)
			}
		}
	})

	t.Run("cancellation flows through cancelling", func(t *testing.T) {
		s := RunRunning.Advance(EventCancelRequested)
		assert.Equal(t, RunCancelling, s)
		assert.Equal(t, RunCancelled, s.Advance(EventRunCancelled))
	})

	t.Run("unrelated events leave state unchanged", func(t *testing.T) {
		assert.Equal(t, RunStreaming, RunStreaming.Advance(EventStatus))
		assert.Equal(t, RunRunning, RunRunning.Advance(EventLimitNotice))
	})
}
