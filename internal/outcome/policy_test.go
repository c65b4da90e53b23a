package outcome

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/clock"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/protocol"
)

// observe parses and applies a protocol line, returning the verdict.
func observe(t *testing.T, p *Policy, line string) *Verdict {
	t.Helper()
	ev, ok := protocol.ParseLine([]byte(line))
	require.True(t, ok, "line %q must parse", line)
	return p.Observe(ev, protocol.Normalize(ev))
}

func TestPolicyCompletion(t *testing.T) {
	t.Run("run_completed finalizes successful", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"ready"}`))
		assert.Nil(t, observe(t, p, `{"event":"run_started"}`))
		assert.Nil(t, observe(t, p, `{"event":"stream"}`))

		v := observe(t, p, `{"event":"run_completed","outcome":"completed"}`)
		require.NotNil(t, v)
		assert.True(t, v.Success)
		assert.Equal(t, domain.TaskStateCompleted, v.State)
	})

	t.Run("authoritative outcome wins over odd event name", func(t *testing.T) {
		p := NewPolicy()
		v := observe(t, p, `{"event":"wrapped_up","outcome":"completed"}`)
		require.NotNil(t, v)
		assert.Equal(t, domain.TaskStateCompleted, v.State)
	})

	t.Run("shutdown with exit_on_complete finalizes successful", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"run_started"}`))
		v := observe(t, p, `{"event":"shutdown","reason":"exit_on_complete"}`)
		require.NotNil(t, v)
		assert.True(t, v.Success)
		assert.Equal(t, domain.TaskStateCompleted, v.State)
	})

	t.Run("plain shutdown is not terminal", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"shutdown"}`))
	})
}

func TestPolicyLimitReclassification(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("limit_notice before failure reclassifies as success", func(t *testing.T) {
		p := NewPolicy(WithClock(clock.Fixed(now)))
		assert.Nil(t, observe(t, p, `{"event":"ready"}`))
		assert.Nil(t, observe(t, p, `{"event":"run_started"}`))
		assert.Nil(t, observe(t, p, `{"event":"limit_notice","message":"Usage limit reached"}`))

		v := observe(t, p, `{"event":"run_failed","outcome":"failed"}`)
		require.NotNil(t, v)
		assert.True(t, v.Success)
		assert.Equal(t, domain.TaskStateLimitReached, v.State)
		require.NotNil(t, v.Limit)
		assert.Equal(t, "Usage limit reached", v.Limit.Notice)
		assert.Equal(t, "limit_notice", v.Limit.Event)
		assert.Equal(t, now, v.Limit.DetectedAt)
	})

	t.Run("reason limit_reached also arms reclassification", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"status","reason":"limit_reached"}`))
		v := observe(t, p, `{"event":"run_failed","outcome":"failed"}`)
		require.NotNil(t, v)
		assert.Equal(t, domain.TaskStateLimitReached, v.State)
	})

	t.Run("limit tag also arms reclassification", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"status","tags":["limit"]}`))
		v := observe(t, p, `{"event":"run_terminated","outcome":"terminated"}`)
		require.NotNil(t, v)
		assert.Equal(t, domain.TaskStateLimitReached, v.State)
	})

	t.Run("limit signal on the terminal event itself reclassifies", func(t *testing.T) {
		p := NewPolicy()
		v := observe(t, p, `{"event":"run_failed","outcome":"failed","reason":"limit_reached"}`)
		require.NotNil(t, v)
		assert.True(t, v.Success)
		assert.Equal(t, domain.TaskStateLimitReached, v.State)
	})

	t.Run("failure before any limit signal stays a failure", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"run_started"}`))
		v := observe(t, p, `{"event":"run_failed","outcome":"failed","reason":"exception"}`)
		require.NotNil(t, v)
		assert.False(t, v.Success)
		assert.Equal(t, domain.TaskStateFailed, v.State)
		assert.Equal(t, "exception", v.Message)
	})

	t.Run("limit_notice alone does not finalize", func(t *testing.T) {
		p := NewPolicy()
		assert.Nil(t, observe(t, p, `{"event":"limit_notice","message":"Usage limit reached"}`))
		assert.True(t, p.LimitReached())
	})
}

func TestPolicyFailureShapes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want domain.TaskState
	}{
		{"run_failed", `{"event":"run_failed","outcome":"failed"}`, domain.TaskStateFailed},
		{"run_cancelled normalizes to failed", `{"event":"run_cancelled"}`, domain.TaskStateFailed},
		{"fatal", `{"event":"fatal","message":"wrapper crashed"}`, domain.TaskStateFailed},
		{"timeout status", `{"event":"run_timeout"}`, domain.TaskStateTimeout},
		{"timeout outcome", `{"event":"run_failed","outcome":"timeout"}`, domain.TaskStateTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy()
			v := observe(t, p, tt.line)
			require.NotNil(t, v)
			assert.False(t, v.Success)
			assert.Equal(t, tt.want, v.State)
		})
	}
}

func TestPolicyEventLog(t *testing.T) {
	t.Run("keeps a bounded rolling window", func(t *testing.T) {
		p := NewPolicy()
		for i := 0; i < 30; i++ {
			observe(t, p, fmt.Sprintf(`{"event":"stream","message":"chunk %d"}`, i))
		}

		log := p.EventLog()
		require.Len(t, log, 20)
		assert.Contains(t, log[0], "chunk 10")
		assert.Contains(t, log[19], "chunk 29")
	})

	t.Run("tracks last status", func(t *testing.T) {
		p := NewPolicy()
		observe(t, p, `{"event":"run_started"}`)
		assert.Equal(t, protocol.StatusStarted, p.LastStatus())
		observe(t, p, `{"event":"stream"}`)
		assert.Equal(t, protocol.StatusRunning, p.LastStatus())
	})
}
