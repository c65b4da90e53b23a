// Package domain defines the core business types shared across the task
// manager: task requests coming off the queue and the execution results
// produced by the supervisor.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import any other internal packages.
package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// TaskOptions carries the per-task knobs forwarded to the coding-agent
// subprocess in the prompt command.
type TaskOptions struct {
	// Model selects the agent model (e.g. "sonnet", "opus"). Empty uses the
	// agent's own default.
	Model string `json:"model,omitempty"`

	// MaxTokens caps the response size. Zero means no explicit cap.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature is the sampling temperature. Zero means agent default.
	Temperature float64 `json:"temperature,omitempty"`

	// PermissionMode controls the agent's tool-permission behavior
	// (e.g. "bypassPermissions", "acceptEdits").
	PermissionMode string `json:"permission_mode,omitempty"`

	// TimeoutMs is the per-task wall-clock limit in milliseconds. When set it
	// wins over both the queue-level and protocol-level defaults.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

// TaskRequest is one unit of work delivered by the job queue. It is immutable
// once submitted; the worker owns it for the task's lifetime.
type TaskRequest struct {
	// TaskID uniquely identifies the task across the queue.
	TaskID string `json:"task_id"`

	// Prompt is the non-empty instruction handed to the coding agent.
	Prompt string `json:"prompt"`

	// SessionName labels the agent session for diagnostics.
	SessionName string `json:"session_name,omitempty"`

	// WorkingDirectory is the absolute path the subprocess operates in.
	WorkingDirectory string `json:"working_directory"`

	// Options are the agent knobs serialized into the prompt command.
	Options TaskOptions `json:"options,omitempty"`

	// TimeoutMs is the queue-level wall-clock limit in milliseconds.
	// Options.TimeoutMs, being more specific, takes precedence when set.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

// Timeout resolves the effective wall-clock limit for the task.
// Priority: per-task option > queue-level request value > protocol default.
func (t *TaskRequest) Timeout() time.Duration {
	if t.Options.TimeoutMs > 0 {
		return time.Duration(t.Options.TimeoutMs) * time.Millisecond
	}
	if t.TimeoutMs > 0 {
		return time.Duration(t.TimeoutMs) * time.Millisecond
	}
	return constants.DefaultProcessTimeout
}

// Validate checks the request before execution. The queue owns retry policy,
// so an invalid request is rejected here rather than spawning a subprocess
// that can never succeed.
func (t *TaskRequest) Validate() error {
	if strings.TrimSpace(t.TaskID) == "" {
		return cctmerrors.Wrap(cctmerrors.ErrInvalidTask, "task_id is required")
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return cctmerrors.Wrap(cctmerrors.ErrInvalidTask, "prompt is required")
	}
	if t.WorkingDirectory != "" && !filepath.IsAbs(t.WorkingDirectory) {
		return cctmerrors.Wrapf(cctmerrors.ErrInvalidTask,
			"working_directory must be absolute: %s", t.WorkingDirectory)
	}
	return nil
}
