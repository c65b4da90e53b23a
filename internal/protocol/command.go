// Package protocol defines the line-delimited wire contract spoken with the
// coding-agent wrapper subprocess: the Command union written to its stdin,
// the Event union read from its stdout, the wrapper/session/run state
// vocabularies, and the normalization of raw events into canonical
// status/message pairs.
//
// The package is pure data contract plus (de)serialization. It carries no
// supervision behavior and MUST NOT import other internal packages except
// internal/constants.
package protocol

import (
	"encoding/json"
	"strings"
)

// Action identifies a command sent to the wrapper subprocess.
type Action string

// Command actions understood by the wrapper subprocess.
const (
	// ActionPrompt submits the task prompt. Sent exactly once per subprocess
	// lifetime, only after a ready event has been observed.
	ActionPrompt Action = "prompt"

	// ActionCancel requests cancellation of the active run.
	ActionCancel Action = "cancel"

	// ActionStatus requests a status event.
	ActionStatus Action = "status"

	// ActionShutdown requests a graceful wrapper shutdown.
	ActionShutdown Action = "shutdown"
)

// PromptOptions are the agent knobs serialized alongside a prompt command.
type PromptOptions struct {
	Model            string  `json:"model,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	PermissionMode   string  `json:"permission_mode,omitempty"`
	WorkingDirectory string  `json:"working_directory,omitempty"`
	SessionName      string  `json:"session_name,omitempty"`
}

// Command is one inbound message to the wrapper subprocess.
type Command struct {
	Action  Action         `json:"action"`
	Prompt  string         `json:"prompt,omitempty"`
	Options *PromptOptions `json:"options,omitempty"`
}

// legacyCommand is the backward-compatible command shape: a bare
// {command, working_directory, options} object interpreted identically to a
// prompt command.
type legacyCommand struct {
	Command          string         `json:"command"`
	WorkingDirectory string         `json:"working_directory,omitempty"`
	Options          *PromptOptions `json:"options,omitempty"`
}

// NewPromptCommand builds the prompt command for a task.
func NewPromptCommand(prompt string, opts *PromptOptions) *Command {
	return &Command{Action: ActionPrompt, Prompt: prompt, Options: opts}
}

// NewCancelCommand builds a cancel command.
func NewCancelCommand() *Command {
	return &Command{Action: ActionCancel}
}

// NewShutdownCommand builds a shutdown command.
func NewShutdownCommand() *Command {
	return &Command{Action: ActionShutdown}
}

// MarshalLine serializes the command as a single protocol line, newline
// terminated, ready to be written to the subprocess stdin.
func (c *Command) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ParseCommand decodes one inbound protocol line into a Command. The legacy
// {command, working_directory, options} shape is accepted and mapped to a
// prompt command. Returns false when the line is not a recognizable command.
func ParseCommand(line []byte) (*Command, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}

	var cmd Command
	if err := json.Unmarshal([]byte(trimmed), &cmd); err == nil && cmd.Action != "" {
		return &cmd, true
	}

	var legacy legacyCommand
	if err := json.Unmarshal([]byte(trimmed), &legacy); err != nil || legacy.Command == "" {
		return nil, false
	}
	opts := legacy.Options
	if legacy.WorkingDirectory != "" {
		if opts == nil {
			opts = &PromptOptions{}
		}
		if opts.WorkingDirectory == "" {
			opts.WorkingDirectory = legacy.WorkingDirectory
		}
	}
	return &Command{Action: ActionPrompt, Prompt: legacy.Command, Options: opts}, true
}
