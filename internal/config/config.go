// Package config provides configuration management for the task manager with
// layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence
// first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (CCTM_* prefix)
//  3. Project config (.cc-task-manager/config.yaml)
//  4. Global config (~/.cc-task-manager/config.yaml)
//  5. Built-in defaults
//
// Each higher level overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Queue backend names accepted by worker.queue.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config is the root configuration structure for the task manager.
type Config struct {
	// Worker contains settings for the queue-draining worker loop.
	Worker WorkerConfig `yaml:"worker" mapstructure:"worker"`

	// Process contains settings for the supervised agent subprocess.
	Process ProcessConfig `yaml:"process" mapstructure:"process"`

	// SessionLogs contains settings for session transcript discovery.
	SessionLogs SessionLogsConfig `yaml:"session_logs" mapstructure:"session_logs"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// WorkerConfig contains settings for the worker loop.
type WorkerConfig struct {
	// MaxConcurrentTasks bounds how many agent subprocesses run at once.
	// Default: 2, Valid range: 1-64
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" mapstructure:"max_concurrent_tasks"`

	// Queue selects the queue backend ("memory" or "redis").
	// Default: "memory"
	Queue string `yaml:"queue" mapstructure:"queue"`

	// RedisAddr is the host:port of the redis server, used when Queue is
	// "redis". Default: "localhost:6379"
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
}

// ProcessConfig contains settings for the supervised subprocess.
type ProcessConfig struct {
	// Command is the wrapper executable spawned per task.
	// Default: "claude"
	Command string `yaml:"command" mapstructure:"command"`

	// Args are extra arguments passed to Command.
	Args []string `yaml:"args" mapstructure:"args"`

	// Timeout is the per-task wall-clock limit when the task itself does
	// not carry one. Default: 5 minutes
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// GracefulShutdown is the window between asking the subprocess to stop
	// and killing it. Default: 5 seconds
	GracefulShutdown time.Duration `yaml:"graceful_shutdown" mapstructure:"graceful_shutdown"`
}

// SessionLogsConfig contains settings for locating agent session transcripts.
type SessionLogsConfig struct {
	// Dir overrides transcript discovery with a fixed directory.
	// Empty means derive candidates from the task's working directory.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum level emitted ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level" mapstructure:"level"`
}
