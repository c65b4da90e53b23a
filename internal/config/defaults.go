package config

import (
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are the base layer that config files, environment variables,
// and CLI flags override.
func DefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			// MaxConcurrentTasks: two agent subprocesses saturate most
			// provider rate limits already.
			MaxConcurrentTasks: constants.DefaultMaxConcurrentTasks,

			// Queue: in-memory needs no external service and suits the
			// single-binary case.
			Queue: QueueBackendMemory,

			// RedisAddr: standard local redis, used only when Queue is
			// switched to "redis".
			RedisAddr: "localhost:6379",
		},
		Process: ProcessConfig{
			// Command: the agent CLI on PATH.
			Command: constants.DefaultAgentCommand,

			// Args: none. Deployments add wrapper-specific flags here.
			Args: nil,

			// Timeout: per-task wall clock when the task carries none.
			Timeout: constants.DefaultProcessTimeout,

			// GracefulShutdown: how long a subprocess gets to exit on its
			// own before it is killed.
			GracefulShutdown: constants.DefaultGracefulShutdown,
		},
		SessionLogs: SessionLogsConfig{
			// Dir: empty means derive transcript locations from the task's
			// working directory.
			Dir: "",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
