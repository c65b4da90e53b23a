// Package constants provides centralized constant values used throughout the
// task manager. This package is the single source of truth for all shared
// constants and MUST NOT import any other internal packages.
package constants

import "time"

// Directory names used for organizing on-disk data.
const (
	// AppHome is the hidden directory name where the task manager stores
	// all its data. This directory is created in the user's home directory.
	AppHome = ".cc-task-manager"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// LogFileName is the rotated log file written alongside console output.
	LogFileName = "cctaskd.log"

	// ConfigFileName is the YAML configuration file name, looked up both
	// globally (~/.cc-task-manager/) and per-project (.cc-task-manager/).
	ConfigFileName = "config.yaml"
)

// Log rotation settings for the global log file.
const (
	// HomeEnv overrides the app home directory when set.
	HomeEnv = "CCTM_HOME"

	// LogMaxSizeMB is the maximum size of a log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of a rotated log file.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Timeout configuration for subprocess supervision.
const (
	// DefaultProcessTimeout is the wall-clock limit applied at the protocol
	// layer when a task does not carry its own timeout.
	DefaultProcessTimeout = 5 * time.Minute

	// DefaultJobTimeout is the wall-clock limit applied at the queue-config
	// layer. The more specific per-task value always wins over this.
	DefaultJobTimeout = 10 * time.Minute

	// DefaultGracefulShutdown is the escalation window between requesting
	// graceful subprocess termination and forcibly killing it.
	DefaultGracefulShutdown = 5 * time.Second
)

// Worker configuration defaults.
const (
	// DefaultMaxConcurrentTasks bounds the number of subprocesses the worker
	// runs at once. Each task occupies one subprocess for its lifetime.
	DefaultMaxConcurrentTasks = 2

	// DefaultAgentCommand is the coding-agent CLI invoked per task.
	DefaultAgentCommand = "claude"
)

// Queue keys and defaults for the redis-backed queue.
const (
	// QueueTasksKey is the redis list that holds pending task payloads.
	QueueTasksKey = "cctm:tasks"

	// QueueResultsKeyPrefix prefixes the per-task result keys.
	QueueResultsKeyPrefix = "cctm:result:"

	// QueueResultTTL is how long completed results are retained in redis.
	QueueResultTTL = 24 * time.Hour

	// QueuePollInterval is the blocking-pop timeout used when waiting for
	// work, which doubles as the shutdown responsiveness bound.
	QueuePollInterval = 2 * time.Second
)

// Event bookkeeping limits.
const (
	// EventLogSize bounds the rolling log of normalized events kept per task
	// for failure diagnostics.
	EventLogSize = 20

	// MaxLineSize caps a single protocol line read from the subprocess.
	MaxLineSize = 1024 * 1024
)

// Session transcript discovery.
const (
	// SessionProjectsDir is the default cache location, relative to the user
	// home directory, where the coding agent writes session transcripts.
	SessionProjectsDir = ".claude/projects"

	// SessionLogDirEnv overrides transcript discovery when set.
	SessionLogDirEnv = "CCTM_SESSION_LOG_DIR"

	// SessionTailLines is how many transcript lines are captured for
	// post-mortem diagnostics.
	SessionTailLines = 50
)
