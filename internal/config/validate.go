package config

import (
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// maxConcurrentTasksLimit caps worker parallelism; anything beyond this is
// almost certainly a misconfigured unit (e.g. "200" meant as a queue depth).
const maxConcurrentTasksLimit = 64

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - worker max_concurrent_tasks must be between 1 and 64
//   - worker queue must be "memory" or "redis"
//   - worker redis_addr must be set when queue is "redis"
//   - process command must not be empty
//   - process timeout and graceful_shutdown must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return cctmerrors.ErrConfigNil
	}

	if err := validateWorkerConfig(&cfg.Worker); err != nil {
		return err
	}

	return validateProcessConfig(&cfg.Process)
}

// validateWorkerConfig checks worker-specific configuration values.
func validateWorkerConfig(cfg *WorkerConfig) error {
	if cfg.MaxConcurrentTasks < 1 || cfg.MaxConcurrentTasks > maxConcurrentTasksLimit {
		return cctmerrors.Wrapf(cctmerrors.ErrConfigInvalidWorker,
			"worker.max_concurrent_tasks must be between 1 and %d, got %d",
			maxConcurrentTasksLimit, cfg.MaxConcurrentTasks)
	}

	switch cfg.Queue {
	case QueueBackendMemory:
	case QueueBackendRedis:
		if cfg.RedisAddr == "" {
			return cctmerrors.Wrap(cctmerrors.ErrConfigInvalidWorker,
				"worker.redis_addr must be set when worker.queue is \"redis\"")
		}
	default:
		return cctmerrors.Wrapf(cctmerrors.ErrConfigInvalidWorker,
			"worker.queue must be %q or %q, got %q",
			QueueBackendMemory, QueueBackendRedis, cfg.Queue)
	}

	return nil
}

// validateProcessConfig checks subprocess-specific configuration values.
func validateProcessConfig(cfg *ProcessConfig) error {
	if cfg.Command == "" {
		return cctmerrors.Wrap(cctmerrors.ErrConfigInvalidProcess,
			"process.command must not be empty")
	}

	if cfg.Timeout <= 0 {
		return cctmerrors.Wrapf(cctmerrors.ErrConfigInvalidProcess,
			"process.timeout must be positive, got %s", cfg.Timeout)
	}

	if cfg.GracefulShutdown <= 0 {
		return cctmerrors.Wrapf(cctmerrors.ErrConfigInvalidProcess,
			"process.graceful_shutdown must be positive, got %s", cfg.GracefulShutdown)
	}

	return nil
}
