package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/config"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/queue"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/sessionlog"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/signal"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/supervisor"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/worker"
)

// runFlags holds flags specific to the run command.
type runFlags struct {
	queueBackend  string
	redisAddr     string
	maxConcurrent int
	command       string
	timeout       time.Duration
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, _ *GlobalFlags) {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker loop that drains the task queue",
		Long: `Run starts the long-lived worker loop. It dequeues task descriptors,
spawns one agent subprocess per task, and posts each task's result back to
the queue.

The first SIGINT or SIGTERM stops dequeuing; in-flight tasks drain to
completion before the process exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.queueBackend, "queue", "", "queue backend (memory|redis)")
	cmd.Flags().StringVar(&flags.redisAddr, "redis-addr", "", "redis server address (host:port)")
	cmd.Flags().IntVar(&flags.maxConcurrent, "max-concurrent", 0, "maximum concurrent tasks")
	cmd.Flags().StringVar(&flags.command, "command", "", "agent wrapper command")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "default per-task wall-clock limit")

	root.AddCommand(cmd)
}

// runWorker wires config, queue, supervisor, and worker together and blocks
// until shutdown.
func runWorker(ctx context.Context, flags *runFlags) error {
	logger := GetLogger()

	cfg, err := config.LoadWithOverrides(logger.WithContext(ctx), &config.Config{
		Worker: config.WorkerConfig{
			MaxConcurrentTasks: flags.maxConcurrent,
			Queue:              flags.queueBackend,
			RedisAddr:          flags.redisAddr,
		},
		Process: config.ProcessConfig{
			Command: flags.command,
			Timeout: flags.timeout,
		},
	})
	if err != nil {
		return err
	}

	q, err := buildQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	sup := supervisor.New(
		supervisor.Config{
			Command:          cfg.Process.Command,
			Args:             cfg.Process.Args,
			GracefulShutdown: cfg.Process.GracefulShutdown,
		},
		supervisor.WithLogger(logger),
		supervisor.WithSessionLocator(sessionlog.NewLocator(cfg.SessionLogs.Dir, sessionlog.WithLogger(logger))),
	)

	w := worker.New(q,
		&defaultTimeoutExecutor{executor: sup, timeout: cfg.Process.Timeout},
		worker.WithLogger(logger),
		worker.WithMaxConcurrentTasks(cfg.Worker.MaxConcurrentTasks),
	)

	h := signal.NewHandler(ctx)
	defer h.Stop()

	logger.Info().
		Str("queue", cfg.Worker.Queue).
		Str("command", cfg.Process.Command).
		Msg("starting worker")

	err = w.Run(h.Context())

	select {
	case <-h.Interrupted():
		logger.Info().Msg("shutdown complete")
	default:
	}

	return err
}

// buildQueue constructs the configured queue backend.
func buildQueue(cfg *config.Config, logger zerolog.Logger) (queue.Queue, error) {
	switch cfg.Worker.Queue {
	case config.QueueBackendRedis:
		logger.Debug().Str("redis_addr", cfg.Worker.RedisAddr).Msg("using redis queue")
		return queue.NewRedis(cfg.Worker.RedisAddr, queue.WithRedisLogger(logger)), nil
	case config.QueueBackendMemory:
		return queue.NewMemory(), nil
	default:
		// Validate() already rejected anything else.
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Worker.Queue)
	}
}

// defaultTimeoutExecutor applies the configured per-task wall-clock limit to
// tasks that do not carry their own.
type defaultTimeoutExecutor struct {
	executor worker.Executor
	timeout  time.Duration
}

func (e *defaultTimeoutExecutor) Execute(ctx context.Context, req *domain.TaskRequest) (*domain.ExecutionResult, error) {
	if req.TimeoutMs == 0 && req.Options.TimeoutMs == 0 && e.timeout > 0 {
		req.TimeoutMs = int64(e.timeout / time.Millisecond)
	}
	return e.executor.Execute(ctx, req)
}
