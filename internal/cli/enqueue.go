package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/config"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/logging"
)

// enqueueFlags holds flags specific to the enqueue command.
type enqueueFlags struct {
	taskID      string
	sessionName string
	workDir     string
	model       string
	timeout     time.Duration
}

// AddEnqueueCommand adds the enqueue command to the root command.
func AddEnqueueCommand(root *cobra.Command, globalFlags *GlobalFlags) {
	flags := &enqueueFlags{}

	cmd := &cobra.Command{
		Use:   "enqueue <prompt>",
		Short: "Add a task to the queue",
		Long: `Enqueue submits a task descriptor to the configured queue and prints its
task ID. A separate run process picks the task up and executes it.

Enqueueing requires a shared queue backend; with the in-memory backend only
the enqueueing process itself can see the task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueTask(cmd.Context(), globalFlags, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.taskID, "id", "", "task ID (default: random UUID)")
	cmd.Flags().StringVar(&flags.sessionName, "session", "", "session name for diagnostics")
	cmd.Flags().StringVar(&flags.workDir, "workdir", "", "working directory for the agent (default: current directory)")
	cmd.Flags().StringVar(&flags.model, "model", "", "agent model override")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-task wall-clock limit")

	root.AddCommand(cmd)
}

// enqueueTask builds the task request and submits it.
func enqueueTask(ctx context.Context, globalFlags *GlobalFlags, flags *enqueueFlags, prompt string) error {
	logger := GetLogger()

	cfg, err := config.Load(logger.WithContext(ctx))
	if err != nil {
		return err
	}

	if cfg.Worker.Queue == config.QueueBackendMemory {
		logger.Warn().Msg("in-memory queue is process-local; a separate run process will not see this task")
	}

	workDir := flags.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	taskID := flags.taskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	req := &domain.TaskRequest{
		TaskID:           taskID,
		Prompt:           prompt,
		SessionName:      flags.sessionName,
		WorkingDirectory: workDir,
		Options: domain.TaskOptions{
			Model: flags.model,
		},
	}
	if flags.timeout > 0 {
		req.TimeoutMs = int64(flags.timeout / time.Millisecond)
	}

	q, err := buildQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	if err := q.Enqueue(ctx, req); err != nil {
		return err
	}

	logger.Info().
		Str("task_id", taskID).
		Str("prompt", logging.SafeValue("prompt", prompt)).
		Msg("task enqueued")

	if globalFlags.Output == OutputJSON {
		fmt.Printf("{\"task_id\":%q}\n", taskID)
	} else {
		fmt.Println(taskID)
	}

	return nil
}
