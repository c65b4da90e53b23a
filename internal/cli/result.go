package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/config"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
)

// AddResultCommand adds the result command to the root command.
func AddResultCommand(root *cobra.Command, globalFlags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Fetch the stored result of a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResult(cmd.Context(), globalFlags, args[0])
		},
	}

	root.AddCommand(cmd)
}

// showResult looks up a task result and prints it in the selected format.
func showResult(ctx context.Context, globalFlags *GlobalFlags, taskID string) error {
	logger := GetLogger()

	cfg, err := config.Load(logger.WithContext(ctx))
	if err != nil {
		return err
	}

	q, err := buildQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	res, err := q.Result(ctx, taskID)
	if err != nil {
		return err
	}

	if globalFlags.Output == OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printResultText(res)
	return nil
}

// printResultText renders a result for humans.
func printResultText(res *domain.ExecutionResult) {
	fmt.Printf("task:     %s\n", res.TaskID)
	fmt.Printf("state:    %s\n", res.State)
	fmt.Printf("success:  %t\n", res.Success)
	if !res.StartTime.IsZero() {
		fmt.Printf("duration: %s\n", res.EndTime.Sub(res.StartTime).Round(time.Millisecond))
	}
	if res.Message != "" {
		fmt.Printf("message:  %s\n", res.Message)
	}
	if res.LimitReached && res.LimitDetails != nil {
		fmt.Printf("limit:    %s (from %s)\n", res.LimitDetails.Notice, res.LimitDetails.Event)
	}
	if res.ExitCode != nil {
		fmt.Printf("exit:     %d\n", *res.ExitCode)
	}
	for _, line := range res.EventLog {
		fmt.Printf("  event: %s\n", line)
	}
}
