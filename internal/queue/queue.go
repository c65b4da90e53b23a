// Package queue provides the job-queue boundary for the task manager. The
// queue is an external collaborator: it owns retry policy, persistence and
// at-least-once delivery, while this process guarantees that each dequeued
// task is executed by exactly one supervisor instance and answered with
// exactly one result.
//
// Two implementations are provided: an in-memory queue for single-binary
// operation with zero configuration, and a redis-backed queue for durable
// multi-process deployments.
package queue

import (
	"context"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
)

// Queue is the durable add/await-completion/remove-on-complete boundary.
type Queue interface {
	// Enqueue adds a task to the pending list.
	Enqueue(ctx context.Context, req *domain.TaskRequest) error

	// Dequeue removes and returns the next pending task. It blocks for at
	// most one poll window; ErrQueueEmpty signals that the caller should
	// poll again, ctx errors signal shutdown.
	Dequeue(ctx context.Context) (*domain.TaskRequest, error)

	// Complete stores the task's final result, removing the job from the
	// in-flight set.
	Complete(ctx context.Context, res *domain.ExecutionResult) error

	// Fail records a pre-protocol failure (spawn error, invalid request)
	// on the queue's standard failure path.
	Fail(ctx context.Context, taskID string, cause error) error

	// Result fetches a stored result by task ID. ErrResultNotFound means
	// the task has not finished (or the result expired).
	Result(ctx context.Context, taskID string) (*domain.ExecutionResult, error)

	// Close releases queue resources.
	Close() error
}

// failureResult shapes a pre-protocol failure into the same result record a
// finished task produces, so consumers read one shape from the queue.
func failureResult(taskID string, cause error) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		TaskID:  taskID,
		State:   domain.TaskStateTerminated,
		Success: false,
		Message: cause.Error(),
	}
}
