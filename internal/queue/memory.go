package queue

import (
	"context"
	"sync"
	"time"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// memoryQueueCapacity bounds the pending list so a runaway producer fails
// fast instead of growing without bound.
const memoryQueueCapacity = 1024

// Memory is an in-process Queue for single-binary operation. Results are
// retained until read or until the queue is closed.
type Memory struct {
	tasks chan *domain.TaskRequest

	mu      sync.Mutex
	results map[string]*domain.ExecutionResult
	closed  bool
}

// NewMemory creates an in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		tasks:   make(chan *domain.TaskRequest, memoryQueueCapacity),
		results: make(map[string]*domain.ExecutionResult),
	}
}

// Enqueue adds a task to the pending list.
func (m *Memory) Enqueue(ctx context.Context, req *domain.TaskRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The send must happen under the same lock that Close holds while
	// closing the channel, or a concurrent Close makes it panic. The
	// select never blocks, so the lock is held only briefly.
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, "queue is closed")
	}

	select {
	case m.tasks <- req:
		return nil
	default:
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, "pending list is full")
	}
}

// Dequeue returns the next pending task, waiting at most one poll window.
func (m *Memory) Dequeue(ctx context.Context) (*domain.TaskRequest, error) {
	timer := time.NewTimer(constants.QueuePollInterval)
	defer timer.Stop()

	select {
	case req, ok := <-m.tasks:
		if !ok {
			return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, "queue is closed")
		}
		return req, nil
	case <-timer.C:
		return nil, cctmerrors.ErrQueueEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete stores the task's final result.
func (m *Memory) Complete(_ context.Context, res *domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, "queue is closed")
	}
	m.results[res.TaskID] = res

	return nil
}

// Fail records a pre-protocol failure as a terminated result.
func (m *Memory) Fail(ctx context.Context, taskID string, cause error) error {
	return m.Complete(ctx, failureResult(taskID, cause))
}

// Result fetches a stored result by task ID.
func (m *Memory) Result(_ context.Context, taskID string) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.results[taskID]
	if !ok {
		return nil, cctmerrors.Wrapf(cctmerrors.ErrResultNotFound, "task %s", taskID)
	}

	return res, nil
}

// Close drains the pending list and drops retained results.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.tasks)
	m.results = map[string]*domain.ExecutionResult{}

	return nil
}
