package queue

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

func testTask(id string) *domain.TaskRequest {
	return &domain.TaskRequest{
		TaskID:           id,
		Prompt:           "summarize the release notes",
		WorkingDirectory: "/tmp",
	}
}

func TestMemoryEnqueueDequeue(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testTask("task-1")))
	require.NoError(t, q.Enqueue(ctx, testTask("task-2")))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "task-1", first.TaskID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "task-2", second.TaskID)
}

func TestMemoryEnqueueRejectsInvalidTask(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	err := q.Enqueue(context.Background(), &domain.TaskRequest{TaskID: "task-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cctmerrors.ErrInvalidTask)
}

func TestMemoryDequeueHonorsContext(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryCompleteAndResult(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	res := &domain.ExecutionResult{
		TaskID:  "task-1",
		State:   domain.TaskStateCompleted,
		Success: true,
	}
	require.NoError(t, q.Complete(ctx, res))

	got, err := q.Result(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, got.State)
	assert.True(t, got.Success)
}

func TestMemoryResultNotFound(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	_, err := q.Result(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, cctmerrors.ErrResultNotFound)
}

func TestMemoryFailStoresTerminatedResult(t *testing.T) {
	q := NewMemory()
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	require.NoError(t, q.Fail(ctx, "task-1", cctmerrors.ErrSpawnFailed))

	got, err := q.Result(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateTerminated, got.State)
	assert.False(t, got.Success)
	assert.Contains(t, got.Message, "spawn")
}

func TestMemoryEnqueueDuringCloseDoesNotPanic(t *testing.T) {
	ctx := context.Background()

	for range 500 {
		q := NewMemory()
		start := make(chan struct{})
		done := make(chan struct{})

		go func() {
			defer close(done)
			<-start
			for i := range 10 {
				err := q.Enqueue(ctx, testTask("task-"+strconv.Itoa(i)))
				if err != nil {
					assert.ErrorIs(t, err, cctmerrors.ErrQueueUnavailable)
					return
				}
			}
		}()

		close(start)
		require.NoError(t, q.Close())
		<-done
	}
}

func TestMemoryClosedQueueRejectsWrites(t *testing.T) {
	q := NewMemory()
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	ctx := context.Background()
	err := q.Enqueue(ctx, testTask("task-1"))
	assert.ErrorIs(t, err, cctmerrors.ErrQueueUnavailable)

	err = q.Complete(ctx, &domain.ExecutionResult{TaskID: "task-1"})
	assert.ErrorIs(t, err, cctmerrors.ErrQueueUnavailable)
}
