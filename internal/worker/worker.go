// Package worker runs the job lifecycle: it pulls task descriptors off the
// queue, hands each one to the process supervisor, and posts exactly one
// result back per task. Concurrency is bounded and task IDs are deduplicated
// while in flight, so the same descriptor delivered twice cannot run twice
// concurrently.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/ctxutil"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/queue"
)

// Executor runs a single task to completion. The process supervisor is the
// production implementation.
type Executor interface {
	Execute(ctx context.Context, req *domain.TaskRequest) (*domain.ExecutionResult, error)
}

// Worker drains the queue with bounded concurrency.
type Worker struct {
	queue    queue.Queue
	executor Executor
	logger   zerolog.Logger
	limit    int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithMaxConcurrentTasks bounds how many tasks run at once.
func WithMaxConcurrentTasks(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.limit = n
		}
	}
}

// New creates a worker backed by q and exec.
func New(q queue.Queue, exec Executor, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		executor: exec,
		logger:   zerolog.Nop(),
		limit:    constants.DefaultMaxConcurrentTasks,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run polls the queue until ctx is cancelled, then drains: no new tasks are
// started and Run returns once every in-flight task has posted its result.
// In-flight tasks are not cancelled on shutdown; each is already bounded by
// its own wall-clock timeout.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("max_concurrent_tasks", w.limit).Msg("worker started")

	g := &errgroup.Group{}
	g.SetLimit(w.limit)

	for {
		if ctxErr := ctxutil.Canceled(ctx); ctxErr != nil {
			break
		}

		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, cctmerrors.ErrQueueEmpty) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			w.logger.Error().Err(err).Msg("dequeue failed, stopping worker")
			_ = g.Wait()

			return err
		}

		if !w.claim(req.TaskID) {
			w.logger.Warn().Str("task_id", req.TaskID).Msg("duplicate task rejected while original still in flight")
			w.failTask(req.TaskID, cctmerrors.ErrDuplicateTask)

			continue
		}

		g.Go(func() error {
			defer w.release(req.TaskID)
			w.runTask(ctx, req)

			return nil
		})
	}

	w.logger.Info().Msg("worker draining in-flight tasks")
	_ = g.Wait()
	w.logger.Info().Msg("worker stopped")

	return nil
}

// runTask executes one task and posts exactly one result, even when the
// executor errors before the protocol produced one.
func (w *Worker) runTask(ctx context.Context, req *domain.TaskRequest) {
	logger := w.logger.With().Str("task_id", req.TaskID).Logger()
	logger.Info().Str("working_directory", req.WorkingDirectory).Msg("task dequeued")

	// Detach from the run context so a shutdown drains instead of killing
	// mid-task. The supervisor enforces the per-task wall-clock limit.
	taskCtx := context.WithoutCancel(ctx)

	res, err := w.executor.Execute(taskCtx, req)
	if err != nil {
		logger.Error().Err(err).Msg("task could not be executed")
		w.failTask(req.TaskID, err)

		return
	}

	logger.Info().
		Str("state", string(res.State)).
		Bool("success", res.Success).
		Msg("task finished")
	w.completeTask(res)
}

func (w *Worker) claim(taskID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.inFlight[taskID]; dup {
		return false
	}
	w.inFlight[taskID] = struct{}{}

	return true
}

func (w *Worker) release(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, taskID)
}

// completeTask posts a result with a background context so queue writes
// survive run-context cancellation during drain.
func (w *Worker) completeTask(res *domain.ExecutionResult) {
	if err := w.queue.Complete(context.Background(), res); err != nil {
		w.logger.Error().Err(err).Str("task_id", res.TaskID).Msg("failed to store task result")
	}
}

func (w *Worker) failTask(taskID string, cause error) {
	if err := w.queue.Fail(context.Background(), taskID, cause); err != nil {
		w.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to store task failure")
	}
}
