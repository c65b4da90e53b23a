package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/constants"
	"github.com/RyosukeMondo/cc-task-manager-sub009/internal/domain"
	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// Redis is a redis-backed Queue. Pending tasks live on a single list and
// results are stored per task under a TTL, so multiple worker processes can
// share one queue and crashed workers leak nothing permanent.
type Redis struct {
	pool    *redis.Pool
	logger  zerolog.Logger
	taskKey string
}

// RedisOption configures a Redis queue.
type RedisOption func(*Redis)

// WithRedisLogger sets the queue logger.
func WithRedisLogger(logger zerolog.Logger) RedisOption {
	return func(r *Redis) { r.logger = logger }
}

// NewRedis creates a redis-backed queue connected to addr (host:port).
func NewRedis(addr string, opts ...RedisOption) *Redis {
	r := &Redis{
		pool: &redis.Pool{
			MaxIdle:     3,
			IdleTimeout: 4 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr)
			},
		},
		logger:  zerolog.Nop(),
		taskKey: constants.QueueTasksKey,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Enqueue pushes a task onto the pending list.
func (r *Redis) Enqueue(ctx context.Context, req *domain.TaskRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return cctmerrors.Wrap(err, "failed to encode task")
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Do("LPUSH", r.taskKey, payload); err != nil {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	r.logger.Debug().Str("task_id", req.TaskID).Msg("task enqueued")

	return nil
}

// Dequeue blocks for at most one poll window waiting for a pending task.
func (r *Redis) Dequeue(ctx context.Context) (*domain.TaskRequest, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	defer func() { _ = conn.Close() }()

	window := int(constants.QueuePollInterval / time.Second)
	if window < 1 {
		window = 1
	}

	values, err := redis.Values(conn.Do("BRPOP", r.taskKey, window))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, cctmerrors.ErrQueueEmpty
		}
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	if len(values) != 2 {
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, "unexpected BRPOP reply shape")
	}

	payload, err := redis.Bytes(values[1], nil)
	if err != nil {
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}

	var req domain.TaskRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, cctmerrors.Wrap(err, "failed to decode task")
	}

	return &req, nil
}

// Complete stores the task's final result under a TTL.
func (r *Redis) Complete(ctx context.Context, res *domain.ExecutionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return cctmerrors.Wrap(err, "failed to encode result")
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	defer func() { _ = conn.Close() }()

	ttl := int(constants.QueueResultTTL / time.Second)
	if _, err := conn.Do("SET", resultKey(res.TaskID), payload, "EX", ttl); err != nil {
		return cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}

	return nil
}

// Fail records a pre-protocol failure as a terminated result.
func (r *Redis) Fail(ctx context.Context, taskID string, cause error) error {
	return r.Complete(ctx, failureResult(taskID, cause))
}

// Result fetches a stored result by task ID.
func (r *Redis) Result(ctx context.Context, taskID string) (*domain.ExecutionResult, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}
	defer func() { _ = conn.Close() }()

	payload, err := redis.Bytes(conn.Do("GET", resultKey(taskID)))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, cctmerrors.Wrapf(cctmerrors.ErrResultNotFound, "task %s", taskID)
		}
		return nil, cctmerrors.Wrap(cctmerrors.ErrQueueUnavailable, err.Error())
	}

	var res domain.ExecutionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, cctmerrors.Wrap(err, "failed to decode result")
	}

	return &res, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}

func resultKey(taskID string) string {
	return constants.QueueResultsKeyPrefix + taskID
}
