package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/ports"
)

const (
	keyPending   = "analysis:queue:pending"
	keyInflight  = "analysis:queue:inflight"
	keyJobPrefix = "analysis:queue:job:"

	completedJobTTL = 24 * time.Hour
	deadJobTTL      = 7 * 24 * time.Hour
)

// leaseScript claims the earliest visible pending job: remove from pending,
// add to inflight scored by lease deadline, bump the attempt counter. One
// round trip, so two workers can never claim the same job.
var leaseScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
redis.call('ZADD', KEYS[2], ARGV[2], id)
local jobKey = ARGV[4] .. id
local attempt = redis.call('HINCRBY', jobKey, 'attempt', 1)
redis.call('HSET', jobKey, 'state', 'active', 'worker_id', ARGV[3], 'next_visible_at', ARGV[2])
return {id, attempt}
`)

// reapScript sweeps expired leases back to pending in one round trip.
var reapScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, 100)
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
  redis.call('HSET', ARGV[2] .. id, 'state', 'pending', 'worker_id', '')
end
return #ids
`)

// RedisQueue implements the durable job queue on a Redis hash per job plus
// two sorted sets: pending (scored by next-visible-at) and inflight (scored
// by lease deadline).
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

var _ ports.JobQueue = (*RedisQueue)(nil)

func jobKey(id uuid.UUID) string { return keyJobPrefix + id.String() }

func (q *RedisQueue) Enqueue(ctx context.Context, job domain.Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	visibleAt := job.NextVisibleAt
	if visibleAt.IsZero() {
		visibleAt = job.EnqueuedAt
	}
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, jobKey(job.ID),
			"video_id", job.VideoID.String(),
			"user_id", job.UserID.String(),
			"state", string(domain.JobStatePending),
			"attempt", job.Attempt,
			"enqueued_at", job.EnqueuedAt.Format(time.RFC3339Nano),
			"next_visible_at", visibleAt.Unix(),
			"last_error", "",
		)
		p.ZAdd(ctx, keyPending, redis.Z{Score: float64(visibleAt.Unix()), Member: job.ID.String()})
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: enqueue: %v", domain.ErrQueueUnavailable, err)
	}
	return job.ID, nil
}

func (q *RedisQueue) Lease(ctx context.Context, workerID string, visibilityTimeout time.Duration) (*domain.Job, error) {
	now := time.Now().UTC()
	deadline := now.Add(visibilityTimeout)
	res, err := leaseScript.Run(ctx, q.client,
		[]string{keyPending, keyInflight},
		now.Unix(), deadline.Unix(), workerID, keyJobPrefix,
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: lease: %v", domain.ErrQueueUnavailable, err)
	}
	parts, ok := res.([]any)
	if !ok || len(parts) != 2 {
		return nil, fmt.Errorf("%w: lease: unexpected script reply", domain.ErrQueueUnavailable)
	}
	id, err := uuid.Parse(fmt.Sprint(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: lease: bad job id: %v", domain.ErrQueueUnavailable, err)
	}
	job, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: lease: job %s vanished", domain.ErrQueueUnavailable, id)
	}
	return job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, jobID uuid.UUID) error {
	removed, err := q.client.ZRem(ctx, keyInflight, jobID.String()).Result()
	if err != nil {
		return fmt.Errorf("%w: ack: %v", domain.ErrQueueUnavailable, err)
	}
	if removed == 0 {
		return domain.ErrJobNotLeased
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, jobKey(jobID), "state", string(domain.JobStateCompleted), "last_error", "")
		p.Expire(ctx, jobKey(jobID), completedJobTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: ack: %v", domain.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, jobID uuid.UUID, delay time.Duration, lastError string) error {
	removed, err := q.client.ZRem(ctx, keyInflight, jobID.String()).Result()
	if err != nil {
		return fmt.Errorf("%w: nack: %v", domain.ErrQueueUnavailable, err)
	}
	if removed == 0 {
		return domain.ErrJobNotLeased
	}
	visibleAt := time.Now().UTC().Add(delay)
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, jobKey(jobID),
			"state", string(domain.JobStateFailed),
			"last_error", lastError,
			"next_visible_at", visibleAt.Unix(),
		)
		p.ZAdd(ctx, keyPending, redis.Z{Score: float64(visibleAt.Unix()), Member: jobID.String()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: nack: %v", domain.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Bury(ctx context.Context, jobID uuid.UUID, reason string) error {
	removed, err := q.client.ZRem(ctx, keyInflight, jobID.String()).Result()
	if err != nil {
		return fmt.Errorf("%w: bury: %v", domain.ErrQueueUnavailable, err)
	}
	if removed == 0 {
		return domain.ErrJobNotLeased
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, jobKey(jobID), "state", string(domain.JobStateDead), "last_error", reason)
		p.Expire(ctx, jobKey(jobID), deadJobTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: bury: %v", domain.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := reapScript.Run(ctx, q.client,
		[]string{keyPending, keyInflight},
		now.Unix(), keyJobPrefix,
	).Int()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: reap: %v", domain.ErrQueueUnavailable, err)
	}
	return res, nil
}

func (q *RedisQueue) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	data, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", domain.ErrQueueUnavailable, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	job := domain.Job{ID: jobID, State: domain.JobState(data["state"]), LastError: data["last_error"]}
	if raw, ok := data["video_id"]; ok {
		if v, parseErr := uuid.Parse(raw); parseErr == nil {
			job.VideoID = v
		}
	}
	if raw, ok := data["user_id"]; ok {
		if v, parseErr := uuid.Parse(raw); parseErr == nil {
			job.UserID = v
		}
	}
	if raw, ok := data["attempt"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			job.Attempt = n
		}
	}
	if raw, ok := data["enqueued_at"]; ok && raw != "" {
		if t, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			job.EnqueuedAt = t.UTC()
		}
	}
	if raw, ok := data["next_visible_at"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			job.NextVisibleAt = time.Unix(unix, 0).UTC()
		}
	}
	return &job, nil
}
