package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/ports"
)

// Executor runs one leased job to completion: invoke the capability,
// validate, commit. A nil return means the job may be acked; a
// domain.ErrAlreadyAnalyzed outcome must be absorbed by the executor itself.
type Executor interface {
	ProcessJob(ctx context.Context, job domain.Job) error
}

// DeadLetterSink receives jobs that exhausted their retry budget.
type DeadLetterSink interface {
	RecordDeadJob(ctx context.Context, job domain.Job, kind domain.FailureKind, execErr error) error
}

type DispatcherConfig struct {
	Concurrency       int
	VisibilityTimeout time.Duration
	ReapInterval      time.Duration
	IdleBackoffMin    time.Duration
	IdleBackoffMax    time.Duration
}

// Dispatcher owns the worker pool. The pool itself is the concurrency bound:
// exactly Concurrency goroutines lease and execute jobs, and nothing else
// spawns work.
type Dispatcher struct {
	logger     *slog.Logger
	queue      ports.JobQueue
	executor   Executor
	deadLetter DeadLetterSink
	policy     RetryPolicy
	cfg        DispatcherConfig
}

func NewDispatcher(logger *slog.Logger, queue ports.JobQueue, executor Executor, deadLetter DeadLetterSink, policy RetryPolicy, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 5 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.IdleBackoffMin <= 0 {
		cfg.IdleBackoffMin = 250 * time.Millisecond
	}
	if cfg.IdleBackoffMax < cfg.IdleBackoffMin {
		cfg.IdleBackoffMax = 5 * time.Second
	}
	return &Dispatcher{
		logger:     logger,
		queue:      queue,
		executor:   executor,
		deadLetter: deadLetter,
		policy:     policy.normalized(),
		cfg:        cfg,
	}
}

// Run blocks until ctx is canceled. Shutdown is graceful: workers stop
// leasing, in-flight jobs finish, and anything a dying worker held comes
// back through the visibility timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Concurrency; i++ {
		wg.Add(1)
		workerID := fmt.Sprintf("worker-%d", i)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx, workerID)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reapLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) workerLoop(ctx context.Context, workerID string) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(workerID))))
	idle := d.cfg.IdleBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := d.queue.Lease(ctx, workerID, d.cfg.VisibilityTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.ErrorContext(ctx, "lease failed",
				"module", "pipeline.dispatcher",
				"operation", "lease",
				"outcome", "failure",
				"worker_id", workerID,
				"error", err,
			)
			if !sleepCtx(ctx, idle) {
				return
			}
			idle = nextIdle(idle, d.cfg.IdleBackoffMax, rng)
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, jittered(idle, rng)) {
				return
			}
			idle = nextIdle(idle, d.cfg.IdleBackoffMax, rng)
			continue
		}
		idle = d.cfg.IdleBackoffMin
		d.handle(ctx, workerID, *job)
	}
}

func (d *Dispatcher) handle(ctx context.Context, workerID string, job domain.Job) {
	execErr := d.executor.ProcessJob(ctx, job)
	if execErr == nil {
		if err := d.queue.Ack(ctx, job.ID); err != nil {
			// The commit already landed; a redelivered job is absorbed by
			// the uniqueness guard, so a failed ack is only noise.
			d.logger.WarnContext(ctx, "ack failed after successful commit",
				"module", "pipeline.dispatcher",
				"operation", "ack",
				"outcome", "failure",
				"job_id", job.ID,
				"error", err,
			)
		}
		return
	}
	if errors.Is(execErr, context.Canceled) {
		// Shutdown mid-job: leave the lease to expire and be re-delivered.
		return
	}

	kind := domain.ClassifyFailure(execErr)
	decision := d.policy.Decide(job.Attempt)
	if decision.Dead {
		if err := d.deadLetter.RecordDeadJob(ctx, job, kind, execErr); err != nil {
			d.logger.ErrorContext(ctx, "dead letter record failed",
				"module", "pipeline.dispatcher",
				"operation", "record_dead_job",
				"outcome", "failure",
				"job_id", job.ID,
				"error", err,
			)
		}
		if err := d.queue.Bury(ctx, job.ID, execErr.Error()); err != nil {
			d.logger.ErrorContext(ctx, "bury failed",
				"module", "pipeline.dispatcher",
				"operation", "bury",
				"outcome", "failure",
				"job_id", job.ID,
				"error", err,
			)
		}
		d.logger.ErrorContext(ctx, "job dead-lettered",
			"module", "pipeline.dispatcher",
			"operation", "process_job",
			"outcome", "dead",
			"job_id", job.ID,
			"video_id", job.VideoID,
			"attempts", job.Attempt,
			"failure_kind", string(kind),
			"error", execErr,
		)
		return
	}

	if err := d.queue.Nack(ctx, job.ID, decision.Delay, execErr.Error()); err != nil {
		d.logger.ErrorContext(ctx, "nack failed",
			"module", "pipeline.dispatcher",
			"operation", "nack",
			"outcome", "failure",
			"job_id", job.ID,
			"error", err,
		)
		return
	}
	d.logger.WarnContext(ctx, "job requeued",
		"module", "pipeline.dispatcher",
		"operation", "process_job",
		"outcome", "retry",
		"worker_id", workerID,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"retry_in", decision.Delay.String(),
		"failure_kind", string(kind),
		"error", execErr,
	)
}

func (d *Dispatcher) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := d.queue.ReapExpired(ctx, time.Now().UTC())
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.ErrorContext(ctx, "lease reap failed",
				"module", "pipeline.dispatcher",
				"operation", "reap_expired",
				"outcome", "failure",
				"error", err,
			)
			continue
		}
		if n > 0 {
			d.logger.InfoContext(ctx, "expired leases returned to pending",
				"module", "pipeline.dispatcher",
				"operation", "reap_expired",
				"outcome", "success",
				"count", n,
			)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func jittered(d time.Duration, rng *rand.Rand) time.Duration {
	if d <= 0 {
		return d
	}
	// +/- 25% so idle workers don't poll in lockstep
	delta := time.Duration(rng.Int63n(int64(d)/2+1)) - d/4
	return d + delta
}

func nextIdle(cur, max time.Duration, _ *rand.Rand) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
