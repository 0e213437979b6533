package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/pipeline"
)

// memQueue implements ports.JobQueue in memory with the same lease
// semantics as the redis adapter: leasing is exclusive, increments the
// attempt counter, and an unacked lease comes back via ReapExpired.
type memQueue struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*domain.Job
	pending  map[uuid.UUID]time.Time
	inflight map[uuid.UUID]time.Time
	acked    map[uuid.UUID]bool
	buried   map[uuid.UUID]bool
}

func newMemQueue() *memQueue {
	return &memQueue{
		jobs:     make(map[uuid.UUID]*domain.Job),
		pending:  make(map[uuid.UUID]time.Time),
		inflight: make(map[uuid.UUID]time.Time),
		acked:    make(map[uuid.UUID]bool),
		buried:   make(map[uuid.UUID]bool),
	}
}

func (q *memQueue) Enqueue(_ context.Context, job domain.Job) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.State = domain.JobStatePending
	stored := job
	q.jobs[job.ID] = &stored
	q.pending[job.ID] = time.Now()
	return job.ID, nil
}

func (q *memQueue) Lease(ctx context.Context, _ string, visibilityTimeout time.Duration) (*domain.Job, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for id, visibleAt := range q.pending {
		if visibleAt.After(now) {
			continue
		}
		delete(q.pending, id)
		q.inflight[id] = now.Add(visibilityTimeout)
		job := q.jobs[id]
		job.Attempt++
		job.State = domain.JobStateActive
		out := *job
		return &out, nil
	}
	return nil, nil
}

func (q *memQueue) Ack(_ context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[jobID]; !ok {
		return domain.ErrJobNotLeased
	}
	delete(q.inflight, jobID)
	q.jobs[jobID].State = domain.JobStateCompleted
	q.acked[jobID] = true
	return nil
}

func (q *memQueue) Nack(_ context.Context, jobID uuid.UUID, delay time.Duration, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[jobID]; !ok {
		return domain.ErrJobNotLeased
	}
	delete(q.inflight, jobID)
	q.jobs[jobID].State = domain.JobStateFailed
	q.jobs[jobID].LastError = lastError
	q.pending[jobID] = time.Now().Add(delay)
	return nil
}

func (q *memQueue) Bury(_ context.Context, jobID uuid.UUID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[jobID]; !ok {
		return domain.ErrJobNotLeased
	}
	delete(q.inflight, jobID)
	q.jobs[jobID].State = domain.JobStateDead
	q.jobs[jobID].LastError = reason
	q.buried[jobID] = true
	return nil
}

func (q *memQueue) ReapExpired(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, deadline := range q.inflight {
		if deadline.After(now) {
			continue
		}
		delete(q.inflight, id)
		q.jobs[id].State = domain.JobStatePending
		q.pending[id] = now
		n++
	}
	return n, nil
}

func (q *memQueue) Get(_ context.Context, jobID uuid.UUID) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (q *memQueue) snapshot(jobID uuid.UUID) domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.jobs[jobID]
}

type stubExecutor struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]int
	fn         func(job domain.Job, delivery int) error
}

func newStubExecutor(fn func(job domain.Job, delivery int) error) *stubExecutor {
	return &stubExecutor{deliveries: make(map[uuid.UUID]int), fn: fn}
}

func (e *stubExecutor) ProcessJob(_ context.Context, job domain.Job) error {
	e.mu.Lock()
	e.deliveries[job.ID]++
	delivery := e.deliveries[job.ID]
	e.mu.Unlock()
	return e.fn(job, delivery)
}

func (e *stubExecutor) deliveryCount(jobID uuid.UUID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deliveries[jobID]
}

type stubDeadLetters struct {
	mu      sync.Mutex
	records []deadRecord
}

type deadRecord struct {
	job  domain.Job
	kind domain.FailureKind
	err  error
}

func (d *stubDeadLetters) RecordDeadJob(_ context.Context, job domain.Job, kind domain.FailureKind, execErr error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, deadRecord{job: job, kind: kind, err: execErr})
	return nil
}

func (d *stubDeadLetters) list() []deadRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]deadRecord, len(d.records))
	copy(out, d.records)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() pipeline.DispatcherConfig {
	return pipeline.DispatcherConfig{
		Concurrency:       2,
		VisibilityTimeout: time.Second,
		ReapInterval:      10 * time.Millisecond,
		IdleBackoffMin:    time.Millisecond,
		IdleBackoffMax:    5 * time.Millisecond,
	}
}

func runDispatcher(t *testing.T, d *pipeline.Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("dispatcher did not stop")
		}
	})
	return cancel
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDispatcher_AcksSuccessfulJob(t *testing.T) {
	queue := newMemQueue()
	executor := newStubExecutor(func(domain.Job, int) error { return nil })
	dead := &stubDeadLetters{}

	jobID, _ := queue.Enqueue(context.Background(), domain.Job{VideoID: uuid.New(), UserID: uuid.New()})

	d := pipeline.NewDispatcher(testLogger(), queue, executor, dead, pipeline.DefaultRetryPolicy(), fastConfig())
	runDispatcher(t, d)

	waitFor(t, "job to be acked", func() bool {
		return queue.snapshot(jobID).State == domain.JobStateCompleted
	})
	if executor.deliveryCount(jobID) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", executor.deliveryCount(jobID))
	}
	if len(dead.list()) != 0 {
		t.Fatalf("expected no dead letters")
	}
}

func TestDispatcher_RetriesThenDeadLetters(t *testing.T) {
	queue := newMemQueue()
	executor := newStubExecutor(func(domain.Job, int) error {
		return &domain.CapabilityError{Err: errors.New("model unavailable")}
	})
	dead := &stubDeadLetters{}

	jobID, _ := queue.Enqueue(context.Background(), domain.Job{VideoID: uuid.New(), UserID: uuid.New()})

	policy := pipeline.RetryPolicy{BaseDelay: time.Millisecond, DelayCeiling: 5 * time.Millisecond, MaxAttempts: 3}
	d := pipeline.NewDispatcher(testLogger(), queue, executor, dead, policy, fastConfig())
	runDispatcher(t, d)

	waitFor(t, "job to be buried", func() bool {
		return queue.snapshot(jobID).State == domain.JobStateDead
	})
	if got := executor.deliveryCount(jobID); got != 3 {
		t.Fatalf("expected 3 deliveries before dead, got %d", got)
	}
	records := dead.list()
	if len(records) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(records))
	}
	if records[0].job.ID != jobID || records[0].job.Attempt != 3 {
		t.Fatalf("unexpected dead record: %+v", records[0].job)
	}
	if records[0].kind != domain.FailureCapability {
		t.Fatalf("expected capability kind, got %s", records[0].kind)
	}
}

func TestDispatcher_SucceedsAfterTransientFailures(t *testing.T) {
	queue := newMemQueue()
	executor := newStubExecutor(func(_ domain.Job, delivery int) error {
		if delivery < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	dead := &stubDeadLetters{}

	jobID, _ := queue.Enqueue(context.Background(), domain.Job{VideoID: uuid.New(), UserID: uuid.New()})

	policy := pipeline.RetryPolicy{BaseDelay: time.Millisecond, DelayCeiling: 5 * time.Millisecond, MaxAttempts: 5}
	d := pipeline.NewDispatcher(testLogger(), queue, executor, dead, policy, fastConfig())
	runDispatcher(t, d)

	waitFor(t, "job to be acked after retries", func() bool {
		return queue.snapshot(jobID).State == domain.JobStateCompleted
	})
	if got := executor.deliveryCount(jobID); got != 3 {
		t.Fatalf("expected 3 deliveries, got %d", got)
	}
	if len(dead.list()) != 0 {
		t.Fatalf("expected no dead letters")
	}
}

func TestDispatcher_ReapsCrashedWorkerLease(t *testing.T) {
	queue := newMemQueue()
	executor := newStubExecutor(func(domain.Job, int) error { return nil })
	dead := &stubDeadLetters{}

	jobID, _ := queue.Enqueue(context.Background(), domain.Job{VideoID: uuid.New(), UserID: uuid.New()})

	// A worker leases the job and vanishes without acking.
	leased, err := queue.Lease(context.Background(), "crashed-worker", 20*time.Millisecond)
	if err != nil || leased == nil {
		t.Fatalf("expected lease, got job=%v err=%v", leased, err)
	}

	d := pipeline.NewDispatcher(testLogger(), queue, executor, dead, pipeline.DefaultRetryPolicy(), fastConfig())
	runDispatcher(t, d)

	waitFor(t, "reaped job to be processed", func() bool {
		return queue.snapshot(jobID).State == domain.JobStateCompleted
	})
	if got := queue.snapshot(jobID).Attempt; got != 2 {
		t.Fatalf("expected second delivery after reap, got attempt %d", got)
	}
}

func TestDispatcher_EachJobDeliveredOnce(t *testing.T) {
	queue := newMemQueue()
	executor := newStubExecutor(func(domain.Job, int) error { return nil })
	dead := &stubDeadLetters{}

	ids := make([]uuid.UUID, 0, 20)
	for i := 0; i < 20; i++ {
		id, _ := queue.Enqueue(context.Background(), domain.Job{VideoID: uuid.New(), UserID: uuid.New()})
		ids = append(ids, id)
	}

	cfg := fastConfig()
	cfg.Concurrency = 4
	d := pipeline.NewDispatcher(testLogger(), queue, executor, dead, pipeline.DefaultRetryPolicy(), cfg)
	runDispatcher(t, d)

	waitFor(t, "all jobs to complete", func() bool {
		for _, id := range ids {
			if queue.snapshot(id).State != domain.JobStateCompleted {
				return false
			}
		}
		return true
	})
	for _, id := range ids {
		if got := executor.deliveryCount(id); got != 1 {
			t.Fatalf("job %s delivered %d times", id, got)
		}
	}
}
