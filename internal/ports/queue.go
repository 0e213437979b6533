package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
)

// JobQueue is the durable work queue with lease semantics.
//
// Lease must be atomic under concurrent workers: no two workers may hold the
// same job. Leasing increments the job's attempt counter. A leased job that
// is neither acked nor nacked before its visibility timeout elapses becomes
// pending again via ReapExpired.
type JobQueue interface {
	// Enqueue adds a new pending job and returns its id.
	Enqueue(ctx context.Context, job domain.Job) (uuid.UUID, error)
	// Lease atomically claims the next visible pending job for workerID,
	// or returns nil when the queue has nothing visible.
	Lease(ctx context.Context, workerID string, visibilityTimeout time.Duration) (*domain.Job, error)
	// Ack completes a leased job and removes it from the queue.
	Ack(ctx context.Context, jobID uuid.UUID) error
	// Nack returns a leased job to pending, visible again after delay.
	Nack(ctx context.Context, jobID uuid.UUID, delay time.Duration, lastError string) error
	// Bury terminally fails a leased job, keeping it readable for operators.
	Bury(ctx context.Context, jobID uuid.UUID, reason string) error
	// ReapExpired moves jobs whose lease deadline passed back to pending.
	ReapExpired(ctx context.Context, now time.Time) (int, error)
	// Get returns the job envelope regardless of state.
	Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
}
