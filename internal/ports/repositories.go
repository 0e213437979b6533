package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
)

type CommitAnalysisParams struct {
	VideoID        uuid.UUID
	UserID         uuid.UUID
	KeyMoments     []domain.KeyMoment
	OverallSummary string
	TotalDuration  *float64
	CommittedAt    time.Time
}

// AnalysisRepository persists committed analyses. Create must surface a
// unique-constraint violation on video_id as domain.ErrAlreadyAnalyzed; that
// constraint is the pipeline's sole idempotency guard.
type AnalysisRepository interface {
	Create(ctx context.Context, params CommitAnalysisParams) (domain.Analysis, error)
	GetByVideoID(ctx context.Context, videoID uuid.UUID) (domain.Analysis, error)
	ExistsForVideo(ctx context.Context, videoID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Analysis, error)
}

type DeadLetterRecord struct {
	JobID     uuid.UUID
	VideoID   uuid.UUID
	UserID    uuid.UUID
	Attempts  int
	Kind      string
	LastError string
	FailedAt  time.Time
}

// DeadLetterRepository records jobs that exhausted their retry budget so an
// operator can inspect them instead of losing them silently.
type DeadLetterRepository interface {
	Record(ctx context.Context, rec DeadLetterRecord) error
	List(ctx context.Context, limit, offset int) ([]DeadLetterRecord, error)
}

type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	CreatedAt    time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}
