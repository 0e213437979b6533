package postgres

import (
	"time"

	"github.com/google/uuid"
)

type analysisModel struct {
	AnalysisID     uuid.UUID `gorm:"column:analysis_id;type:uuid;default:gen_random_uuid();primaryKey"`
	VideoID        uuid.UUID `gorm:"column:video_id"`
	UserID         uuid.UUID `gorm:"column:user_id"`
	KeyMoments     []byte    `gorm:"column:key_moments"`
	OverallSummary string    `gorm:"column:overall_summary"`
	TotalDuration  *float64  `gorm:"column:total_duration"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (analysisModel) TableName() string { return "analyses" }

type deadLetterModel struct {
	DeadLetterID uuid.UUID `gorm:"column:dead_letter_id;type:uuid;default:gen_random_uuid();primaryKey"`
	JobID        uuid.UUID `gorm:"column:job_id"`
	VideoID      uuid.UUID `gorm:"column:video_id"`
	UserID       uuid.UUID `gorm:"column:user_id"`
	Attempts     int       `gorm:"column:attempts"`
	Kind         string    `gorm:"column:kind"`
	LastError    string    `gorm:"column:last_error"`
	FailedAt     time.Time `gorm:"column:failed_at"`
}

func (deadLetterModel) TableName() string { return "dead_letters" }

type analysisOutboxModel struct {
	OutboxID     uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      string     `gorm:"column:payload"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (analysisOutboxModel) TableName() string { return "analysis_outbox" }
