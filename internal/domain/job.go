package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateDead      JobState = "dead"
)

// Job is the queued unit of work: one requested analysis of one video.
// Attempt is incremented by the queue on every lease, so it counts
// deliveries, including re-deliveries after a crashed worker's lease expired.
type Job struct {
	ID            uuid.UUID `json:"id"`
	VideoID       uuid.UUID `json:"videoId"`
	UserID        uuid.UUID `json:"userId"`
	State         JobState  `json:"state"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	NextVisibleAt time.Time `json:"nextVisibleAt"`
	LastError     string    `json:"lastError,omitempty"`
}

// Terminal reports whether the job can no longer transition.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateDead
}
