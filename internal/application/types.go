package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
)

type SubmitAnalysisJobRequest struct {
	VideoID string `json:"video_id"`
}

type SubmitAnalysisJobResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	VideoID    uuid.UUID `json:"video_id"`
	State      string    `json:"state"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type JobStatusResponse struct {
	JobID         uuid.UUID `json:"job_id"`
	VideoID       uuid.UUID `json:"video_id"`
	State         string    `json:"state"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	NextVisibleAt time.Time `json:"next_visible_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

type AnalysisResponse struct {
	AnalysisID     uuid.UUID          `json:"analysis_id"`
	VideoID        uuid.UUID          `json:"video_id"`
	UserID         uuid.UUID          `json:"user_id"`
	KeyMoments     []domain.KeyMoment `json:"key_moments"`
	OverallSummary string             `json:"overall_summary,omitempty"`
	TotalDuration  *float64           `json:"total_duration,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func toAnalysisResponse(a domain.Analysis) AnalysisResponse {
	return AnalysisResponse{
		AnalysisID:     a.AnalysisID,
		VideoID:        a.VideoID,
		UserID:         a.UserID,
		KeyMoments:     a.KeyMoments,
		OverallSummary: a.OverallSummary,
		TotalDuration:  a.TotalDuration,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type analysisCompletedEvent struct {
	AnalysisID  uuid.UUID `json:"analysis_id"`
	VideoID     uuid.UUID `json:"video_id"`
	UserID      uuid.UUID `json:"user_id"`
	MomentCount int       `json:"moment_count"`
	CommittedAt time.Time `json:"committed_at"`
}

type jobDeadEvent struct {
	JobID       uuid.UUID `json:"job_id"`
	VideoID     uuid.UUID `json:"video_id"`
	UserID      uuid.UUID `json:"user_id"`
	Attempts    int       `json:"attempts"`
	FailureKind string    `json:"failure_kind"`
	LastError   string    `json:"last_error"`
	FailedAt    time.Time `json:"failed_at"`
}

type videoUploadedEvent struct {
	VideoID string `json:"video_id"`
	UserID  string `json:"user_id"`
}
