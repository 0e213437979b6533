package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/ports"
)

// SubmitAnalysisJob is the producer interface. The existence check is
// best-effort only: the authoritative duplicate guard is the unique
// constraint the commit layer hits.
func (s *Service) SubmitAnalysisJob(ctx context.Context, videoID, userID uuid.UUID) (SubmitAnalysisJobResponse, error) {
	if videoID == uuid.Nil {
		return SubmitAnalysisJobResponse{}, fmt.Errorf("%w: video_id is required", domain.ErrInvalidInput)
	}
	if userID == uuid.Nil {
		return SubmitAnalysisJobResponse{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	exists, err := s.analyses.ExistsForVideo(ctx, videoID)
	if err != nil {
		return SubmitAnalysisJobResponse{}, err
	}
	if exists {
		return SubmitAnalysisJobResponse{}, domain.ErrAlreadyAnalyzed
	}

	now := s.nowFn()
	job := domain.Job{
		ID:         uuid.New(),
		VideoID:    videoID,
		UserID:     userID,
		State:      domain.JobStatePending,
		EnqueuedAt: now,
	}
	jobID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return SubmitAnalysisJobResponse{}, err
	}
	return SubmitAnalysisJobResponse{
		JobID:      jobID,
		VideoID:    videoID,
		State:      string(domain.JobStatePending),
		EnqueuedAt: now,
	}, nil
}

func (s *Service) GetJobStatus(ctx context.Context, jobID uuid.UUID) (JobStatusResponse, error) {
	job, err := s.queue.Get(ctx, jobID)
	if err != nil {
		return JobStatusResponse{}, err
	}
	if job == nil {
		return JobStatusResponse{}, domain.ErrNotFound
	}
	return JobStatusResponse{
		JobID:         job.ID,
		VideoID:       job.VideoID,
		State:         string(job.State),
		Attempt:       job.Attempt,
		EnqueuedAt:    job.EnqueuedAt,
		NextVisibleAt: job.NextVisibleAt,
		LastError:     job.LastError,
	}, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (ports.AuthClaims, error) {
	if s.verifier == nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return s.verifier.Verify(token)
}

// HandleVideoUploaded consumes the upstream upload event and submits an
// analysis job for the new video. A video that already has a committed
// analysis is skipped.
func (s *Service) HandleVideoUploaded(ctx context.Context, payload []byte) error {
	var evt videoUploadedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: malformed video.uploaded payload: %v", domain.ErrInvalidInput, err)
	}
	videoID, err := uuid.Parse(evt.VideoID)
	if err != nil {
		return fmt.Errorf("%w: video.uploaded video_id: %v", domain.ErrInvalidInput, err)
	}
	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		return fmt.Errorf("%w: video.uploaded user_id: %v", domain.ErrInvalidInput, err)
	}
	if _, err := s.SubmitAnalysisJob(ctx, videoID, userID); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnalyzed) {
			return nil
		}
		return err
	}
	return nil
}
