package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/ports"
)

const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisJobDead   = "analysis.job_dead"
)

// ProcessJob executes one leased job end to end: invoke the capability under
// a timeout, validate the raw output, commit. A duplicate commit for the
// same video is absorbed as success so redelivered jobs ack cleanly.
func (s *Service) ProcessJob(ctx context.Context, job domain.Job) error {
	analyzeCtx, cancel := context.WithTimeout(ctx, s.cfg.AnalyzeTimeout)
	raw, err := s.analyzer.Analyze(analyzeCtx, job.VideoID)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a capability fault.
			return ctx.Err()
		}
		return &domain.CapabilityError{Err: err}
	}

	if err := domain.ValidateRawAnalysis(raw); err != nil {
		return err
	}

	_, err = s.Commit(ctx, job.VideoID, job.UserID, raw)
	return err
}

// Commit durably stores the validated analysis, exactly once per video. The
// unique constraint on video_id converts a duplicate insert into
// domain.ErrAlreadyAnalyzed, which Commit reports as success by returning
// the previously committed analysis id.
func (s *Service) Commit(ctx context.Context, videoID, userID uuid.UUID, raw domain.RawAnalysis) (uuid.UUID, error) {
	now := s.nowFn()
	analysis, err := s.analyses.Create(ctx, ports.CommitAnalysisParams{
		VideoID:        videoID,
		UserID:         userID,
		KeyMoments:     raw.KeyMoments,
		OverallSummary: raw.OverallSummary,
		TotalDuration:  raw.TotalDuration,
		CommittedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			existing, getErr := s.analyses.GetByVideoID(ctx, videoID)
			if getErr != nil {
				return uuid.Nil, getErr
			}
			return existing.AnalysisID, nil
		}
		return uuid.Nil, err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, analysisCacheKey(videoID))
	}
	s.enqueueOutbox(ctx, EventAnalysisCompleted, videoID.String(), analysisCompletedEvent{
		AnalysisID:  analysis.AnalysisID,
		VideoID:     videoID,
		UserID:      userID,
		MomentCount: len(analysis.KeyMoments),
		CommittedAt: now,
	})
	return analysis.AnalysisID, nil
}

// RecordDeadJob is the operator-facing surface for jobs that exhausted their
// retry budget: a dead_letters row plus an event on the outbox.
func (s *Service) RecordDeadJob(ctx context.Context, job domain.Job, kind domain.FailureKind, execErr error) error {
	now := s.nowFn()
	rec := ports.DeadLetterRecord{
		JobID:     job.ID,
		VideoID:   job.VideoID,
		UserID:    job.UserID,
		Attempts:  job.Attempt,
		Kind:      string(kind),
		LastError: execErr.Error(),
		FailedAt:  now,
	}
	if err := s.deadLetters.Record(ctx, rec); err != nil {
		return err
	}
	s.enqueueOutbox(ctx, EventAnalysisJobDead, job.VideoID.String(), jobDeadEvent{
		JobID:       job.ID,
		VideoID:     job.VideoID,
		UserID:      job.UserID,
		Attempts:    job.Attempt,
		FailureKind: string(kind),
		LastError:   execErr.Error(),
		FailedAt:    now,
	})
	return nil
}

func (s *Service) ListDeadLetters(ctx context.Context, limit, offset int) ([]ports.DeadLetterRecord, error) {
	if limit <= 0 {
		limit = s.cfg.ListPageSize
	}
	return s.deadLetters.List(ctx, limit, offset)
}

func (s *Service) enqueueOutbox(ctx context.Context, eventType, partitionKey string, payload any) {
	if s.outbox == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   s.nowFn(),
	})
}
