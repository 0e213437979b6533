package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
)

func analysisCacheKey(videoID uuid.UUID) string {
	return "analysis:video:" + videoID.String()
}

func (s *Service) GetAnalysisByVideo(ctx context.Context, videoID uuid.UUID) (AnalysisResponse, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, analysisCacheKey(videoID)); err == nil && raw != "" {
			var cached AnalysisResponse
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	analysis, err := s.analyses.GetByVideoID(ctx, videoID)
	if err != nil {
		return AnalysisResponse{}, err
	}
	resp := toAnalysisResponse(analysis)
	if s.cache != nil {
		if raw, jsonErr := json.Marshal(resp); jsonErr == nil {
			_ = s.cache.Set(ctx, analysisCacheKey(videoID), string(raw), s.cfg.AnalysisCacheTTL)
		}
	}
	return resp, nil
}

func (s *Service) ListRecentAnalyses(ctx context.Context, userID uuid.UUID, page int) ([]AnalysisResponse, error) {
	if page < 1 {
		page = 1
	}
	limit := s.cfg.ListPageSize
	offset := (page - 1) * limit
	analyses, err := s.analyses.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]AnalysisResponse, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, toAnalysisResponse(a))
	}
	return out, nil
}

func (s *Service) TopMoments(ctx context.Context, videoID uuid.UUID, limit int) ([]domain.KeyMoment, error) {
	analysis, err := s.analyses.GetByVideoID(ctx, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return analysis.TopMoments(limit), nil
}
