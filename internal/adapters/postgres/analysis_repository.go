package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
	"github.com/viralforge/analysis-service/internal/ports"
	"gorm.io/gorm"
)

type analysisRepository struct {
	db *gorm.DB
}

func (r *analysisRepository) Create(ctx context.Context, params ports.CommitAnalysisParams) (domain.Analysis, error) {
	moments, err := json.Marshal(params.KeyMoments)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("marshal key moments: %w", err)
	}
	rec := analysisModel{
		VideoID:        params.VideoID,
		UserID:         params.UserID,
		KeyMoments:     moments,
		OverallSummary: params.OverallSummary,
		TotalDuration:  params.TotalDuration,
		CreatedAt:      params.CommittedAt,
		UpdatedAt:      params.CommittedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return domain.Analysis{}, domain.ErrAlreadyAnalyzed
		}
		return domain.Analysis{}, err
	}
	return toDomainAnalysis(rec)
}

func (r *analysisRepository) GetByVideoID(ctx context.Context, videoID uuid.UUID) (domain.Analysis, error) {
	var rec analysisModel
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Analysis{}, domain.ErrNotFound
		}
		return domain.Analysis{}, err
	}
	return toDomainAnalysis(rec)
}

func (r *analysisRepository) ExistsForVideo(ctx context.Context, videoID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&analysisModel{}).Where("video_id = ?", videoID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *analysisRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Analysis, error) {
	var rows []analysisModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Analysis, 0, len(rows))
	for _, row := range rows {
		analysis, err := toDomainAnalysis(row)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, nil
}
