package postgres

import (
	"context"

	"github.com/viralforge/analysis-service/internal/ports"
	"gorm.io/gorm"
)

type deadLetterRepository struct {
	db *gorm.DB
}

func (r *deadLetterRepository) Record(ctx context.Context, rec ports.DeadLetterRecord) error {
	row := deadLetterModel{
		JobID:     rec.JobID,
		VideoID:   rec.VideoID,
		UserID:    rec.UserID,
		Attempts:  rec.Attempts,
		Kind:      rec.Kind,
		LastError: rec.LastError,
		FailedAt:  rec.FailedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *deadLetterRepository) List(ctx context.Context, limit, offset int) ([]ports.DeadLetterRecord, error) {
	var rows []deadLetterModel
	if err := r.db.WithContext(ctx).Order("failed_at desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.DeadLetterRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.DeadLetterRecord{
			JobID: row.JobID, VideoID: row.VideoID, UserID: row.UserID,
			Attempts: row.Attempts, Kind: row.Kind, LastError: row.LastError, FailedAt: row.FailedAt,
		})
	}
	return out, nil
}
