package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/viralforge/analysis-service/internal/domain"
)

func toDomainAnalysis(m analysisModel) (domain.Analysis, error) {
	var moments []domain.KeyMoment
	if err := json.Unmarshal(m.KeyMoments, &moments); err != nil {
		return domain.Analysis{}, fmt.Errorf("unmarshal key moments for analysis %s: %w", m.AnalysisID, err)
	}
	return domain.Analysis{
		AnalysisID: m.AnalysisID, VideoID: m.VideoID, UserID: m.UserID,
		KeyMoments: moments, OverallSummary: m.OverallSummary, TotalDuration: m.TotalDuration,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}, nil
}
