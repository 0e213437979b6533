package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/analysis-service/internal/domain"
)

// Analyzer is the external analysis capability. Invocations may take seconds
// to minutes; callers bound them with a context deadline. The output is raw:
// it has not been validated and must not be stored as-is.
type Analyzer interface {
	Analyze(ctx context.Context, videoID uuid.UUID) (domain.RawAnalysis, error)
}
