package postgres

import (
	"github.com/viralforge/analysis-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Analyses    ports.AnalysisRepository
	DeadLetters ports.DeadLetterRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Analyses:    &analysisRepository{db: db},
		DeadLetters: &deadLetterRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}
