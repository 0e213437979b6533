package application

import (
	"time"

	"github.com/viralforge/analysis-service/internal/ports"
)

type Config struct {
	ServiceName      string
	AnalyzeTimeout   time.Duration
	AnalysisCacheTTL time.Duration
	ListPageSize     int
}

type Service struct {
	cfg         Config
	queue       ports.JobQueue
	analyses    ports.AnalysisRepository
	deadLetters ports.DeadLetterRepository
	outbox      ports.OutboxRepository
	analyzer    ports.Analyzer
	cache       ports.Cache
	verifier    ports.TokenVerifier
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Queue       ports.JobQueue
	Analyses    ports.AnalysisRepository
	DeadLetters ports.DeadLetterRepository
	Outbox      ports.OutboxRepository
	Analyzer    ports.Analyzer
	Cache       ports.Cache
	Verifier    ports.TokenVerifier
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "analysis-service"
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = 4 * time.Minute
	}
	if cfg.AnalysisCacheTTL <= 0 {
		cfg.AnalysisCacheTTL = 5 * time.Minute
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = 20
	}

	return &Service{
		cfg:         cfg,
		queue:       deps.Queue,
		analyses:    deps.Analyses,
		deadLetters: deps.DeadLetters,
		outbox:      deps.Outbox,
		analyzer:    deps.Analyzer,
		cache:       deps.Cache,
		verifier:    deps.Verifier,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}
