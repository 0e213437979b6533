package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/viralforge/analysis-service/internal/adapters/ai"
	cacheadapter "github.com/viralforge/analysis-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/analysis-service/internal/adapters/events"
	httpadapter "github.com/viralforge/analysis-service/internal/adapters/http"
	"github.com/viralforge/analysis-service/internal/adapters/postgres"
	queueadapter "github.com/viralforge/analysis-service/internal/adapters/queue"
	"github.com/viralforge/analysis-service/internal/adapters/security"
	"github.com/viralforge/analysis-service/internal/application"
	"github.com/viralforge/analysis-service/internal/pipeline"
	"github.com/viralforge/analysis-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	dispatcher *pipeline.Dispatcher
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	redisClient, err := queueadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	jobQueue := queueadapter.NewRedisQueue(redisClient)
	cacheStore := cacheadapter.NewRedisCache(redisClient)

	var verifier ports.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier, err = security.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			_ = redisClient.Close()
			_ = sqlDB.Close()
			return nil, err
		}
	}

	var analyzer ports.Analyzer
	if cfg.GeminiAPIKey != "" {
		analyzer, err = ai.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.VideoBaseURL)
		if err != nil {
			_ = redisClient.Close()
			_ = sqlDB.Close()
			return nil, err
		}
	}

	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:      cfg.ServiceID,
			AnalyzeTimeout:   cfg.AnalyzeTimeout,
			AnalysisCacheTTL: cfg.AnalysisCacheTTL,
			ListPageSize:     cfg.ListPageSize,
		},
		Queue:       jobQueue,
		Analyses:    repos.Analyses,
		DeadLetters: repos.DeadLetters,
		Outbox:      repos.Outbox,
		Analyzer:    analyzer,
		Cache:       cacheStore,
		Verifier:    verifier,
	})

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, err
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			application.EventAnalysisCompleted: cfg.KafkaTopicCompleted,
			application.EventAnalysisJobDead:   cfg.KafkaTopicJobDead,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{cfg.KafkaTopicVideoUploaded},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, service, cfg.ConsumerPollInterval, cfg.KafkaTopicVideoUploaded)

	dispatcher := pipeline.NewDispatcher(logger, jobQueue, service, service, pipeline.RetryPolicy{
		BaseDelay:    cfg.RetryBaseDelay,
		DelayCeiling: cfg.RetryDelayCeiling,
		MaxAttempts:  cfg.MaxJobAttempts,
	}, pipeline.DispatcherConfig{
		Concurrency:       cfg.WorkerConcurrency,
		VisibilityTimeout: cfg.VisibilityTimeout,
		ReapInterval:      cfg.ReapInterval,
		IdleBackoffMax:    cfg.IdleBackoffMax,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		dispatcher: dispatcher,
		outbox:     outbox,
		consumer:   consumer,
		cleanupFn: func(ctx context.Context) {
			for _, closer := range closers {
				_ = closer.Close()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	if r.cfg.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	if r.cfg.GeminiAPIKey == "" {
		return fmt.Errorf("missing GEMINI_API_KEY")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		if err := r.dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		r.cleanupFn(context.Background())
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}
