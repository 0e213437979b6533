package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns int32

	KafkaConsumerGroup      string
	KafkaTopicVideoUploaded string
	KafkaTopicCompleted     string
	KafkaTopicJobDead       string

	GeminiAPIKey string
	GeminiModel  string
	VideoBaseURL string
	JWTSecret    string

	WorkerConcurrency int
	MaxJobAttempts    int
	RetryBaseDelay    time.Duration
	RetryDelayCeiling time.Duration
	VisibilityTimeout time.Duration
	ReapInterval      time.Duration
	IdleBackoffMax    time.Duration
	AnalyzeTimeout    time.Duration

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration
	AnalysisCacheTTL     time.Duration
	ListPageSize         int
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL             string   `yaml:"postgres_url"`
		RedisURL                string   `yaml:"redis_url"`
		KafkaBrokers            []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup      string   `yaml:"kafka_consumer_group"`
		KafkaTopicVideoUploaded string   `yaml:"kafka_topic_video_uploaded"`
		KafkaTopicCompleted     string   `yaml:"kafka_topic_analysis_completed"`
		KafkaTopicJobDead       string   `yaml:"kafka_topic_analysis_job_dead"`
		GeminiModel             string   `yaml:"gemini_model"`
		VideoBaseURL            string   `yaml:"video_base_url"`
	} `yaml:"dependencies"`
	Pipeline struct {
		WorkerConcurrency      int `yaml:"worker_concurrency"`
		MaxJobAttempts         int `yaml:"max_job_attempts"`
		RetryBaseSeconds       int `yaml:"retry_base_seconds"`
		RetryCeilingSeconds    int `yaml:"retry_ceiling_seconds"`
		VisibilitySeconds      int `yaml:"visibility_timeout_seconds"`
		ReapIntervalSeconds    int `yaml:"reap_interval_seconds"`
		AnalyzeTimeoutSeconds  int `yaml:"analyze_timeout_seconds"`
		IdleBackoffMaxSeconds  int `yaml:"idle_backoff_max_seconds"`
		OutboxPollSeconds      int `yaml:"outbox_poll_seconds"`
		OutboxBatchSize        int `yaml:"outbox_batch_size"`
		ConsumerPollSeconds    int `yaml:"consumer_poll_seconds"`
		AnalysisCacheSeconds   int `yaml:"analysis_cache_seconds"`
		ListPageSize           int `yaml:"list_page_size"`
	} `yaml:"pipeline"`
}

// LoadConfig layers yaml file values over defaults and env values over both.
// Startup fails on missing required settings rather than degrading silently.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceID:               "analysis-service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		MaxDBConns:              20,
		KafkaConsumerGroup:      "analysis-service",
		KafkaTopicVideoUploaded: "video.uploaded",
		KafkaTopicCompleted:     "analysis.completed",
		KafkaTopicJobDead:       "analysis.job_dead",
		GeminiModel:             "gemini-2.0-flash",
		WorkerConcurrency:       4,
		MaxJobAttempts:          5,
		RetryBaseDelay:          15 * time.Second,
		RetryDelayCeiling:       10 * time.Minute,
		VisibilityTimeout:       5 * time.Minute,
		ReapInterval:            30 * time.Second,
		IdleBackoffMax:          5 * time.Second,
		AnalyzeTimeout:          4 * time.Minute,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		ConsumerPollInterval:    2 * time.Second,
		AnalysisCacheTTL:        5 * time.Minute,
		ListPageSize:            20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicVideoUploaded != "" {
			cfg.KafkaTopicVideoUploaded = f.Dependencies.KafkaTopicVideoUploaded
		}
		if f.Dependencies.KafkaTopicCompleted != "" {
			cfg.KafkaTopicCompleted = f.Dependencies.KafkaTopicCompleted
		}
		if f.Dependencies.KafkaTopicJobDead != "" {
			cfg.KafkaTopicJobDead = f.Dependencies.KafkaTopicJobDead
		}
		if f.Dependencies.GeminiModel != "" {
			cfg.GeminiModel = f.Dependencies.GeminiModel
		}
		if f.Dependencies.VideoBaseURL != "" {
			cfg.VideoBaseURL = f.Dependencies.VideoBaseURL
		}
		if f.Pipeline.WorkerConcurrency > 0 {
			cfg.WorkerConcurrency = f.Pipeline.WorkerConcurrency
		}
		if f.Pipeline.MaxJobAttempts > 0 {
			cfg.MaxJobAttempts = f.Pipeline.MaxJobAttempts
		}
		if f.Pipeline.RetryBaseSeconds > 0 {
			cfg.RetryBaseDelay = time.Duration(f.Pipeline.RetryBaseSeconds) * time.Second
		}
		if f.Pipeline.RetryCeilingSeconds > 0 {
			cfg.RetryDelayCeiling = time.Duration(f.Pipeline.RetryCeilingSeconds) * time.Second
		}
		if f.Pipeline.VisibilitySeconds > 0 {
			cfg.VisibilityTimeout = time.Duration(f.Pipeline.VisibilitySeconds) * time.Second
		}
		if f.Pipeline.ReapIntervalSeconds > 0 {
			cfg.ReapInterval = time.Duration(f.Pipeline.ReapIntervalSeconds) * time.Second
		}
		if f.Pipeline.AnalyzeTimeoutSeconds > 0 {
			cfg.AnalyzeTimeout = time.Duration(f.Pipeline.AnalyzeTimeoutSeconds) * time.Second
		}
		if f.Pipeline.IdleBackoffMaxSeconds > 0 {
			cfg.IdleBackoffMax = time.Duration(f.Pipeline.IdleBackoffMaxSeconds) * time.Second
		}
		if f.Pipeline.OutboxPollSeconds > 0 {
			cfg.OutboxPollInterval = time.Duration(f.Pipeline.OutboxPollSeconds) * time.Second
		}
		if f.Pipeline.OutboxBatchSize > 0 {
			cfg.OutboxBatchSize = f.Pipeline.OutboxBatchSize
		}
		if f.Pipeline.ConsumerPollSeconds > 0 {
			cfg.ConsumerPollInterval = time.Duration(f.Pipeline.ConsumerPollSeconds) * time.Second
		}
		if f.Pipeline.AnalysisCacheSeconds > 0 {
			cfg.AnalysisCacheTTL = time.Duration(f.Pipeline.AnalysisCacheSeconds) * time.Second
		}
		if f.Pipeline.ListPageSize > 0 {
			cfg.ListPageSize = f.Pipeline.ListPageSize
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicVideoUploaded = envOrDefault("KAFKA_TOPIC_VIDEO_UPLOADED", cfg.KafkaTopicVideoUploaded)
	cfg.KafkaTopicCompleted = envOrDefault("KAFKA_TOPIC_ANALYSIS_COMPLETED", cfg.KafkaTopicCompleted)
	cfg.KafkaTopicJobDead = envOrDefault("KAFKA_TOPIC_ANALYSIS_JOB_DEAD", cfg.KafkaTopicJobDead)
	cfg.GeminiAPIKey = envOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.VideoBaseURL = envOrDefault("VIDEO_BASE_URL", cfg.VideoBaseURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.WorkerConcurrency = envInt("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.MaxJobAttempts = envInt("MAX_JOB_ATTEMPTS", cfg.MaxJobAttempts)
	cfg.RetryBaseDelay = envSeconds("RETRY_BASE_SECONDS", cfg.RetryBaseDelay)
	cfg.RetryDelayCeiling = envSeconds("RETRY_CEILING_SECONDS", cfg.RetryDelayCeiling)
	cfg.VisibilityTimeout = envSeconds("VISIBILITY_TIMEOUT_SECONDS", cfg.VisibilityTimeout)
	cfg.ReapInterval = envSeconds("REAP_INTERVAL_SECONDS", cfg.ReapInterval)
	cfg.IdleBackoffMax = envSeconds("IDLE_BACKOFF_MAX_SECONDS", cfg.IdleBackoffMax)
	cfg.AnalyzeTimeout = envSeconds("ANALYZE_TIMEOUT_SECONDS", cfg.AnalyzeTimeout)
	cfg.OutboxPollInterval = envSeconds("OUTBOX_POLL_SECONDS", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = envSeconds("CONSUMER_POLL_SECONDS", cfg.ConsumerPollInterval)
	cfg.AnalysisCacheTTL = envSeconds("ANALYSIS_CACHE_SECONDS", cfg.AnalysisCacheTTL)
	cfg.ListPageSize = envInt("LIST_PAGE_SIZE", cfg.ListPageSize)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.AnalyzeTimeout >= cfg.VisibilityTimeout {
		return Config{}, fmt.Errorf("ANALYZE_TIMEOUT_SECONDS must be shorter than VISIBILITY_TIMEOUT_SECONDS")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
