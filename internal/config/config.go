package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	MinIO     MinIOConfig
	Extractor ExtractorConfig
	Proxy     ProxyConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	Concurrency     int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	GracefulTimeout time.Duration `envconfig:"WORKER_GRACEFUL_TIMEOUT" default:"30s"`
	TempDir         string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/transcriptapi"`
	ReaperInterval  time.Duration `envconfig:"WORKER_REAPER_INTERVAL" default:"30s"`
	ReaperGrace     time.Duration `envconfig:"WORKER_REAPER_GRACE" default:"15s"`
	SweepInterval   time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"1h"`
}

type DatabaseConfig struct {
	Host          string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port          int           `envconfig:"POSTGRES_PORT" default:"5432"`
	User          string        `envconfig:"POSTGRES_USER" default:"transcriptapi"`
	Password      string        `envconfig:"POSTGRES_PASSWORD" default:"transcriptapi"`
	DBName        string        `envconfig:"POSTGRES_DB" default:"transcriptapi"`
	SSLMode       string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	RetentionDays int           `envconfig:"C4_RETENTION_DAYS" default:"30"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RetentionWindow returns the Tier-3 retention window as a duration.
func (c DatabaseConfig) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"transcriptapi"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"transcriptapi"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type MinIOConfig struct {
	Endpoint      string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey     string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey     string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket        string `envconfig:"MINIO_BUCKET" default:"transcript-raw"`
	UseSSL        bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	ArchiveRawEnabled bool `envconfig:"RAW_ARCHIVE_ENABLED" default:"false"`
}

type ExtractorConfig struct {
	Timeout      time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"30s"`
	MaxAttempts  int           `envconfig:"EXTRACTION_MAX_ATTEMPTS" default:"4"`
	BackoffBase  time.Duration `envconfig:"BACKOFF_BASE" default:"1s"`
	BackoffCap   time.Duration `envconfig:"BACKOFF_CAP" default:"8s"`
	InnertubeKey string        `envconfig:"INNERTUBE_API_KEY" default:""`
}

type ProxyConfig struct {
	PoolPath        string        `envconfig:"PROXY_POOL_PATH" default:""`
	MaxFailures     int           `envconfig:"PROXY_MAX_FAILURES" default:"3"`
	CooldownSeconds time.Duration `envconfig:"PROXY_COOLDOWN_SECONDS" default:"60s"`
}

type WebhookConfig struct {
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
	Secret     string        `envconfig:"WEBHOOK_SECRET" default:""`
	Workers    int           `envconfig:"WEBHOOK_DISPATCH_WORKERS" default:"4"`
}

type RateLimitConfig struct {
	PerMinute int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	Burst     int  `envconfig:"RATE_LIMIT_BURST" default:"5"`
	FailOpen  bool `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"false"`
}

type CacheConfig struct {
	C2Capacity  int           `envconfig:"C2_CAPACITY" default:"10000"`
	C2TTL       time.Duration `envconfig:"C2_TTL_SECONDS" default:"60s"`
	C3TTL       time.Duration `envconfig:"C3_TTL_SECONDS" default:"600s"`
	LockMargin  time.Duration `envconfig:"LOCK_MARGIN" default:"5s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
