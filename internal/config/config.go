package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Backend names accepted by QUEUE_BACKEND, BLOB_BACKEND and CACHE_TYPE.
const (
	BackendAzure  = "azure"
	BackendKafka  = "kafka"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config holds all application configuration values. It is built once at
// process start and passed to constructors.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// FunctionsEnvironment is the Functions host's name for Environment,
	// used when ENVIRONMENT is unset.
	FunctionsEnvironment string `envconfig:"AZURE_FUNCTIONS_ENVIRONMENT"`

	Webhook   WebhookConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Catalog   CatalogConfig
	Kafka     KafkaConfig
	Cache     CacheConfig
	Worker    WorkerConfig
	Telemetry TelemetryConfig
}

// WebhookConfig holds intake settings.
type WebhookConfig struct {
	Secret       string `envconfig:"WEBHOOK_SECRET" required:"true"`
	MaxBodyBytes int64  `envconfig:"WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

// StorageConfig holds queue and blob settings.
type StorageConfig struct {
	// ConnectionString is the Azure Storage account connection string.
	ConnectionString string `envconfig:"AzureWebJobsStorage"`

	QueueBackend string `envconfig:"QUEUE_BACKEND" default:"azure"`
	BlobBackend  string `envconfig:"BLOB_BACKEND" default:"azure"`

	RetrievalQueue       string `envconfig:"BARCODE_RETRIEVAL_QUEUE"`
	LegacyRetrievalQueue string `envconfig:"FETCH_ITEM_QUEUE"`
	ValidationQueue      string `envconfig:"ITEM_VALIDATION_QUEUE" default:"item-validation-queue"`
	ValidationContainer  string `envconfig:"ITEM_VALIDATION_CONTAINER" default:"item-validation-container"`

	// Base64Messages encodes queue payloads the way the Functions host
	// expects them.
	Base64Messages bool `envconfig:"QUEUE_MESSAGE_BASE64" default:"true"`
}

// DatabaseConfig holds the institution directory settings.
type DatabaseConfig struct {
	Driver       string `envconfig:"DATABASE_DRIVER" default:"mysql"`
	URL          string `envconfig:"DATABASE_URL"`
	LegacyURL    string `envconfig:"SQLALCHEMY_CONNECTION_STRING"`
	MaxOpenConns int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"10"`
}

// CatalogConfig holds catalog API client settings.
type CatalogConfig struct {
	Region  string  `envconfig:"ALMA_API_REGION" default:"NA"`
	BaseURL string  `envconfig:"ALMA_API_BASE_URL"`
	Timeout Seconds `envconfig:"API_CLIENT_TIMEOUT" default:"90"`
}

// KafkaConfig is used when QUEUE_BACKEND=kafka.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"alma-item-checks"`
}

// CacheConfig holds the institution cache settings.
type CacheConfig struct {
	Type          string        `envconfig:"CACHE_TYPE" default:"none"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
}

// WorkerConfig holds Queue A consumer settings.
type WorkerConfig struct {
	PollInterval      time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"1s"`
	BatchSize         int           `envconfig:"WORKER_BATCH_SIZE" default:"16"`
	Concurrency       int           `envconfig:"WORKER_CONCURRENCY" default:"8"`
	MaxDequeueCount   int64         `envconfig:"WORKER_MAX_DEQUEUE_COUNT" default:"5"`
	VisibilityTimeout time.Duration `envconfig:"WORKER_VISIBILITY_TIMEOUT" default:"5m"`
}

// TelemetryConfig holds tracing settings. Spans are exported over OTLP/HTTP
// when an endpoint is set and discarded otherwise.
type TelemetryConfig struct {
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `envconfig:"OTEL_SERVICE_NAME" default:"alma-item-checks-webhook"`
	SampleRatio  float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"1"`
}

// Seconds is a duration that also accepts a bare number of seconds.
type Seconds time.Duration

// Decode implements envconfig.Decoder.
func (s *Seconds) Decode(value string) error {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		*s = Seconds(time.Duration(n * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*s = Seconds(d)
	return nil
}

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// New loads a .env file when present, reads the environment and validates
// the result.
func New() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Environment == "" {
		cfg.Environment = cfg.FunctionsEnvironment
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	if cfg.Storage.RetrievalQueue == "" {
		cfg.Storage.RetrievalQueue = cfg.Storage.LegacyRetrievalQueue
	}
	if cfg.Storage.RetrievalQueue == "" {
		cfg.Storage.RetrievalQueue = "barcode-retrieval-queue"
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.LegacyURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("missing required environment variable: DATABASE_URL or SQLALCHEMY_CONNECTION_STRING")
	}

	switch c.Storage.QueueBackend {
	case BackendAzure, BackendKafka, BackendMemory:
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND %q", c.Storage.QueueBackend)
	}

	switch c.Storage.BlobBackend {
	case BackendAzure, BackendMemory:
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", c.Storage.BlobBackend)
	}

	if (c.Storage.QueueBackend == BackendAzure || c.Storage.BlobBackend == BackendAzure) && c.Storage.ConnectionString == "" {
		return fmt.Errorf("missing required environment variable: AzureWebJobsStorage")
	}

	switch c.Cache.Type {
	case BackendNone, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1")
	}

	return nil
}

// IsDevelopment reports whether signature verification may be bypassed.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// IsLocal reports whether human-readable logging should be used.
func (c *Config) IsLocal() bool {
	return c.IsDevelopment() || strings.EqualFold(c.Environment, "local")
}

// DSN returns the database/sql driver name and data source name. URL-style
// connection strings (including SQLAlchemy's mysql+pymysql:// and
// sqlite:/// forms) are converted; anything else is passed through.
func (d *DatabaseConfig) DSN() (string, string, error) {
	raw := strings.TrimSpace(d.URL)
	driver := d.Driver

	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite", sqlitePath(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "mysql://"), strings.HasPrefix(raw, "mysql+"):
		dsn, err := mysqlDSN(raw)
		return "mysql", dsn, err
	}

	if driver == "sqlite" {
		return driver, sqlitePath(raw), nil
	}
	return driver, raw, nil
}

func sqlitePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == ":memory:" {
		return ":memory:"
	}
	return p
}

func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing database url: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}

	userinfo := ""
	if u.User != nil {
		userinfo = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			userinfo += ":" + pw
		}
		userinfo += "@"
	}

	q := u.Query()
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	// SQLAlchemy-only options.
	q.Del("charset")
	q.Del("ssl_ca")

	return fmt.Sprintf("%stcp(%s)%s?%s", userinfo, host, u.Path, q.Encode()), nil
}

// RedisEnabled reports whether the institution cache uses Redis.
func (c *CacheConfig) RedisEnabled() bool {
	return c.Type == BackendRedis
}
