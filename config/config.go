package config

import (
	"errors"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/internal/repositories/fieldweight"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/monitor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"clover-api" validate:"required"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3004" validate:"gt=0,lte=65535"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	ShutdownTimeoutSeconds        int    `env:"HTTP_SERVER_SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"gt=0"`

	// Where customers and field weights live; memory is for local runs and demos
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres" validate:"oneof=postgres memory"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStart        bool          `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Redis (monitor lock)
	RedisEnabled    bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost       string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort       int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword   string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB         int    `env:"REDIS_DB" env-default:"0"`
	RedisLockPrefix string `env:"REDIS_LOCK_PREFIX" env-default:"clover:lock:"`

	// Kafka producer (customer change notifications)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"customer-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1" validate:"oneof=-1 0 1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`

	// Graph Database (merge lineage)
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:""`

	// Tracing
	TracingExporter string            `env:"TRACING_EXPORTER" env-default:"none" validate:"oneof=none log otlp"`
	OTLPEndpoint    string            `env:"OTLP_ENDPOINT" env-default:""`
	OTLPProtocol    string            `env:"OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OTLPInsecure    bool              `env:"OTLP_INSECURE" env-default:"true"`
	OTLPHeaders     map[string]string `env:"OTLP_HEADERS"`
	OTLPTimeout     time.Duration     `env:"OTLP_TIMEOUT" env-default:"10s"`

	// Duplicate monitor
	MonitorEnabled  bool          `env:"MONITOR_ENABLED" env-default:"false"`
	MonitorSchedule string        `env:"MONITOR_SCHEDULE" env-default:"@every 15m"`
	MonitorTimeout  time.Duration `env:"MONITOR_TIMEOUT" env-default:"5m"`
	MonitorLockTTL  time.Duration `env:"MONITOR_LOCK_TTL" env-default:"10m"`

	// Field-weight defaults for the memory store
	DedupeScoreThreshold      int  `env:"DEDUPE_SCORE_THRESHOLD" env-default:"60" validate:"gte=0,lte=100"`
	DedupeDefaultWithinDays   int  `env:"DEDUPE_DEFAULT_WITHIN_DAYS" env-default:"30" validate:"gte=0,lte=365"`
	DedupeIncludeFuzzyDefault bool `env:"DEDUPE_INCLUDE_FUZZY_DEFAULT" env-default:"false"`
}

// Load reads an optional .env file, then the environment, and validates the result
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             c.DatabaseMigrationVersion,
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Producer() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaOutputTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) Graph() graph.Config {
	return graph.Config{
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
		Database: c.GraphDBName,
	}
}

func (c *Config) OTLP() exporters.OTLPConfig {
	return exporters.OTLPConfig{
		Endpoint: c.OTLPEndpoint,
		Protocol: c.OTLPProtocol,
		Insecure: c.OTLPInsecure,
		Headers:  c.OTLPHeaders,
		Timeout:  c.OTLPTimeout,
	}
}

func (c *Config) Monitor() monitor.Config {
	return monitor.Config{
		Schedule: c.MonitorSchedule,
		Timeout:  c.MonitorTimeout,
		LockTTL:  c.MonitorLockTTL,
	}
}

// DedupeDefaults is the seeded field-weight configuration with the env overrides applied
func (c *Config) DedupeDefaults() models.DedupeConfig {
	cfg := fieldweight.DefaultConfig()
	cfg.ScoreThreshold = c.DedupeScoreThreshold
	cfg.DefaultWithinDays = c.DedupeDefaultWithinDays
	cfg.IncludeFuzzyDefault = c.DedupeIncludeFuzzyDefault
	return cfg
}
