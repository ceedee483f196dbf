package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Outbox   OutboxConfig
	Push     PushConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver        string
	RunMigrations bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig locates the embedded database file.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis;
// locks, push and rate limiting then fall back to in-process variants.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// EngineConfig tunes the lifecycle engine.
type EngineConfig struct {
	OperationTimeoutMS int
	RateLimitPerDay    int
	LockTTLMS          int
	ListBatchSize      int
}

// OutboxConfig tunes the notification relay.
type OutboxConfig struct {
	PollIntervalMS    int
	BatchSize         int
	BaseBackoffMS     int
	MaxBackoffSeconds int
}

// PushConfig tunes best-effort delivery.
type PushConfig struct {
	MaxAttempts              int
	StreamHeartbeatSeconds   int
	SubscriberBufferMessages int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "issue-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			RunMigrations: getEnvAsBool("STORE_RUN_MIGRATIONS", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "issue-engine.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_JWT_ISSUER", "issue-engine"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Engine: EngineConfig{
			OperationTimeoutMS: getEnvAsInt("ENGINE_OPERATION_TIMEOUT_MS", 5000),
			RateLimitPerDay:    getEnvAsInt("ENGINE_RATE_LIMIT_PER_DAY", 20),
			LockTTLMS:          getEnvAsInt("ENGINE_LOCK_TTL_MS", 10000),
			ListBatchSize:      getEnvAsInt("ENGINE_LIST_BATCH_SIZE", 500),
		},
		Outbox: OutboxConfig{
			PollIntervalMS:    getEnvAsInt("OUTBOX_POLL_INTERVAL_MS", 1000),
			BatchSize:         getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
			BaseBackoffMS:     getEnvAsInt("OUTBOX_BASE_BACKOFF_MS", 500),
			MaxBackoffSeconds: getEnvAsInt("OUTBOX_MAX_BACKOFF_SECONDS", 300),
		},
		Push: PushConfig{
			MaxAttempts:              getEnvAsInt("PUSH_MAX_ATTEMPTS", 5),
			StreamHeartbeatSeconds:   getEnvAsInt("PUSH_STREAM_HEARTBEAT_SECONDS", 25),
			SubscriberBufferMessages: getEnvAsInt("PUSH_SUBSCRIBER_BUFFER", 32),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "dev-secret" {
		return fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}
	if c.Engine.OperationTimeoutMS <= 0 {
		return fmt.Errorf("ENGINE_OPERATION_TIMEOUT_MS must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of minted tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// OperationTimeout bounds every lifecycle mutation.
func (e EngineConfig) OperationTimeout() time.Duration {
	return time.Duration(e.OperationTimeoutMS) * time.Millisecond
}

// LockTTL bounds how long a distributed issue lock may be held.
func (e EngineConfig) LockTTL() time.Duration {
	return time.Duration(e.LockTTLMS) * time.Millisecond
}

// PollInterval is the relay's idle wake-up period.
func (o OutboxConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// BaseBackoff is the first retry delay for a failed outbox entry.
func (o OutboxConfig) BaseBackoff() time.Duration {
	return time.Duration(o.BaseBackoffMS) * time.Millisecond
}

// MaxBackoff caps the retry delay.
func (o OutboxConfig) MaxBackoff() time.Duration {
	return time.Duration(o.MaxBackoffSeconds) * time.Second
}

// StreamHeartbeat is how often an idle SSE stream sends a comment line.
func (p PushConfig) StreamHeartbeat() time.Duration {
	return time.Duration(p.StreamHeartbeatSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
