// Package config loads server configuration from the environment, optionally
// preloaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAddr            = ":8080"
	DefaultEventsTopic     = "tracking.events"
	DefaultAuditTopic      = "caskhouse.audit.events"
	DefaultOutboxRetention = 7 * 24 * time.Hour
	DefaultMongoDatabase   = "caskhouse"
	DefaultCaptureTTL      = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultRequestTimeout  = 30 * time.Second
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	TrustedProxies string
	// AdminJWTSecret signs and verifies operator tokens. Admin routes are
	// not mounted when it is empty.
	AdminJWTSecret string
}

type DatabaseConfig struct {
	URL     string
	Migrate bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers     string
	EventsTopic string
	// AuditTopic receives audit events through the Postgres outbox.
	AuditTopic      string
	OutboxRetention time.Duration
	Acks            string
	Retries         int
}

type MongoConfig struct {
	URI      string
	Database string
}

// Tracking holds retention settings for visitor data.
type Tracking struct {
	CaptureTTL      time.Duration
	CleanupInterval time.Duration
}

type Config struct {
	Server         Server
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Mongo          MongoConfig
	Tracking       Tracking
	SiteConfigSeed string
}

// Load reads envFiles (missing files are ignored; existing variables win)
// and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:           getenv("CASKHOUSE_ADDR", DefaultAddr),
			Environment:    getenv("ENVIRONMENT", "development"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			RequestTimeout: duration("REQUEST_TIMEOUT", DefaultRequestTimeout),
			TrustedProxies: os.Getenv("TRUSTED_PROXIES"),
			AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Migrate: strings.EqualFold(os.Getenv("DB_MIGRATE"), "true"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			EventsTopic:     getenv("KAFKA_EVENTS_TOPIC", DefaultEventsTopic),
			AuditTopic:      getenv("KAFKA_AUDIT_TOPIC", DefaultAuditTopic),
			OutboxRetention: duration("OUTBOX_RETENTION", DefaultOutboxRetention),
			Acks:            getenv("KAFKA_ACKS", "all"),
			Retries:         integer("KAFKA_RETRIES", 3),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getenv("MONGO_DATABASE", DefaultMongoDatabase),
		},
		Tracking: Tracking{
			CaptureTTL:      duration("CAPTURE_TTL", DefaultCaptureTTL),
			CleanupInterval: duration("CLEANUP_INTERVAL", DefaultCleanupInterval),
		},
		SiteConfigSeed: os.Getenv("SITE_CONFIG_SEED"),
	}

	if cfg.Server.Environment == "production" && cfg.Server.AdminJWTSecret != "" && len(cfg.Server.AdminJWTSecret) < 32 {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET must be at least 32 bytes in production"))
	}

	return cfg, errors.Join(errs...)
}

// IsProduction reports whether the server runs with production settings.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
