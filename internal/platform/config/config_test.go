package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CASKHOUSE_ADDR", "ENVIRONMENT", "LOG_LEVEL", "DATABASE_URL", "DB_MIGRATE",
	"REDIS_URL", "KAFKA_BROKERS", "KAFKA_EVENTS_TOPIC", "KAFKA_AUDIT_TOPIC", "OUTBOX_RETENTION", "MONGO_URI", "MONGO_DATABASE",
	"ADMIN_JWT_SECRET", "CAPTURE_TTL", "CLEANUP_INTERVAL", "SITE_CONFIG_SEED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, DefaultEventsTopic, cfg.Kafka.EventsTopic)
	assert.Equal(t, DefaultAuditTopic, cfg.Kafka.AuditTopic)
	assert.Equal(t, DefaultOutboxRetention, cfg.Kafka.OutboxRetention)
	assert.Equal(t, DefaultMongoDatabase, cfg.Mongo.Database)
	assert.Equal(t, DefaultCaptureTTL, cfg.Tracking.CaptureTTL)
	assert.Equal(t, DefaultCleanupInterval, cfg.Tracking.CleanupInterval)
	assert.False(t, cfg.Database.Migrate)
	assert.False(t, cfg.Server.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CASKHOUSE_ADDR", ":9090")
	t.Setenv("DB_MIGRATE", "TRUE")
	t.Setenv("CAPTURE_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, 2*time.Hour, cfg.Tracking.CaptureTTL)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTURE_TTL", "a day")
	t.Setenv("CLEANUP_INTERVAL", "-1m")

	cfg, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPTURE_TTL")
	assert.Contains(t, err.Error(), "CLEANUP_INTERVAL")
	assert.Equal(t, DefaultCaptureTTL, cfg.Tracking.CaptureTTL)
}

func TestFromEnvShortProductionSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ADMIN_JWT_SECRET", "short")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "ADMIN_JWT_SECRET")
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nMONGO_DATABASE=casks_test\n"), 0o600))
	// godotenv only fills variables that are unset; t.Setenv("", ...) leaves them set to "".
	require.NoError(t, os.Unsetenv("MONGO_DATABASE"))
	t.Cleanup(func() { _ = os.Unsetenv("MONGO_DATABASE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, "casks_test", cfg.Mongo.Database)
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
