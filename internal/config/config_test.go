package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile путь к несуществующему файлу, чтобы не подхватить .env разработчика
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, QueueBackendMemory, cfg.QueueBackend)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.ReconcileGrace)
	assert.Equal(t, "appointments", cfg.KafkaTopic)
	assert.False(t, cfg.EnvFileLoaded)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DB_DSN", "")

	_, err := Load(noEnvFile(t))
	assert.ErrorContains(t, err, "DB_DSN")
}

func TestLoadRejectsDefaultKeyInProduction(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := Load(noEnvFile(t))
	assert.ErrorContains(t, err, "JWT_SIGNING_KEY")

	t.Setenv("JWT_SIGNING_KEY", "real-secret")
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadKafkaBrokers(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(noEnvFile(t))
	assert.ErrorContains(t, err, "KAFKA_BROKERS")

	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("RECONCILE_GRACE", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")

	_, err := Load(noEnvFile(t))
	require.Error(t, err)
	assert.ErrorContains(t, err, "RECONCILE_GRACE")
	assert.ErrorContains(t, err, "RATE_LIMIT_PER_MIN")
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := Load(noEnvFile(t))
	assert.ErrorContains(t, err, "STORAGE_BACKEND")
}
