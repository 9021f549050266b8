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
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
	QueueBackendKafka  = "kafka"

	defaultSigningKey = "dev-signing-secret-change"
)

type Config struct {
	Environment    string
	HTTPPort       string
	StorageBackend string
	DBDSN          string
	MigrationsPath string

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration

	QueueBackend  string
	RedisAddr     string
	RedisQueueKey string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string

	TelegramToken string

	RateLimitPerMin   int
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration

	// EnvFileLoaded true, если переменные подтянуты из файла
	EnvFileLoaded bool
}

// Load читает .env (если есть) и переменные окружения
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	loaded := godotenv.Load(envFile) == nil

	p := &parser{}
	cfg := &Config{
		Environment:    getEnv("ENV", "development"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		DBDSN:          os.Getenv("DB_DSN"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		JWTIssuer:     getEnv("JWT_ISSUER", "office-hours"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", defaultSigningKey),
		AccessTTL:     p.durationEnv("ACCESS_TTL", 24*time.Hour),

		QueueBackend:  strings.ToLower(getEnv("QUEUE_BACKEND", QueueBackendMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisQueueKey: getEnv("REDIS_QUEUE_KEY", "office_hours:events"),
		KafkaBrokers:  listEnv("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "appointments"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "office-hours-notifier"),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		RateLimitPerMin:   p.intEnv("RATE_LIMIT_PER_MIN", 120),
		ReconcileInterval: p.durationEnv("RECONCILE_INTERVAL", time.Minute),
		ReconcileGrace:    p.durationEnv("RECONCILE_GRACE", 30*time.Second),

		EnvFileLoaded: loaded,
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	case QueueBackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for kafka queue")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}

	if !c.IsDevelopment() && (c.JWTSigningKey == "" || c.JWTSigningKey == defaultSigningKey) {
		return fmt.Errorf("JWT_SIGNING_KEY must be set outside development")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TTL must be positive")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative")
	}
	if c.ReconcileInterval <= 0 || c.ReconcileGrace <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL and RECONCILE_GRACE must be positive")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsesRedis нужен ли клиент Redis (очередь или общий лимитер)
func (c *Config) UsesRedis() bool {
	return c.QueueBackend == QueueBackendRedis
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

type parser struct {
	errs []error
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) durationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid duration for %s: %w", key, err))
		return fallback
	}
	return d
}

func (p *parser) intEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid int for %s: %w", key, err))
		return fallback
	}
	return n
}
