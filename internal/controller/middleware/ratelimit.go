package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter решает, пропускать ли очередной запрос с ключом key
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit ограничивает запросы по IP клиента. Ошибка лимитера запрос не блокирует
func RateLimit(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		allowed, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.String("client_ip", ip), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": "RATE_LIMITED", "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// TokenBucket лимитер в памяти процесса, по ведру на ключ
type TokenBucket struct {
	capacity int
	rate     int
	idle     time.Duration
	mu       sync.Mutex
	state    map[string]*bucket
	swept    time.Time
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket создаёт лимитер ёмкостью capacity, пополняемый perMinute токенами в минуту
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	// за idle пустое ведро наполняется полностью
	idle := time.Minute
	if perMinute > 0 {
		if full := time.Duration(capacity) * time.Minute / time.Duration(perMinute); full > idle {
			idle = full
		}
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		idle:     idle,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, nil
	}

	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweepLocked удаляет вёдра, которые не трогали дольше idle. Не чаще раза за idle
func (l *TokenBucket) sweepLocked(now time.Time) {
	if l.swept.IsZero() {
		l.swept = now
		return
	}
	if now.Sub(l.swept) < l.idle {
		return
	}
	for key, b := range l.state {
		if now.Sub(b.last) >= l.idle {
			delete(l.state, key)
		}
	}
	l.swept = now
}

// RedisLimiter окно фиксированной длины в Redis, общее для всех экземпляров сервиса
type RedisLimiter struct {
	client    *redis.Client
	perMinute int
	prefix    string
	now       func() time.Time
}

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		perMinute: perMinute,
		prefix:    "office_hours:ratelimit",
		now:       time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	return incr.Val() <= int64(l.perMinute), nil
}
