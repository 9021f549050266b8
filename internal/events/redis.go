package events

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisKey = "office_hours:events"

// RedisQueue очередь на списке Redis (LPUSH / BRPOP)
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisQueue{client: client, key: key, logger: logger}
}

func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					q.logger.Warn("Redis BRPOP failed", zap.String("key", q.key), zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			event, err := decode([]byte(res[1]))
			if err != nil {
				q.logger.Error("Dropping malformed event", zap.String("key", q.key), zap.Error(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close не закрывает клиент: он общий и управляется в main
func (q *RedisQueue) Close() error {
	return nil
}
