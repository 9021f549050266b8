package app

import (
	"fmt"

	"github.com/Freeeeeet/office_hours/internal/config"
	"github.com/Freeeeeet/office_hours/internal/events"
	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewQueue создаёт очередь событий по QUEUE_BACKEND. redisClient нужен только для redis
func NewQueue(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (events.Queue, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendMemory:
		return events.NewInMemory(256), nil
	case config.QueueBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis queue requires a redis client")
		}
		return events.NewRedisQueue(redisClient, cfg.RedisQueueKey, logger), nil
	case config.QueueBackendKafka:
		return events.NewKafkaQueue(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

// NotifiesInProcess читает ли сам сервер очередь в памяти (нужен токен бота)
func NotifiesInProcess(cfg *config.Config) bool {
	return cfg.QueueBackend == config.QueueBackendMemory && cfg.TelegramToken != ""
}

// Publisher издатель событий для BookingService. Очередь в памяти без читателя
// только копила бы события, поэтому в этом случае публикация выключена (nil)
func Publisher(cfg *config.Config, queue events.Queue) service.EventPublisher {
	if queue == nil {
		return nil
	}
	if cfg.QueueBackend == config.QueueBackendMemory && !NotifiesInProcess(cfg) {
		return nil
	}
	return queue
}
