package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaQueue пишет события в топик с ключом availability_id, чтобы события одного окна
// попадали в одну партицию и читались по порядку
type KafkaQueue struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	logger *zap.Logger

	mu     sync.Mutex
	reader *kafka.Reader
}

func NewKafkaQueue(cfg KafkaConfig, logger *zap.Logger) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Sugar().Errorf(msg, args...)
		}),
	}

	return &KafkaQueue{cfg: cfg, writer: writer, logger: logger}, nil
}

func (q *KafkaQueue) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AvailabilityID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Event, error) {
	if q.cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka group id is required to consume")
	}

	q.mu.Lock()
	if q.reader != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("kafka queue is already being consumed")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.cfg.Brokers,
		Topic:    q.cfg.Topic,
		GroupID:  q.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	q.reader = reader
	q.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.logger.Warn("Kafka fetch failed", zap.String("topic", q.cfg.Topic), zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			event, err := decode(msg.Value)
			if err != nil {
				q.logger.Error("Dropping malformed event",
					zap.String("topic", msg.Topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			} else {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}

			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				q.logger.Warn("Kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}()
	return out, nil
}

func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	reader := q.reader
	q.mu.Unlock()

	var readerErr error
	if reader != nil {
		readerErr = reader.Close()
	}
	if err := q.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return readerErr
}
