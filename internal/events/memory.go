package events

import (
	"context"
	"errors"
)

// ErrQueueFull буфер очереди заполнен, событие не принято
var ErrQueueFull = errors.New("event queue is full")

// InMemory очередь на буферизованном канале, для разработки и тестов
type InMemory struct {
	ch chan Event
}

func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 64
	}
	return &InMemory{ch: make(chan Event, size)}
}

func (q *InMemory) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *InMemory) Consume(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case event := <-q.ch:
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *InMemory) Close() error {
	return nil
}
