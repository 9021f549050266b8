// Package events описывает события жизненного цикла записей и очереди для их доставки.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	TypeAppointmentBooked    Type = "appointment.booked"
	TypeAppointmentCancelled Type = "appointment.cancelled"
)

// Event событие о записи, достаточное для уведомления участников без обращения к БД за окном
type Event struct {
	Type           Type      `json:"type"`
	AppointmentID  int64     `json:"appointment_id"`
	StudentID      int64     `json:"student_id"`
	ProfessorID    int64     `json:"professor_id"`
	AvailabilityID int64     `json:"availability_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Queue абстракция над бэкендами очереди
type Queue interface {
	Publish(ctx context.Context, event Event) error
	Consume(ctx context.Context) (<-chan Event, error)
	Close() error
}

func encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
