package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/office_hours/internal/events"
	"github.com/Freeeeeet/office_hours/internal/model"
)

// AvailabilityStore хранилище окон. TryClaim обязан быть атомарным compare-and-set
type AvailabilityStore interface {
	Create(ctx context.Context, availability *model.Availability) error
	GetByID(ctx context.Context, id int64) (*model.Availability, error)
	ListOpen(ctx context.Context, professorID int64, asOf time.Time) ([]*model.Availability, error)
	// TryClaim возвращает nil, nil если окно не найдено, чужое или уже занято
	TryClaim(ctx context.Context, id, professorID int64, at time.Time) (*model.Availability, error)
	Release(ctx context.Context, id int64) error
	// ReleaseClaim освобождает окно, только если его всё ещё держит захват claimedAt
	ReleaseClaim(ctx context.Context, id int64, claimedAt time.Time) (bool, error)
	ReleaseOrphaned(ctx context.Context, claimedBefore time.Time) ([]int64, error)
}

type AppointmentStore interface {
	// Create пишет запись, только пока окно занято захватом claimedAt (booked_at),
	// иначе base.ErrClaimLost. Вторая активная запись на окно даёт base.ErrDuplicate
	Create(ctx context.Context, appointment *model.Appointment, claimedAt time.Time) error
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
	// MarkCancelled возвращает false если запись уже не в статусе scheduled
	MarkCancelled(ctx context.Context, id int64, at time.Time) (bool, error)
	ListScheduledByStudent(ctx context.Context, studentID int64) ([]*model.Appointment, error)
	ListScheduledByProfessor(ctx context.Context, professorID int64) ([]*model.Appointment, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// EventPublisher публикует события о записях. Ошибки публикации не откатывают операцию
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
