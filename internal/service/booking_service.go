package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/office_hours/internal/events"
	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
	"go.uber.org/zap"
)

// BookingService превращает окно в запись и обратно.
//
// Захват окна и создание записи - два отдельных шага в хранилище. Если второй шаг
// падает, первый откатывается через Release (компенсация). Если процесс умирает между
// шагами, окно подбирает фоновый reconciler
type BookingService struct {
	registry        *AvailabilityService
	appointmentRepo AppointmentStore
	userRepo        UserStore
	publisher       EventPublisher
	metrics         *metrics.Recorder
	clock           Clock
	logger          *zap.Logger
}

func NewBookingService(
	registry *AvailabilityService,
	appointmentRepo AppointmentStore,
	userRepo UserStore,
	publisher EventPublisher,
	recorder *metrics.Recorder,
	clock Clock,
	logger *zap.Logger,
) *BookingService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingService{
		registry:        registry,
		appointmentRepo: appointmentRepo,
		userRepo:        userRepo,
		publisher:       publisher,
		metrics:         recorder,
		clock:           clock,
		logger:          logger,
	}
}

// Book бронирует окно availabilityID преподавателя professorID для студента actor
func (s *BookingService) Book(ctx context.Context, actor model.Actor, professorID, availabilityID int64) (*model.Appointment, error) {
	if actor.Role != model.RoleStudent {
		s.metrics.Booking(metrics.OutcomeNotAuthorized)
		return nil, ErrNotAuthorized
	}

	// Проверяем что бронируем у преподавателя
	professor, err := s.userRepo.GetByID(ctx, professorID)
	if err != nil {
		s.metrics.Booking(metrics.OutcomeError)
		return nil, fmt.Errorf("get professor: %w", err)
	}
	if professor == nil || !professor.IsProfessor() {
		s.metrics.Booking(metrics.OutcomeNotAProfessor)
		return nil, ErrNotAProfessor
	}

	// Шаг 1: атомарно занимаем окно
	slot, err := s.registry.TryClaim(ctx, availabilityID, professorID)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			s.metrics.Booking(metrics.OutcomeSlotUnavailable)
			s.logger.Info("Slot unavailable",
				zap.Int64("availability_id", availabilityID),
				zap.Int64("student_id", actor.ID),
			)
		} else {
			s.metrics.Booking(metrics.OutcomeError)
		}
		return nil, err
	}

	// Шаг 2: создаём запись, пока окно держит именно наш захват
	claimedAt := s.clock.Now()
	if slot.BookedAt != nil {
		claimedAt = *slot.BookedAt
	}

	appointment := &model.Appointment{
		StudentID:      actor.ID,
		ProfessorID:    professorID,
		AvailabilityID: availabilityID,
		Status:         model.AppointmentStatusScheduled,
		CreatedAt:      s.clock.Now(),
	}

	if err := s.appointmentRepo.Create(ctx, appointment, claimedAt); err != nil {
		switch {
		case errors.Is(err, base.ErrClaimLost):
			// Захват успел снять reconciler, окно уже не наше: откатывать нечего
			s.metrics.Booking(metrics.OutcomeSlotUnavailable)
			s.logger.Warn("Claim lost before appointment was created",
				zap.Int64("availability_id", availabilityID),
				zap.Int64("student_id", actor.ID),
			)
			return nil, ErrSlotUnavailable
		case errors.Is(err, base.ErrDuplicate):
			// На окне уже есть активная запись, окно остаётся занятым
			s.metrics.Booking(metrics.OutcomeSlotUnavailable)
			s.logger.Warn("Availability already has a scheduled appointment",
				zap.Int64("availability_id", availabilityID),
				zap.Int64("student_id", actor.ID),
			)
			return nil, ErrSlotUnavailable
		}
		s.metrics.Booking(metrics.OutcomeError)
		return nil, s.compensateClaim(ctx, availabilityID, claimedAt, fmt.Errorf("create appointment: %w", err))
	}

	appointment.Professor = professor.Summary()
	appointment.StartTime = &slot.StartTime
	appointment.EndTime = &slot.EndTime

	s.metrics.Booking(metrics.OutcomeSuccess)
	s.logger.Info("Appointment booked",
		zap.Int64("appointment_id", appointment.ID),
		zap.Int64("student_id", actor.ID),
		zap.Int64("professor_id", professorID),
		zap.Int64("availability_id", availabilityID),
	)

	s.publish(ctx, events.TypeAppointmentBooked, appointment, slot)

	return appointment, nil
}

// compensateClaim откатывает захват окна после неудачного создания записи.
// Откат выполняется даже если контекст запроса уже отменён и снимает только свой захват
func (s *BookingService) compensateClaim(ctx context.Context, availabilityID int64, claimedAt time.Time, cause error) error {
	s.metrics.Compensation()

	released, err := s.registry.ReleaseClaim(context.WithoutCancel(ctx), availabilityID, claimedAt)
	if err != nil {
		s.logger.Error("Compensating release failed, claim left for reconciler",
			zap.Int64("availability_id", availabilityID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return errors.Join(cause, fmt.Errorf("compensate claim: %w", err))
	}

	s.logger.Warn("Claim rolled back after failed appointment creation",
		zap.Int64("availability_id", availabilityID),
		zap.Bool("released", released),
		zap.Error(cause),
	)
	return cause
}

// Cancel отменяет запись. Отменять может только преподаватель, которому она принадлежит
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, appointmentID int64) error {
	if actor.Role != model.RoleProfessor {
		s.metrics.Cancellation(metrics.OutcomeNotAuthorized)
		return ErrNotAuthorized
	}

	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		s.metrics.Cancellation(metrics.OutcomeError)
		return fmt.Errorf("get appointment: %w", err)
	}
	if appointment == nil {
		s.metrics.Cancellation(metrics.OutcomeNotFound)
		return ErrNotFound
	}

	if appointment.ProfessorID != actor.ID {
		s.metrics.Cancellation(metrics.OutcomeNotAuthorized)
		return ErrNotAuthorized
	}

	// Условный переход scheduled -> cancelled: из двух параллельных отмен проходит одна
	changed, err := s.appointmentRepo.MarkCancelled(ctx, appointmentID, s.clock.Now())
	if err != nil {
		s.metrics.Cancellation(metrics.OutcomeError)
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if !changed {
		// Окно могли уже перебронировать, поэтому не освобождаем его повторно
		s.metrics.Cancellation(metrics.OutcomeAlreadyCancelled)
		return ErrAlreadyCancelled
	}

	if err := s.registry.Release(ctx, appointment.AvailabilityID); err != nil {
		s.metrics.Cancellation(metrics.OutcomeError)
		s.logger.Error("Appointment cancelled but slot release failed",
			zap.Int64("appointment_id", appointmentID),
			zap.Int64("availability_id", appointment.AvailabilityID),
			zap.Error(err),
		)
		return err
	}

	s.metrics.Cancellation(metrics.OutcomeSuccess)
	s.logger.Info("Appointment cancelled",
		zap.Int64("appointment_id", appointmentID),
		zap.Int64("professor_id", actor.ID),
		zap.Int64("availability_id", appointment.AvailabilityID),
	)

	appointment.Status = model.AppointmentStatusCancelled
	s.publish(ctx, events.TypeAppointmentCancelled, appointment, nil)

	return nil
}

// publish отправляет событие. Ошибка только логируется
func (s *BookingService) publish(ctx context.Context, eventType events.Type, appointment *model.Appointment, slot *model.Availability) {
	if s.publisher == nil {
		return
	}

	event := events.Event{
		Type:           eventType,
		AppointmentID:  appointment.ID,
		StudentID:      appointment.StudentID,
		ProfessorID:    appointment.ProfessorID,
		AvailabilityID: appointment.AvailabilityID,
		OccurredAt:     s.clock.Now(),
	}

	if slot == nil {
		var err error
		slot, err = s.registry.availabilityRepo.GetByID(ctx, appointment.AvailabilityID)
		if err != nil {
			s.logger.Warn("Failed to load availability for event",
				zap.Int64("availability_id", appointment.AvailabilityID),
				zap.Error(err))
		}
	}
	if slot != nil {
		event.StartTime = slot.StartTime
		event.EndTime = slot.EndTime
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish appointment event",
			zap.String("type", string(eventType)),
			zap.Int64("appointment_id", appointment.ID),
			zap.Error(err),
		)
	}
}
