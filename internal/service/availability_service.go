package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"go.uber.org/zap"
)

// AvailabilityService реестр окон преподавателей. Единственный, кто меняет флаг is_booked
type AvailabilityService struct {
	availabilityRepo AvailabilityStore
	userRepo         UserStore
	clock            Clock
	logger           *zap.Logger
}

func NewAvailabilityService(
	availabilityRepo AvailabilityStore,
	userRepo UserStore,
	clock Clock,
	logger *zap.Logger,
) *AvailabilityService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AvailabilityService{
		availabilityRepo: availabilityRepo,
		userRepo:         userRepo,
		clock:            clock,
		logger:           logger,
	}
}

// Publish публикует новое свободное окно от имени преподавателя
func (s *AvailabilityService) Publish(ctx context.Context, actor model.Actor, startTime, endTime time.Time) (*model.Availability, error) {
	if actor.Role != model.RoleProfessor {
		return nil, ErrNotAuthorized
	}

	if !startTime.Before(endTime) {
		return nil, ErrInvalidRange
	}

	availability := &model.Availability{
		ProfessorID: actor.ID,
		StartTime:   startTime.UTC(),
		EndTime:     endTime.UTC(),
		IsBooked:    false,
	}

	if err := s.availabilityRepo.Create(ctx, availability); err != nil {
		return nil, fmt.Errorf("create availability: %w", err)
	}

	s.logger.Info("Availability published",
		zap.Int64("availability_id", availability.ID),
		zap.Int64("professor_id", actor.ID),
		zap.Time("start_time", availability.StartTime),
		zap.Time("end_time", availability.EndTime),
	)

	return availability, nil
}

// ListOpen возвращает свободные окна преподавателя, начинающиеся после asOf.
// Это снимок: после параллельных бронирований он может устареть
func (s *AvailabilityService) ListOpen(ctx context.Context, professorID int64, asOf time.Time) ([]*model.Availability, error) {
	slots, err := s.availabilityRepo.ListOpen(ctx, professorID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list open availabilities: %w", err)
	}
	if slots == nil {
		slots = []*model.Availability{}
	}
	return slots, nil
}

// ListOpenForProfessor проверяет что professorID - преподаватель и отдаёт его окна на текущий момент
func (s *AvailabilityService) ListOpenForProfessor(ctx context.Context, professorID int64) ([]*model.Availability, error) {
	professor, err := s.userRepo.GetByID(ctx, professorID)
	if err != nil {
		return nil, fmt.Errorf("get professor: %w", err)
	}
	if professor == nil || !professor.IsProfessor() {
		return nil, ErrNotAProfessor
	}

	return s.ListOpen(ctx, professorID, s.clock.Now())
}

// TryClaim атомарно занимает окно. Не найдено, чужое и уже занятое окно
// неразличимы снаружи и дают ErrSlotUnavailable
func (s *AvailabilityService) TryClaim(ctx context.Context, availabilityID, professorID int64) (*model.Availability, error) {
	availability, err := s.availabilityRepo.TryClaim(ctx, availabilityID, professorID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("claim availability: %w", err)
	}
	if availability == nil {
		return nil, ErrSlotUnavailable
	}
	return availability, nil
}

// Release освобождает окно. Повторное освобождение не ошибка
func (s *AvailabilityService) Release(ctx context.Context, availabilityID int64) error {
	if err := s.availabilityRepo.Release(ctx, availabilityID); err != nil {
		return fmt.Errorf("release availability: %w", err)
	}
	return nil
}

// ReleaseClaim освобождает окно от конкретного захвата. Если окно уже освобождено
// или перезахвачено, ничего не меняет и возвращает false
func (s *AvailabilityService) ReleaseClaim(ctx context.Context, availabilityID int64, claimedAt time.Time) (bool, error) {
	released, err := s.availabilityRepo.ReleaseClaim(ctx, availabilityID, claimedAt)
	if err != nil {
		return false, fmt.Errorf("release availability claim: %w", err)
	}
	return released, nil
}

// ReleaseOrphanedClaims освобождает окна, захваченные раньше чем grace назад,
// на которые так и не появилось активной записи
func (s *AvailabilityService) ReleaseOrphanedClaims(ctx context.Context, grace time.Duration) (int, error) {
	ids, err := s.availabilityRepo.ReleaseOrphaned(ctx, s.clock.Now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("release orphaned claims: %w", err)
	}

	for _, id := range ids {
		s.logger.Warn("Released orphaned claim", zap.Int64("availability_id", id))
	}

	return len(ids), nil
}
