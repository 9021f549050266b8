package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/office_hours/internal/model"
)

// AppointmentService читающая сторона: списки активных записей
type AppointmentService struct {
	appointmentRepo AppointmentStore
}

func NewAppointmentService(appointmentRepo AppointmentStore) *AppointmentService {
	return &AppointmentService{appointmentRepo: appointmentRepo}
}

// ListScheduled возвращает активные записи студента вместе с данными преподавателя и окна
func (s *AppointmentService) ListScheduled(ctx context.Context, studentID int64) ([]*model.Appointment, error) {
	appointments, err := s.appointmentRepo.ListScheduledByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student appointments: %w", err)
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}

// ListScheduledForProfessor возвращает активные записи к преподавателю по времени начала
func (s *AppointmentService) ListScheduledForProfessor(ctx context.Context, professorID int64) ([]*model.Appointment, error) {
	appointments, err := s.appointmentRepo.ListScheduledByProfessor(ctx, professorID)
	if err != nil {
		return nil, fmt.Errorf("list professor appointments: %w", err)
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}
