package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled" // конечное состояние
)

type Appointment struct {
	ID             int64             `json:"id"`
	StudentID      int64             `json:"student_id"`
	ProfessorID    int64             `json:"professor_id"`
	AvailabilityID int64             `json:"availability_id"`
	Status         AppointmentStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	// Дополнительные поля для отображения (не из таблицы appointments)
	Professor *UserSummary `json:"professor,omitempty"`
	Student   *UserSummary `json:"student,omitempty"`
	StartTime *time.Time   `json:"start_time,omitempty"`
	EndTime   *time.Time   `json:"end_time,omitempty"`
}

// IsScheduled проверяет что запись активна
func (a *Appointment) IsScheduled() bool {
	return a.Status == AppointmentStatusScheduled
}
