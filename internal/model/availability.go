package model

import "time"

// Availability окно времени, опубликованное преподавателем для записи
type Availability struct {
	ID          int64      `json:"id"`
	ProfessorID int64      `json:"professor_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	IsBooked    bool       `json:"is_booked"`
	BookedAt    *time.Time `json:"-"` // момент последнего захвата, nil если окно свободно
	CreatedAt   time.Time  `json:"created_at"`
}
