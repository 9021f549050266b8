package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AppointmentRepository struct {
	*base.Repository
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт запись на окно, которое занято захватом claimedAt (booked_at окна).
//
// Строка окна блокируется FOR UPDATE до фиксации вставки. Если окно уже освобождено
// или перезахвачено, ничего не вставляется и возвращается base.ErrClaimLost.
// Частичный уникальный индекс не даст создать вторую активную запись на то же окно
func (r *AppointmentRepository) Create(ctx context.Context, appointment *model.Appointment, claimedAt time.Time) error {
	query := `
		WITH claim AS (
			SELECT id FROM availabilities
			WHERE id = $3 AND is_booked = true AND booked_at = $6
			FOR UPDATE
		)
		INSERT INTO appointments (student_id, professor_id, availability_id, status, created_at, updated_at)
		SELECT $1::bigint, $2::bigint, claim.id, $4::text, $5::timestamptz, $5::timestamptz
		FROM claim
		RETURNING id, created_at, updated_at
	`

	createdAt := appointment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := r.QueryRow(
		ctx, query,
		appointment.StudentID,
		appointment.ProfessorID,
		appointment.AvailabilityID,
		string(appointment.Status),
		createdAt,
		claimedAt,
	).Scan(&appointment.ID, &appointment.CreatedAt, &appointment.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("create appointment: %w", base.ErrClaimLost)
		}
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create appointment: %w", base.ErrDuplicate)
		}
		return fmt.Errorf("create appointment: %w", err)
	}

	return nil
}

// GetByID получает запись по ID
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT id, student_id, professor_id, availability_id, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`

	var appointment model.Appointment
	err := r.QueryRow(ctx, query, id).Scan(
		&appointment.ID,
		&appointment.StudentID,
		&appointment.ProfessorID,
		&appointment.AvailabilityID,
		&appointment.Status,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	return &appointment, nil
}

// MarkCancelled переводит запись scheduled -> cancelled. false если запись уже не активна
func (r *AppointmentRepository) MarkCancelled(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`

	affected, err := r.ExecAffected(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("cancel appointment: %w", err)
	}

	return affected == 1, nil
}

// ListScheduledByStudent получает активные записи студента с данными преподавателя и окна
func (r *AppointmentRepository) ListScheduledByStudent(ctx context.Context, studentID int64) ([]*model.Appointment, error) {
	query := `
		SELECT p.id, p.student_id, p.professor_id, p.availability_id, p.status, p.created_at, p.updated_at,
		       u.id, u.name, u.email, a.start_time, a.end_time
		FROM appointments p
		JOIN users u ON u.id = p.professor_id
		JOIN availabilities a ON a.id = p.availability_id
		WHERE p.student_id = $1 AND p.status = 'scheduled'
		ORDER BY p.id
	`

	return r.listEnriched(ctx, query, studentID, func(a *model.Appointment, u *model.UserSummary) {
		a.Professor = u
	})
}

// ListScheduledByProfessor получает активные записи к преподавателю с данными студента
func (r *AppointmentRepository) ListScheduledByProfessor(ctx context.Context, professorID int64) ([]*model.Appointment, error) {
	query := `
		SELECT p.id, p.student_id, p.professor_id, p.availability_id, p.status, p.created_at, p.updated_at,
		       u.id, u.name, u.email, a.start_time, a.end_time
		FROM appointments p
		JOIN users u ON u.id = p.student_id
		JOIN availabilities a ON a.id = p.availability_id
		WHERE p.professor_id = $1 AND p.status = 'scheduled'
		ORDER BY a.start_time, p.id
	`

	return r.listEnriched(ctx, query, professorID, func(a *model.Appointment, u *model.UserSummary) {
		a.Student = u
	})
}

func (r *AppointmentRepository) listEnriched(
	ctx context.Context,
	query string,
	ownerID int64,
	attach func(*model.Appointment, *model.UserSummary),
) ([]*model.Appointment, error) {
	rows, err := r.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		var (
			appointment model.Appointment
			person      model.UserSummary
			start, end  time.Time
		)
		err := rows.Scan(
			&appointment.ID,
			&appointment.StudentID,
			&appointment.ProfessorID,
			&appointment.AvailabilityID,
			&appointment.Status,
			&appointment.CreatedAt,
			&appointment.UpdatedAt,
			&person.ID,
			&person.Name,
			&person.Email,
			&start,
			&end,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointment.StartTime = &start
		appointment.EndTime = &end
		attach(&appointment, &person)
		appointments = append(appointments, &appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return appointments, nil
}
