package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const availabilityColumns = `id, professor_id, start_time, end_time, is_booked, booked_at, created_at`

type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новое окно
func (r *AvailabilityRepository) Create(ctx context.Context, availability *model.Availability) error {
	query := `
		INSERT INTO availabilities (professor_id, start_time, end_time, is_booked)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		availability.ProfessorID,
		availability.StartTime,
		availability.EndTime,
		availability.IsBooked,
	).Scan(&availability.ID, &availability.CreatedAt)

	if err != nil {
		return fmt.Errorf("create availability: %w", err)
	}

	return nil
}

// GetByID получает окно по ID
func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*model.Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availabilities WHERE id = $1`

	availability, err := scanAvailability(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability by id: %w", err)
	}

	return availability, nil
}

// ListOpen получает свободные окна преподавателя, начинающиеся после asOf
func (r *AvailabilityRepository) ListOpen(ctx context.Context, professorID int64, asOf time.Time) ([]*model.Availability, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM availabilities
		WHERE professor_id = $1
		  AND is_booked = false
		  AND start_time > $2
		ORDER BY start_time, id
	`

	rows, err := r.Query(ctx, query, professorID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list open availabilities: %w", err)
	}
	defer rows.Close()

	var slots []*model.Availability
	for rows.Next() {
		slot, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availabilities: %w", err)
	}

	return slots, nil
}

// TryClaim занимает окно одним условным UPDATE. Строка блокируется на время UPDATE,
// поэтому из параллельных вызовов условие is_booked = false выполнится только у одного
func (r *AvailabilityRepository) TryClaim(ctx context.Context, id, professorID int64, at time.Time) (*model.Availability, error) {
	query := `
		UPDATE availabilities
		SET is_booked = true, booked_at = $3
		WHERE id = $1 AND professor_id = $2 AND is_booked = false
		RETURNING ` + availabilityColumns

	availability, err := scanAvailability(r.QueryRow(ctx, query, id, professorID, at))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim availability: %w", err)
	}

	return availability, nil
}

// Release освобождает окно. Для свободного или отсутствующего окна ничего не делает
func (r *AvailabilityRepository) Release(ctx context.Context, id int64) error {
	query := `
		UPDATE availabilities
		SET is_booked = false, booked_at = NULL
		WHERE id = $1
	`

	if _, err := r.ExecAffected(ctx, query, id); err != nil {
		return fmt.Errorf("release availability: %w", err)
	}

	return nil
}

// ReleaseClaim освобождает окно, только если оно всё ещё занято захватом claimedAt.
// Возвращает false, если окно уже освобождено или перезахвачено
func (r *AvailabilityRepository) ReleaseClaim(ctx context.Context, id int64, claimedAt time.Time) (bool, error) {
	query := `
		UPDATE availabilities
		SET is_booked = false, booked_at = NULL
		WHERE id = $1 AND is_booked = true AND booked_at = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, claimedAt)
	if err != nil {
		return false, fmt.Errorf("release availability claim: %w", err)
	}

	return affected == 1, nil
}

// ReleaseOrphaned освобождает окна, занятые до claimedBefore, без активной записи.
// Недавно отменённая запись тоже защищает окно: её отмена ещё может освобождать его сама.
//
// Кандидаты блокируются FOR UPDATE SKIP LOCKED. Окно, которое сейчас держит создание
// записи (см. AppointmentRepository.Create), пропускается до следующего прохода, а
// проверка записей идёт отдельным запросом уже после получения блокировок
func (r *AvailabilityRepository) ReleaseOrphaned(ctx context.Context, claimedBefore time.Time) ([]int64, error) {
	var ids []int64

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM availabilities
			WHERE is_booked = true AND booked_at < $1
			ORDER BY id
			FOR UPDATE SKIP LOCKED
		`, claimedBefore)
		if err != nil {
			return fmt.Errorf("lock orphan candidates: %w", err)
		}
		candidates, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("scan orphan candidates: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		rows, err = tx.Query(ctx, `
			UPDATE availabilities a
			SET is_booked = false, booked_at = NULL
			WHERE a.id = ANY($1)
			  AND NOT EXISTS (
				SELECT 1 FROM appointments p
				WHERE p.availability_id = a.id
				  AND (p.status = 'scheduled' OR p.updated_at >= $2)
			  )
			RETURNING a.id
		`, candidates, claimedBefore)
		if err != nil {
			return fmt.Errorf("release orphaned availabilities: %w", err)
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("scan released availabilities: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func scanAvailability(row pgx.Row) (*model.Availability, error) {
	var availability model.Availability
	err := row.Scan(
		&availability.ID,
		&availability.ProfessorID,
		&availability.StartTime,
		&availability.EndTime,
		&availability.IsBooked,
		&availability.BookedAt,
		&availability.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &availability, nil
}
