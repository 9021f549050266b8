// Package memory хранит пользователей, окна и записи в памяти процесса.
// Используется при STORAGE_BACKEND=memory на одном узле и в тестах.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
)

// Store общее состояние. Все изменения идут под mu, поэтому проверка и запись
// флага is_booked в TryClaim атомарны относительно других вызовов
type Store struct {
	mu             sync.RWMutex
	users          map[int64]*model.User
	availabilities map[int64]*model.Availability
	appointments   map[int64]*model.Appointment
	lastID         int64
	now            func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:          make(map[int64]*model.User),
		availabilities: make(map[int64]*model.Availability),
		appointments:   make(map[int64]*model.Appointment),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) Availabilities() *AvailabilityRepository {
	return &AvailabilityRepository{store: s}
}

func (s *Store) Appointments() *AppointmentRepository {
	return &AppointmentRepository{store: s}
}

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return base.ErrDuplicate
		}
	}

	user.ID = s.nextID()
	user.CreatedAt = s.now()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*model.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

type AvailabilityRepository struct {
	store *Store
}

func (r *AvailabilityRepository) Create(_ context.Context, availability *model.Availability) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	availability.ID = s.nextID()
	availability.CreatedAt = s.now()
	copied := *availability
	s.availabilities[availability.ID] = &copied
	return nil
}

func (r *AvailabilityRepository) GetByID(_ context.Context, id int64) (*model.Availability, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	availability, ok := s.availabilities[id]
	if !ok {
		return nil, nil
	}
	copied := *availability
	return &copied, nil
}

func (r *AvailabilityRepository) ListOpen(_ context.Context, professorID int64, asOf time.Time) ([]*model.Availability, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slots []*model.Availability
	for _, availability := range s.availabilities {
		if availability.ProfessorID != professorID || availability.IsBooked || !availability.StartTime.After(asOf) {
			continue
		}
		copied := *availability
		slots = append(slots, &copied)
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
	return slots, nil
}

func (r *AvailabilityRepository) TryClaim(_ context.Context, id, professorID int64, at time.Time) (*model.Availability, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	availability, ok := s.availabilities[id]
	if !ok || availability.ProfessorID != professorID || availability.IsBooked {
		return nil, nil
	}

	availability.IsBooked = true
	bookedAt := at
	availability.BookedAt = &bookedAt

	copied := *availability
	return &copied, nil
}

func (r *AvailabilityRepository) Release(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if availability, ok := s.availabilities[id]; ok {
		availability.IsBooked = false
		availability.BookedAt = nil
	}
	return nil
}

func (r *AvailabilityRepository) ReleaseClaim(_ context.Context, id int64, claimedAt time.Time) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimHeldLocked(id, claimedAt) {
		return false, nil
	}
	availability := s.availabilities[id]
	availability.IsBooked = false
	availability.BookedAt = nil
	return true, nil
}

// claimHeldLocked занято ли окно именно захватом claimedAt. Вызывать под mu
func (s *Store) claimHeldLocked(id int64, claimedAt time.Time) bool {
	availability, ok := s.availabilities[id]
	return ok && availability.IsBooked && availability.BookedAt != nil && availability.BookedAt.Equal(claimedAt)
}

func (r *AvailabilityRepository) ReleaseOrphaned(_ context.Context, claimedBefore time.Time) ([]int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	protected := make(map[int64]bool)
	for _, appointment := range s.appointments {
		if appointment.IsScheduled() || !appointment.UpdatedAt.Before(claimedBefore) {
			protected[appointment.AvailabilityID] = true
		}
	}

	var ids []int64
	for id, availability := range s.availabilities {
		if !availability.IsBooked || availability.BookedAt == nil || !availability.BookedAt.Before(claimedBefore) {
			continue
		}
		if protected[id] {
			continue
		}
		availability.IsBooked = false
		availability.BookedAt = nil
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type AppointmentRepository struct {
	store *Store
}

// Create создаёт запись, только если окно всё ещё занято захватом claimedAt
func (r *AppointmentRepository) Create(_ context.Context, appointment *model.Appointment, claimedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimHeldLocked(appointment.AvailabilityID, claimedAt) {
		return base.ErrClaimLost
	}

	if appointment.IsScheduled() {
		for _, existing := range s.appointments {
			if existing.AvailabilityID == appointment.AvailabilityID && existing.IsScheduled() {
				return base.ErrDuplicate
			}
		}
	}

	appointment.ID = s.nextID()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = s.now()
	}
	appointment.UpdatedAt = appointment.CreatedAt

	copied := *appointment
	copied.Professor, copied.Student, copied.StartTime, copied.EndTime = nil, nil, nil, nil
	s.appointments[appointment.ID] = &copied
	return nil
}

func (r *AppointmentRepository) GetByID(_ context.Context, id int64) (*model.Appointment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointment, ok := s.appointments[id]
	if !ok {
		return nil, nil
	}
	copied := *appointment
	return &copied, nil
}

func (r *AppointmentRepository) MarkCancelled(_ context.Context, id int64, at time.Time) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	appointment, ok := s.appointments[id]
	if !ok || !appointment.IsScheduled() {
		return false, nil
	}

	appointment.Status = model.AppointmentStatusCancelled
	appointment.UpdatedAt = at
	return true, nil
}

func (r *AppointmentRepository) ListScheduledByStudent(_ context.Context, studentID int64) ([]*model.Appointment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointments := s.scheduledLocked(func(a *model.Appointment) bool { return a.StudentID == studentID })
	for _, appointment := range appointments {
		if professor, ok := s.users[appointment.ProfessorID]; ok {
			appointment.Professor = professor.Summary()
		}
	}

	sort.Slice(appointments, func(i, j int) bool { return appointments[i].ID < appointments[j].ID })
	return appointments, nil
}

func (r *AppointmentRepository) ListScheduledByProfessor(_ context.Context, professorID int64) ([]*model.Appointment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointments := s.scheduledLocked(func(a *model.Appointment) bool { return a.ProfessorID == professorID })
	for _, appointment := range appointments {
		if student, ok := s.users[appointment.StudentID]; ok {
			appointment.Student = student.Summary()
		}
	}

	sort.Slice(appointments, func(i, j int) bool {
		if appointments[i].StartTime.Equal(*appointments[j].StartTime) {
			return appointments[i].ID < appointments[j].ID
		}
		return appointments[i].StartTime.Before(*appointments[j].StartTime)
	})
	return appointments, nil
}

// scheduledLocked возвращает копии активных записей с временем окна. Вызывать под mu
func (s *Store) scheduledLocked(match func(*model.Appointment) bool) []*model.Appointment {
	var result []*model.Appointment
	for _, appointment := range s.appointments {
		if !appointment.IsScheduled() || !match(appointment) {
			continue
		}
		copied := *appointment
		if availability, ok := s.availabilities[appointment.AvailabilityID]; ok {
			start, end := availability.StartTime, availability.EndTime
			copied.StartTime = &start
			copied.EndTime = &end
		} else {
			var zero time.Time
			copied.StartTime, copied.EndTime = &zero, &zero
		}
		result = append(result, &copied)
	}
	return result
}
