package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/Freeeeeet/office_hours/internal/repository/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func publish(t *testing.T, repo *AvailabilityRepository, professorID int64, offset time.Duration) *model.Availability {
	t.Helper()
	slot := &model.Availability{
		ProfessorID: professorID,
		StartTime:   baseTime.Add(offset),
		EndTime:     baseTime.Add(offset + time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), slot))
	return slot
}

func TestTryClaimIsExclusive(t *testing.T) {
	store := NewStore()
	repo := store.Availabilities()
	slot := publish(t, repo, 1, 24*time.Hour)

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			claimed, err := repo.TryClaim(context.Background(), slot.ID, 1, baseTime)
			assert.NoError(t, err)
			if claimed != nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBooked)
}

func TestTryClaimRejectsWrongOwnerAndMissing(t *testing.T) {
	store := NewStore()
	repo := store.Availabilities()
	slot := publish(t, repo, 1, time.Hour)

	claimed, err := repo.TryClaim(context.Background(), slot.ID, 2, baseTime)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	claimed, err = repo.TryClaim(context.Background(), 999, 1, baseTime)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := NewStore()
	repo := store.Availabilities()
	slot := publish(t, repo, 1, time.Hour)

	require.NoError(t, repo.Release(context.Background(), slot.ID))
	require.NoError(t, repo.Release(context.Background(), 12345))

	_, err := repo.TryClaim(context.Background(), slot.ID, 1, baseTime)
	require.NoError(t, err)
	require.NoError(t, repo.Release(context.Background(), slot.ID))
	require.NoError(t, repo.Release(context.Background(), slot.ID))

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsBooked)
	assert.Nil(t, stored.BookedAt)
}

func TestListOpenFiltersAndSorts(t *testing.T) {
	store := NewStore()
	repo := store.Availabilities()

	late := publish(t, repo, 1, 5*time.Hour)
	early := publish(t, repo, 1, 2*time.Hour)
	publish(t, repo, 1, -time.Hour) // уже началось
	publish(t, repo, 2, 3*time.Hour)
	booked := publish(t, repo, 1, 4*time.Hour)
	_, err := repo.TryClaim(context.Background(), booked.ID, 1, baseTime)
	require.NoError(t, err)

	slots, err := repo.ListOpen(context.Background(), 1, baseTime)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, early.ID, slots[0].ID)
	assert.Equal(t, late.ID, slots[1].ID)
}

func TestReleaseOrphaned(t *testing.T) {
	store := NewStore()
	slots := store.Availabilities()
	appointments := store.Appointments()
	ctx := context.Background()

	orphan := publish(t, slots, 1, time.Hour)
	fresh := publish(t, slots, 1, 2*time.Hour)
	owned := publish(t, slots, 1, 3*time.Hour)
	recentlyCancelled := publish(t, slots, 1, 4*time.Hour)

	claimedAt := baseTime.Add(-time.Minute)
	for _, id := range []int64{orphan.ID, owned.ID, recentlyCancelled.ID} {
		_, err := slots.TryClaim(ctx, id, 1, claimedAt)
		require.NoError(t, err)
	}
	_, err := slots.TryClaim(ctx, fresh.ID, 1, baseTime)
	require.NoError(t, err)

	require.NoError(t, appointments.Create(ctx, &model.Appointment{
		StudentID: 5, ProfessorID: 1, AvailabilityID: owned.ID,
		Status: model.AppointmentStatusScheduled, CreatedAt: claimedAt,
	}, claimedAt))
	cancelled := &model.Appointment{
		StudentID: 6, ProfessorID: 1, AvailabilityID: recentlyCancelled.ID,
		Status: model.AppointmentStatusScheduled, CreatedAt: claimedAt,
	}
	require.NoError(t, appointments.Create(ctx, cancelled, claimedAt))
	ok, err := appointments.MarkCancelled(ctx, cancelled.ID, baseTime)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := slots.ReleaseOrphaned(ctx, baseTime.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []int64{orphan.ID}, released)
}

func TestAppointmentsSingleScheduledPerSlot(t *testing.T) {
	store := NewStore()
	slots := store.Availabilities()
	appointments := store.Appointments()
	ctx := context.Background()

	slot := publish(t, slots, 2, time.Hour)
	_, err := slots.TryClaim(ctx, slot.ID, 2, baseTime)
	require.NoError(t, err)

	first := &model.Appointment{StudentID: 1, ProfessorID: 2, AvailabilityID: slot.ID, Status: model.AppointmentStatusScheduled}
	require.NoError(t, appointments.Create(ctx, first, baseTime))

	err = appointments.Create(ctx, &model.Appointment{StudentID: 4, ProfessorID: 2, AvailabilityID: slot.ID, Status: model.AppointmentStatusScheduled}, baseTime)
	assert.ErrorIs(t, err, base.ErrDuplicate)

	ok, err := appointments.MarkCancelled(ctx, first.ID, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = appointments.MarkCancelled(ctx, first.ID, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, appointments.Create(ctx, &model.Appointment{StudentID: 4, ProfessorID: 2, AvailabilityID: slot.ID, Status: model.AppointmentStatusScheduled}, baseTime))
}

func TestAppointmentCreateRequiresHeldClaim(t *testing.T) {
	store := NewStore()
	slots := store.Availabilities()
	appointments := store.Appointments()
	ctx := context.Background()

	slot := publish(t, slots, 2, time.Hour)
	newAppointment := func() *model.Appointment {
		return &model.Appointment{StudentID: 1, ProfessorID: 2, AvailabilityID: slot.ID, Status: model.AppointmentStatusScheduled}
	}

	// окно свободно
	assert.ErrorIs(t, appointments.Create(ctx, newAppointment(), baseTime), base.ErrClaimLost)

	first := baseTime.Add(-time.Minute)
	_, err := slots.TryClaim(ctx, slot.ID, 2, first)
	require.NoError(t, err)
	require.NoError(t, slots.Release(ctx, slot.ID))
	_, err = slots.TryClaim(ctx, slot.ID, 2, baseTime)
	require.NoError(t, err)

	// окно перезахвачено: старый захват больше ничего не решает
	assert.ErrorIs(t, appointments.Create(ctx, newAppointment(), first), base.ErrClaimLost)
	ok, err := slots.ReleaseClaim(ctx, slot.ID, first)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := slots.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBooked)

	require.NoError(t, appointments.Create(ctx, newAppointment(), baseTime))
}

func TestReleaseClaim(t *testing.T) {
	store := NewStore()
	slots := store.Availabilities()
	ctx := context.Background()

	slot := publish(t, slots, 1, time.Hour)
	_, err := slots.TryClaim(ctx, slot.ID, 1, baseTime)
	require.NoError(t, err)

	ok, err := slots.ReleaseClaim(ctx, slot.ID, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = slots.ReleaseClaim(ctx, slot.ID, baseTime)
	require.NoError(t, err)
	assert.False(t, ok, "second release of the same claim is a no-op")
}

func TestUsersUniqueEmail(t *testing.T) {
	users := NewStore().Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &model.User{Name: "P1", Email: "p1@example.com", Role: model.RoleProfessor}))
	err := users.Create(ctx, &model.User{Name: "P1 again", Email: "p1@example.com", Role: model.RoleProfessor})
	assert.ErrorIs(t, err, base.ErrDuplicate)

	user, err := users.GetByEmail(ctx, "p1@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "P1", user.Name)

	missing, err := users.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
