package dispatch

import (
	"context"
	"testing"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotsByStart(slots []scheduling.Slot) map[string]scheduling.Slot {
	out := make(map[string]scheduling.Slot, len(slots))
	for _, s := range slots {
		out[s.Start.Format("15:04")] = s
	}
	return out
}

func TestGetAvailableSlots_PinnedEmployee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "busy", strPtr("emp-1"), tuesday(10, 0), store.AppointmentStatusConfirmed)
	cancelled := f.seed(t, "cancelled", strPtr("emp-1"), tuesday(14, 0), store.AppointmentStatusConfirmed)
	_, err := f.store.Appointments().TransitionStatus(ctx, cancelled.ID, store.StatusTransition{From: store.AppointmentStatusConfirmed, To: store.AppointmentStatusCancelled})
	require.NoError(t, err)

	slots, err := f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "2025-03-11", DurationMin: 60, EmployeeID: strPtr("emp-1")})
	require.NoError(t, err)

	got := slotsByStart(slots)
	assert.True(t, got["08:00"].Available)
	assert.True(t, got["09:00"].Available)
	assert.False(t, got["09:30"].Available)
	assert.False(t, got["10:00"].Available)
	assert.False(t, got["10:30"].Available)
	assert.True(t, got["11:00"].Available)
	assert.True(t, got["14:00"].Available, "cancelled bookings free their range")
	assert.True(t, got["17:00"].Available)
	_, exists := got["17:30"]
	assert.False(t, exists, "17:30 would end after closing")
}

func TestGetAvailableSlots_PoolByRegion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "north-busy", strPtr("emp-1"), tuesday(10, 0), store.AppointmentStatusConfirmed)

	slots, err := f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "2025-03-11", DurationMin: 60, Region: "north"})
	require.NoError(t, err)
	assert.False(t, slotsByStart(slots)["10:00"].Available)

	slots, err = f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "2025-03-11", DurationMin: 60})
	require.NoError(t, err)
	ten := slotsByStart(slots)["10:00"]
	assert.True(t, ten.Available)
	assert.Equal(t, []string{"emp-2"}, ten.ResourceIDs)
}

func TestGetAvailableSlots_TodayHidesPast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	slots, err := f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "2025-03-10", DurationMin: 60, EmployeeID: strPtr("emp-1")})
	require.NoError(t, err)

	// Opening at 08:00 is after now (07:00), so everything is bookable
	assert.True(t, slotsByStart(slots)["08:00"].Available)

	_, err = f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "11-03-2025", DurationMin: 60})
	assert.Equal(t, scheduling.KindValidation, scheduling.KindOf(err))

	_, err = f.service.GetAvailableSlots(ctx, client, SlotsRequest{Date: "2025-03-11", DurationMin: 0})
	assert.Equal(t, scheduling.KindValidation, scheduling.KindOf(err))
}

func TestGetStaffAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "a", strPtr("emp-1"), tuesday(10, 0), store.AppointmentStatusConfirmed)
	f.seed(t, "b", strPtr("emp-1"), tuesday(13, 0), store.AppointmentStatusPending)

	staff, err := f.service.GetStaffAvailability(ctx, client, "2025-03-11", "north")
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "emp-1", staff[0].EmployeeID)
	assert.Equal(t, "Eva", staff[0].Name)
	assert.Equal(t, []scheduling.Interval{
		{Start: tuesday(10, 0), End: tuesday(11, 0)},
		{Start: tuesday(13, 0), End: tuesday(14, 0)},
	}, staff[0].BookedRanges)

	staff, err = f.service.GetStaffAvailability(ctx, client, "2025-03-11", "")
	require.NoError(t, err)
	assert.Len(t, staff, 2)
}

func TestListAppointmentsAndConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "a", strPtr("emp-1"), tuesday(10, 0), store.AppointmentStatusConfirmed)
	f.seed(t, "b", strPtr("emp-2"), tuesday(10, 0), store.AppointmentStatusConfirmed)
	f.seed(t, "c", nil, tuesday(10, 0), store.AppointmentStatusPending)

	all, err := f.service.ListAppointments(ctx, admin, "2025-03-11")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := f.service.ListAppointments(ctx, cleaner, "2025-03-11")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].ID)

	_, err = f.service.ListAppointments(ctx, client, "2025-03-11")
	assert.Equal(t, scheduling.KindPermission, scheduling.KindOf(err))

	conflicts, err := f.service.ListConflicts(ctx, admin, "2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	_, err = f.service.ListConflicts(ctx, cleaner, "2025-03-11")
	assert.Equal(t, scheduling.KindPermission, scheduling.KindOf(err))
}
