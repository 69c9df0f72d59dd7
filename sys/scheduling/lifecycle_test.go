package scheduling

import (
	"errors"
	"testing"
	"time"

	"cleanbuddy-dispatch/res/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_CoversEveryPair(t *testing.T) {
	legal := make(map[[2]store.AppointmentStatus]bool)
	for _, pair := range [][2]store.AppointmentStatus{
		{store.AppointmentStatusPending, store.AppointmentStatusConfirmed},
		{store.AppointmentStatusConfirmed, store.AppointmentStatusEnRoute},
		{store.AppointmentStatusEnRoute, store.AppointmentStatusInProgress},
		{store.AppointmentStatusInProgress, store.AppointmentStatusAwaitingConfirmation},
		{store.AppointmentStatusAwaitingConfirmation, store.AppointmentStatusCompleted},
		{store.AppointmentStatusPending, store.AppointmentStatusCancelled},
		{store.AppointmentStatusConfirmed, store.AppointmentStatusCancelled},
		{store.AppointmentStatusEnRoute, store.AppointmentStatusCancelled},
		{store.AppointmentStatusInProgress, store.AppointmentStatusCancelled},
		{store.AppointmentStatusAwaitingConfirmation, store.AppointmentStatusCancelled},
	} {
		legal[pair] = true
	}

	for _, from := range store.AppointmentStatuses {
		for _, to := range store.AppointmentStatuses {
			pair := [2]store.AppointmentStatus{from, to}
			assert.Equal(t, legal[pair], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_SideEffects(t *testing.T) {
	now := clock(14, 0)

	tests := []struct {
		name  string
		from  store.AppointmentStatus
		to    store.AppointmentStatus
		check func(t *testing.T, tr store.StatusTransition, e Effects)
	}{
		{
			name: "en route starts tracking",
			from: store.AppointmentStatusConfirmed,
			to:   store.AppointmentStatusEnRoute,
			check: func(t *testing.T, tr store.StatusTransition, e Effects) {
				assert.True(t, e.StartTracking)
				assert.False(t, e.InvokeBilling)
			},
		},
		{
			name: "in progress sets actual start",
			from: store.AppointmentStatusEnRoute,
			to:   store.AppointmentStatusInProgress,
			check: func(t *testing.T, tr store.StatusTransition, e Effects) {
				require.NotNil(t, tr.ActualStartTime)
				assert.True(t, tr.ActualStartTime.Equal(now))
			},
		},
		{
			name: "finish sets cleaner confirmation and actual end without billing",
			from: store.AppointmentStatusInProgress,
			to:   store.AppointmentStatusAwaitingConfirmation,
			check: func(t *testing.T, tr store.StatusTransition, e Effects) {
				require.NotNil(t, tr.CleanerConfirmationDate)
				require.NotNil(t, tr.ActualEndTime)
				assert.False(t, e.InvokeBilling)
			},
		},
		{
			name: "completion bills",
			from: store.AppointmentStatusAwaitingConfirmation,
			to:   store.AppointmentStatusCompleted,
			check: func(t *testing.T, tr store.StatusTransition, e Effects) {
				require.NotNil(t, tr.ClientConfirmationDate)
				assert.True(t, e.InvokeBilling)
			},
		},
		{
			name: "cancel stamps cancellation",
			from: store.AppointmentStatusInProgress,
			to:   store.AppointmentStatusCancelled,
			check: func(t *testing.T, tr store.StatusTransition, e Effects) {
				require.NotNil(t, tr.CancelledAt)
				assert.False(t, e.InvokeBilling)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, effects, err := Transition(&store.Appointment{ID: "a", Status: tt.from}, tt.to, now)
			require.NoError(t, err)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)
			tt.check(t, tr, effects)
		})
	}
}

func TestTransition_BackwardsIsRejected(t *testing.T) {
	_, _, err := Transition(&store.Appointment{ID: "a", Status: store.AppointmentStatusCompleted}, store.AppointmentStatusEnRoute, time.Now())

	var policy *PolicyViolation
	require.True(t, errors.As(err, &policy))
	assert.Equal(t, PolicyIllegalTransition, policy.Code)
}

func TestTransition_UnknownStatus(t *testing.T) {
	_, _, err := Transition(&store.Appointment{ID: "a", Status: store.AppointmentStatusPending}, "DONE", time.Now())
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestOverride_AllowsAnyKnownStatus(t *testing.T) {
	tr, err := Override(&store.Appointment{ID: "a", Status: store.AppointmentStatusCompleted}, store.AppointmentStatusPending)
	require.NoError(t, err)
	assert.Equal(t, store.StatusTransition{From: store.AppointmentStatusCompleted, To: store.AppointmentStatusPending}, tr)

	_, err = Override(&store.Appointment{ID: "a"}, "ARCHIVED")
	assert.Equal(t, KindValidation, KindOf(err))
}
