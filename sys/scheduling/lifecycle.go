package scheduling

import (
	"time"

	"cleanbuddy-dispatch/res/store"
)

// transitions lists, for every status, the statuses a regular (non-override) update may
// move to. Every (from, to) pair not listed is illegal.
var transitions = map[store.AppointmentStatus]map[store.AppointmentStatus]bool{
	store.AppointmentStatusPending: {
		store.AppointmentStatusConfirmed: true,
		store.AppointmentStatusCancelled: true,
	},
	store.AppointmentStatusConfirmed: {
		store.AppointmentStatusEnRoute:   true,
		store.AppointmentStatusCancelled: true,
	},
	store.AppointmentStatusEnRoute: {
		store.AppointmentStatusInProgress: true,
		store.AppointmentStatusCancelled:  true,
	},
	store.AppointmentStatusInProgress: {
		store.AppointmentStatusAwaitingConfirmation: true,
		store.AppointmentStatusCancelled:            true,
	},
	store.AppointmentStatusAwaitingConfirmation: {
		store.AppointmentStatusCompleted: true,
		store.AppointmentStatusCancelled: true,
	},
	store.AppointmentStatusCompleted: {},
	store.AppointmentStatusCancelled: {},
}

func CanTransition(from, to store.AppointmentStatus) bool {
	return transitions[from][to]
}

// Effects are the consequences of a transition beyond the status change itself
type Effects struct {
	StartTracking bool // Staff location reporting begins (EN_ROUTE)
	InvokeBilling bool // Billing trigger must run exactly once (COMPLETED)
}

// Transition validates from -> to and returns the conditional store update carrying the
// timestamps the lifecycle sets on the way.
func Transition(appointment *store.Appointment, to store.AppointmentStatus, now time.Time) (store.StatusTransition, Effects, error) {
	from := appointment.Status
	if !to.IsValid() {
		return store.StatusTransition{}, Effects{}, NewValidationError("status", "unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return store.StatusTransition{}, Effects{}, NewPolicyViolation(PolicyIllegalTransition,
			"appointment %s cannot move from %s to %s", appointment.ID, from, to)
	}

	t := store.StatusTransition{From: from, To: to}
	var effects Effects

	switch to {
	case store.AppointmentStatusEnRoute:
		effects.StartTracking = true
	case store.AppointmentStatusInProgress:
		t.ActualStartTime = &now
	case store.AppointmentStatusAwaitingConfirmation:
		t.CleanerConfirmationDate = &now
		t.ActualEndTime = &now
	case store.AppointmentStatusCompleted:
		t.ClientConfirmationDate = &now
		effects.InvokeBilling = true
	case store.AppointmentStatusCancelled:
		t.CancelledAt = &now
	}

	return t, effects, nil
}

// Override builds an unchecked status change for administrative tooling. It sets no
// timestamps and never bills.
func Override(appointment *store.Appointment, to store.AppointmentStatus) (store.StatusTransition, error) {
	if !to.IsValid() {
		return store.StatusTransition{}, NewValidationError("status", "unknown status %q", to)
	}
	return store.StatusTransition{From: appointment.Status, To: to}, nil
}
