package scheduling

import (
	"fmt"
	"math"
	"time"

	"cleanbuddy-dispatch/res/store"
)

// CheckCustomerCancellation applies the customer cancellation window: a still modifiable
// appointment starting in less than window from now cannot be cancelled by its customer.
func CheckCustomerCancellation(appointment *store.Appointment, now time.Time, window time.Duration) error {
	if !appointment.Status.IsModifiable() {
		return NewPolicyViolation(PolicyNotModifiable,
			"appointment %s can no longer be cancelled (status %s)", appointment.ID, appointment.Status)
	}

	remaining := appointment.StartTime.Sub(now)
	if remaining < window {
		hours := math.Max(0, math.Floor(remaining.Hours()*100)/100)
		return &PolicyViolation{
			Code:           PolicyLateCancellation,
			Reason:         fmt.Sprintf("cancellations must be made at least %g hours before the appointment", window.Hours()),
			HoursRemaining: &hours,
		}
	}
	return nil
}

// CheckAdminCancellation only requires the appointment to be non-terminal.
func CheckAdminCancellation(appointment *store.Appointment) error {
	if appointment.Status.IsTerminal() {
		return NewPolicyViolation(PolicyIllegalTransition,
			"appointment %s is already %s", appointment.ID, appointment.Status)
	}
	return nil
}

// CheckReschedulable allows time edits only while the appointment is modifiable.
func CheckReschedulable(appointment *store.Appointment) error {
	if !appointment.Status.IsModifiable() {
		return NewPolicyViolation(PolicyNotModifiable,
			"appointment %s cannot be rescheduled (status %s)", appointment.ID, appointment.Status)
	}
	return nil
}
