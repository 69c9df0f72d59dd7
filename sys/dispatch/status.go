package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/billing"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/shopspring/decimal"
)

// UpdateAppointmentStatus advances the lifecycle along the transition table. COMPLETED goes
// through the billing trigger and CANCELLED through the cancellation policy.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, actor Actor, appointmentID string, to store.AppointmentStatus) (*store.Appointment, error) {
	if !to.IsValid() {
		return nil, scheduling.NewValidationError("status", "unknown status %q", to)
	}

	switch to {
	case store.AppointmentStatusCompleted:
		return s.confirm(ctx, actor, appointmentID, nil, nil)
	case store.AppointmentStatusCancelled:
		return s.CancelAppointment(ctx, actor, appointmentID)
	}

	var (
		updated *store.Appointment
		effects scheduling.Effects
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := s.lockAppointment(ctx, tx, actor, appointmentID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.isAssigned(appointment) {
			return scheduling.NewPermissionDenied("update status", "only the assigned cleaner or an admin can update the status")
		}

		var transition store.StatusTransition
		transition, effects, err = scheduling.Transition(appointment, to, s.now())
		if err != nil {
			return err
		}

		updated, err = s.applyTransition(ctx, tx, appointment.ID, transition)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(to))
	s.publish(EventAppointmentStatusChanged, updated)
	if effects.StartTracking {
		s.publish(EventTrackingStarted, updated)
	}
	return updated, nil
}

// CancelAppointment cancels on behalf of the customer, subject to the cancellation window,
// or of an admin, who may cancel anything not yet terminal
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, appointmentID string) (*store.Appointment, error) {
	var cancelled *store.Appointment
	err := s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := s.lockAppointment(ctx, tx, actor, appointmentID)
		if err != nil {
			return err
		}

		switch {
		case actor.IsAdmin():
			err = scheduling.CheckAdminCancellation(appointment)
		case actor.owns(appointment):
			config, cfgErr := s.schedulingConfig(ctx, tx, appointment.TenantID)
			if cfgErr != nil {
				return cfgErr
			}
			err = scheduling.CheckCustomerCancellation(appointment, s.now(), s.cancellationWindowFor(config))
		default:
			err = scheduling.NewPermissionDenied("cancel appointment", "not your appointment")
		}
		if err != nil {
			return err
		}

		transition, _, err := scheduling.Transition(appointment, store.AppointmentStatusCancelled, s.now())
		if err != nil {
			return err
		}
		cancelledBy := actor.UserID
		transition.CancelledByID = &cancelledBy

		cancelled, err = s.applyTransition(ctx, tx, appointment.ID, transition)
		return err
	})

	var policy *scheduling.PolicyViolation
	if errors.As(err, &policy) && policy.Code == scheduling.PolicyLateCancellation && s.notifications != nil {
		if notifyErr := s.notifications.NotifyLateCancellationAttempt(ctx, actor.TenantID, appointmentID, *policy.HoursRemaining); notifyErr != nil {
			s.logger.Printf("Error sending late cancellation notification: %s", notifyErr)
		}
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(store.AppointmentStatusCancelled))
	s.publish(EventAppointmentStatusChanged, cancelled)
	s.sendCancellationNotice(ctx, cancelled)
	return cancelled, nil
}

// ConfirmService is the customer confirming the finished job with a rating. It completes
// the appointment and invokes billing.
func (s *Service) ConfirmService(ctx context.Context, actor Actor, appointmentID string, rating int, comment string) (*store.Appointment, error) {
	if rating < 1 || rating > 5 {
		return nil, scheduling.NewValidationError("rating", "must be between 1 and 5")
	}
	var ratingComment *string
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		ratingComment = &trimmed
	}
	return s.confirm(ctx, actor, appointmentID, &rating, ratingComment)
}

func (s *Service) confirm(ctx context.Context, actor Actor, appointmentID string, rating *int, comment *string) (*store.Appointment, error) {
	appointment, err := s.loadAppointment(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.owns(appointment) {
		return nil, scheduling.NewPermissionDenied("confirm service", "only the customer of the appointment can confirm it")
	}
	if appointment.Status != store.AppointmentStatusAwaitingConfirmation {
		return nil, scheduling.NewPolicyViolation(scheduling.PolicyWrongStatus,
			"appointment %s is %s, only appointments awaiting confirmation can be confirmed", appointment.ID, appointment.Status)
	}

	outcome, err := s.billing.Complete(ctx, billing.CompleteRequest{AppointmentID: appointment.ID, Rating: rating, RatingComment: comment})
	if err != nil {
		return nil, err
	}
	if outcome.Transitioned {
		s.publish(EventAppointmentStatusChanged, outcome.Appointment)
	}
	return outcome.Appointment, nil
}

// SetTip records a tip on a completed appointment
func (s *Service) SetTip(ctx context.Context, actor Actor, appointmentID string, amount decimal.Decimal) (*store.Appointment, error) {
	if amount.IsNegative() {
		return nil, scheduling.NewValidationError("amount", "must not be negative")
	}

	var tipped *store.Appointment
	err := s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := s.lockAppointment(ctx, tx, actor, appointmentID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.owns(appointment) {
			return scheduling.NewPermissionDenied("set tip", "not your appointment")
		}
		if appointment.Status != store.AppointmentStatusCompleted {
			return scheduling.NewPolicyViolation(scheduling.PolicyWrongStatus,
				"tips can only be added to completed appointments, %s is %s", appointment.ID, appointment.Status)
		}

		tip := amount.Round(2)
		appointment.TipPrice = &tip
		if err := tx.Appointments().Update(ctx, appointment); err != nil {
			return err
		}
		tipped = appointment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tipped, nil
}

// OverrideAppointmentStatus is the administrative bypass of the transition table. It sets no
// lifecycle timestamps and never bills.
func (s *Service) OverrideAppointmentStatus(ctx context.Context, actor Actor, appointmentID string, to store.AppointmentStatus) (*store.Appointment, error) {
	if err := requireAdmin(actor, "override status"); err != nil {
		return nil, err
	}

	var updated *store.Appointment
	err := s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := s.lockAppointment(ctx, tx, actor, appointmentID)
		if err != nil {
			return err
		}
		transition, err := scheduling.Override(appointment, to)
		if err != nil {
			return err
		}

		updated, err = s.applyTransition(ctx, tx, appointment.ID, transition)
		return s.conflictOrError(err, appointment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("Status of appointment %s overridden to %s by %s", updated.ID, to, actor.UserID)
	s.metrics.ObserveTransition(string(to))
	s.publish(EventAppointmentStatusChanged, updated)
	return updated, nil
}

// CheckAutoConfirmAppointments runs the auto-confirm sweep for a tenant on demand. A nil
// cutoff uses the tenant setting or the platform default.
func (s *Service) CheckAutoConfirmAppointments(ctx context.Context, actor Actor, tenantID string, cutoffHours *int) (*billing.SweepResult, error) {
	if err := requireAdmin(actor, "run auto-confirm"); err != nil {
		return nil, err
	}
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if !s.sameTenant(actor, tenantID) {
		return nil, scheduling.NewPermissionDenied("run auto-confirm", "tenant belongs to another company")
	}

	var cutoff time.Duration
	if cutoffHours != nil {
		if *cutoffHours <= 0 {
			return nil, scheduling.NewValidationError("cutoffHours", "must be positive")
		}
		cutoff = time.Duration(*cutoffHours) * time.Hour
	}
	return s.billing.Sweep(ctx, tenantID, cutoff)
}

// applyTransition runs the conditional update and returns the stored result. The row is
// locked by the caller, so a lost condition means the status changed under another writer.
func (s *Service) applyTransition(ctx context.Context, tx store.Store, appointmentID string, transition store.StatusTransition) (*store.Appointment, error) {
	changed, err := tx.Appointments().TransitionStatus(ctx, appointmentID, transition)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, scheduling.NewPolicyViolation(scheduling.PolicyWrongStatus,
			"appointment %s is no longer %s", appointmentID, transition.From)
	}
	return tx.Appointments().Get(ctx, appointmentID)
}

func (s *Service) sendCancellationNotice(ctx context.Context, appointment *store.Appointment) {
	if s.mail == nil {
		return
	}
	customer, err := s.store.Customers().Get(ctx, appointment.CustomerID)
	if err != nil {
		s.logger.Printf("Error retrieving customer for cancellation notice: %s", err)
		return
	}
	if err := s.mail.SendCancellationNotice(ctx, customer.Email, customer.DisplayName, appointment.ID, appointment.StartTime); err != nil {
		s.logger.Printf("Error sending cancellation notice: %s", err)
	}
}
