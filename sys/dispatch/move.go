package dispatch

import (
	"context"
	"errors"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/scheduling"
)

// MoveRequest is the effect of a drag on the dispatch board or of an edit form
type MoveRequest struct {
	AppointmentID string

	// Either an absolute target start or a continuous offset from the current start.
	// Both are snapped to the drag tick; neither keeps the current start.
	NewStart *time.Time
	Offset   *time.Duration

	// Reassign moves the appointment to EmployeeID (nil = back to the pool); otherwise the
	// current employee is kept
	Reassign   bool
	EmployeeID *string
}

// movePlan decides the new start and employee of the locked appointment
type movePlan func(appointment *store.Appointment, config *store.SchedulingConfig) (start time.Time, employeeID *string, err error)

// ProposeMove snaps the requested start, checks the post-move state against the target
// employee's other appointments and commits a single schedule update. Nothing is written
// when the move is rejected.
func (s *Service) ProposeMove(ctx context.Context, actor Actor, req MoveRequest) (*store.Appointment, error) {
	if err := requireAdmin(actor, "move appointment"); err != nil {
		return nil, err
	}
	if req.NewStart != nil && req.Offset != nil {
		return nil, scheduling.NewValidationError("newStart", "give either a start time or an offset, not both")
	}

	return s.move(ctx, actor, req.AppointmentID, func(appointment *store.Appointment, config *store.SchedulingConfig) (time.Time, *string, error) {
		// Time edits need a modifiable appointment; reassignment is allowed until it is finished
		if !req.Reassign {
			if err := scheduling.CheckReschedulable(appointment); err != nil {
				return time.Time{}, nil, err
			}
		} else if appointment.Status.IsTerminal() {
			return time.Time{}, nil, scheduling.NewPolicyViolation(scheduling.PolicyNotModifiable,
				"appointment %s is %s and can no longer be reassigned", appointment.ID, appointment.Status)
		}

		loc := config.Location()
		start := appointment.StartTime
		switch {
		case req.NewStart != nil:
			start = scheduling.Snap(req.NewStart.In(loc), s.dragSnap)
		case req.Offset != nil:
			start = scheduling.SnapOffset(appointment.StartTime.In(loc), *req.Offset, s.dragSnap)
		}

		employeeID := appointment.EmployeeID
		if req.Reassign {
			employeeID = req.EmployeeID
		}
		return start, employeeID, nil
	})
}

// UpdateAppointmentTime shifts a still modifiable appointment on its current employee
func (s *Service) UpdateAppointmentTime(ctx context.Context, actor Actor, appointmentID string, newStart time.Time) (*store.Appointment, error) {
	return s.ProposeMove(ctx, actor, MoveRequest{AppointmentID: appointmentID, NewStart: &newStart})
}

// UpdateAppointmentResource reassigns an appointment that is not finished yet, nil
// employeeID meaning unassigned
func (s *Service) UpdateAppointmentResource(ctx context.Context, actor Actor, appointmentID string, employeeID *string, newStart time.Time) (*store.Appointment, error) {
	return s.ProposeMove(ctx, actor, MoveRequest{AppointmentID: appointmentID, NewStart: &newStart, Reassign: true, EmployeeID: employeeID})
}

// RescheduleAppointment moves a still modifiable appointment to a new date and time inside
// open hours, keeping its employee. Customers may reschedule their own appointments.
func (s *Service) RescheduleAppointment(ctx context.Context, actor Actor, appointmentID, date, clock string) (*store.Appointment, error) {
	return s.move(ctx, actor, appointmentID, func(appointment *store.Appointment, config *store.SchedulingConfig) (time.Time, *string, error) {
		if !actor.IsAdmin() && !actor.owns(appointment) {
			return time.Time{}, nil, scheduling.NewPermissionDenied("reschedule appointment", "not your appointment")
		}
		if err := scheduling.CheckReschedulable(appointment); err != nil {
			return time.Time{}, nil, err
		}

		start, err := scheduling.CombineDateTime(date, clock, config.Location())
		if err != nil {
			return time.Time{}, nil, err
		}
		if start.Before(s.now()) {
			return time.Time{}, nil, scheduling.NewValidationError("time", "appointment must start in the future")
		}
		if !scheduling.WithinOpenHours(config, scheduling.Interval{Start: start, End: start.Add(appointment.Duration())}) {
			return time.Time{}, nil, scheduling.NewPolicyViolation(scheduling.PolicyOutsideOpenHours,
				"%s %s is outside the business opening hours", date, clock)
		}
		return start, appointment.EmployeeID, nil
	})
}

func (s *Service) move(ctx context.Context, actor Actor, appointmentID string, plan movePlan) (*store.Appointment, error) {
	if appointmentID == "" {
		return nil, scheduling.NewValidationError("appointmentId", "is required")
	}

	var (
		moved    *store.Appointment
		previous *string
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := s.lockAppointment(ctx, tx, actor, appointmentID)
		if err != nil {
			return err
		}
		config, err := s.schedulingConfig(ctx, tx, appointment.TenantID)
		if err != nil {
			return err
		}

		start, employeeID, err := plan(appointment, config)
		if err != nil {
			return err
		}

		candidate := *appointment
		candidate.StartTime = start
		candidate.EndTime = start.Add(appointment.Duration())
		candidate.EmployeeID = employeeID

		if employeeID != nil {
			// Only a newly assigned employee has to be active
			if !appointment.IsAssignedTo(*employeeID) {
				if _, err := s.employee(ctx, tx, actor, *employeeID); err != nil {
					return err
				}
			}
			if err := s.checkResourceFree(ctx, tx, &candidate); err != nil {
				return err
			}
		}

		if appointment.EmployeeID != nil && (employeeID == nil || *employeeID != *appointment.EmployeeID) {
			previous = appointment.EmployeeID
		}

		if err := tx.Appointments().UpdateSchedule(ctx, appointment.ID, candidate.StartTime, candidate.EndTime, employeeID); err != nil {
			return s.conflictOrError(err, &candidate)
		}

		moved, err = tx.Appointments().Get(ctx, appointment.ID)
		return err
	})

	var conflict *scheduling.ConflictRejected
	switch {
	case err == nil:
		s.metrics.ObserveMove("committed")
	case errors.As(err, &conflict):
		s.metrics.ObserveMove("conflict")
		return nil, err
	default:
		s.metrics.ObserveMove("rejected")
		return nil, err
	}

	s.publishEvent(Event{Type: EventAppointmentMoved, Appointment: moved, PreviousEmployeeID: previous})
	return moved, nil
}
