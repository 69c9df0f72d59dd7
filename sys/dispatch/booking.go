package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	CustomerID string
	ServiceID  string
	EmployeeID *string // nil books into the pool
	Date       string  // 2006-01-02 in the tenant timezone
	Time       string  // HH:MM
	Duration   *int    // Minutes, overrides the service default
	Address    string
	Notes      string
}

// CreateAppointment books a service. Customers book for themselves inside open hours and
// start PENDING; admins may book any customer at any time and an assigned booking starts
// CONFIRMED. The price is snapshotted from the service.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, req CreateAppointmentRequest) (*store.Appointment, error) {
	switch {
	case actor.IsAdmin():
	case actor.Role == store.UserRoleClient && actor.CustomerID != nil:
		if req.CustomerID == "" {
			req.CustomerID = *actor.CustomerID
		}
		if req.CustomerID != *actor.CustomerID {
			return nil, scheduling.NewPermissionDenied("create appointment", "customers can only book for themselves")
		}
	default:
		return nil, scheduling.NewPermissionDenied("create appointment", "only customers and admins can book")
	}

	if req.CustomerID == "" {
		return nil, scheduling.NewValidationError("customerId", "is required")
	}
	if req.ServiceID == "" {
		return nil, scheduling.NewValidationError("serviceId", "is required")
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, scheduling.NewValidationError("address", "is required")
	}

	customer, err := s.store.Customers().Get(ctx, req.CustomerID)
	if err != nil || !s.sameTenant(actor, customer.TenantID) {
		return nil, referenceError("customerId", req.CustomerID, err)
	}
	service, err := s.store.Services().Get(ctx, req.ServiceID)
	if err != nil || service.TenantID != customer.TenantID {
		return nil, referenceError("serviceId", req.ServiceID, err)
	}
	if !service.IsActive {
		return nil, scheduling.NewValidationError("serviceId", "service %s is not available", service.ID)
	}

	config, err := s.schedulingConfig(ctx, s.store, customer.TenantID)
	if err != nil {
		return nil, err
	}

	durationMin := service.DurationMin
	if req.Duration != nil {
		durationMin = *req.Duration
	}
	if durationMin <= 0 || durationMin < config.MinDurationMin {
		return nil, scheduling.NewValidationError("duration", "must be at least %d minutes", config.MinDurationMin)
	}
	duration := time.Duration(durationMin) * time.Minute

	start, err := scheduling.CombineDateTime(req.Date, req.Time, config.Location())
	if err != nil {
		return nil, err
	}
	if start.Before(s.now()) {
		return nil, scheduling.NewValidationError("time", "appointment must start in the future")
	}
	slot := scheduling.Interval{Start: start, End: start.Add(duration)}
	if !actor.IsAdmin() && !scheduling.WithinOpenHours(config, slot) {
		return nil, scheduling.NewPolicyViolation(scheduling.PolicyOutsideOpenHours,
			"%s %s is outside the business opening hours", req.Date, req.Time)
	}

	status := store.AppointmentStatusPending
	if actor.IsAdmin() && req.EmployeeID != nil {
		status = store.AppointmentStatusConfirmed
	}

	appointment := &store.Appointment{
		ID:         uuid.NewString(),
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		EmployeeID: req.EmployeeID,
		ServiceID:  service.ID,
		StartTime:  slot.Start,
		EndTime:    slot.End,
		Status:     status,
		Price:      service.PriceFor(duration),
		Address:    address,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if req.Duration != nil {
		custom := durationMin
		appointment.CustomDuration = &custom
	}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if appointment.EmployeeID != nil {
			if _, err := s.employee(ctx, tx, actor, *appointment.EmployeeID); err != nil {
				return err
			}
			if err := s.checkResourceFree(ctx, tx, appointment); err != nil {
				return err
			}
		}
		return tx.Appointments().Create(ctx, appointment)
	})
	if err != nil {
		return nil, s.conflictOrError(err, appointment)
	}

	s.publish(EventAppointmentCreated, appointment)
	return appointment, nil
}

// checkResourceFree serialises writers of the candidate's employee and rejects the write when
// the candidate would overlap one of that employee's live appointments. Must run inside tx.
func (s *Service) checkResourceFree(ctx context.Context, tx store.Store, candidate *store.Appointment) error {
	employeeID := *candidate.EmployeeID
	if err := tx.Appointments().LockEmployee(ctx, employeeID); err != nil {
		return err
	}

	from, to := candidate.StartTime, candidate.EndTime
	others, err := tx.Appointments().List(ctx, candidate.TenantID, store.AppointmentFilters{
		EmployeeID:      &employeeID,
		From:            &from,
		To:              &to,
		ExcludeStatuses: []store.AppointmentStatus{store.AppointmentStatusCancelled},
	})
	if err != nil {
		return err
	}

	if collisions := scheduling.CollisionsAfterMove(candidate, others); len(collisions) > 0 {
		return &scheduling.ConflictRejected{AppointmentID: candidate.ID, EmployeeID: employeeID, CollidesWith: collisions}
	}
	return nil
}

// conflictOrError turns the storage overlap backstop into a ConflictRejected
func (s *Service) conflictOrError(err error, candidate *store.Appointment) error {
	if errors.Is(err, store.ErrOverlap) {
		rejected := &scheduling.ConflictRejected{AppointmentID: candidate.ID}
		if candidate.EmployeeID != nil {
			rejected.EmployeeID = *candidate.EmployeeID
		}
		return rejected
	}
	return err
}

// referenceError reports a missing or foreign referenced entity as a validation error
func referenceError(field, id string, err error) error {
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to resolve %s %s: %w", field, id, err)
	}
	return scheduling.NewValidationError(field, "%s does not exist", id)
}
