package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cleanbuddy-dispatch/res/store"
)

type appointmentStore struct {
	*view
}

func (as *appointmentStore) Create(ctx context.Context, appointment *store.Appointment) error {
	as.guard.Lock()
	defer as.guard.Unlock()

	if _, exists := as.d.appointments[appointment.ID]; exists {
		return fmt.Errorf("%w: appointment %s", store.ErrUniqueViolation, appointment.ID)
	}
	if !appointment.EndTime.After(appointment.StartTime) {
		return fmt.Errorf("%w: appointment must end after it starts", store.ErrInvalidInput)
	}
	if err := as.checkOverlap(appointment); err != nil {
		return err
	}

	now := as.now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	as.d.appointments[appointment.ID] = *appointment
	return nil
}

func (as *appointmentStore) Get(ctx context.Context, id string) (*store.Appointment, error) {
	as.guard.Lock()
	defer as.guard.Unlock()

	appointment, ok := as.d.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &appointment, nil
}

// GetForUpdate is Get: transactions already run under the writer lock
func (as *appointmentStore) GetForUpdate(ctx context.Context, id string) (*store.Appointment, error) {
	return as.Get(ctx, id)
}

func (as *appointmentStore) List(ctx context.Context, tenantID string, filters store.AppointmentFilters) ([]*store.Appointment, error) {
	as.guard.Lock()
	defer as.guard.Unlock()

	appointments := make([]*store.Appointment, 0)
	for _, a := range as.d.appointments {
		if a.TenantID != tenantID || !matches(&a, filters) {
			continue
		}
		appointment := a
		appointments = append(appointments, &appointment)
	}

	sort.Slice(appointments, func(i, j int) bool {
		if !appointments[i].StartTime.Equal(appointments[j].StartTime) {
			return appointments[i].StartTime.Before(appointments[j].StartTime)
		}
		return appointments[i].ID < appointments[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(appointments) {
			return []*store.Appointment{}, nil
		}
		appointments = appointments[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(appointments) {
		appointments = appointments[:filters.Limit]
	}
	return appointments, nil
}

// LockEmployee is a no-op: the writer lock already serialises every transaction
func (as *appointmentStore) LockEmployee(ctx context.Context, employeeID string) error {
	return nil
}

func (as *appointmentStore) UpdateSchedule(ctx context.Context, id string, start, end time.Time, employeeID *string) error {
	as.guard.Lock()
	defer as.guard.Unlock()

	appointment, ok := as.d.appointments[id]
	if !ok {
		return fmt.Errorf("%w: appointment %s", store.ErrNotFound, id)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: appointment must end after it starts", store.ErrInvalidInput)
	}

	appointment.StartTime = start
	appointment.EndTime = end
	appointment.EmployeeID = employeeID
	if err := as.checkOverlap(&appointment); err != nil {
		return err
	}

	appointment.UpdatedAt = as.now()
	as.d.appointments[id] = appointment
	return nil
}

func (as *appointmentStore) Update(ctx context.Context, appointment *store.Appointment) error {
	as.guard.Lock()
	defer as.guard.Unlock()

	if _, ok := as.d.appointments[appointment.ID]; !ok {
		return fmt.Errorf("%w: appointment %s", store.ErrNotFound, appointment.ID)
	}
	if err := as.checkOverlap(appointment); err != nil {
		return err
	}

	appointment.UpdatedAt = as.now()
	as.d.appointments[appointment.ID] = *appointment
	return nil
}

func (as *appointmentStore) TransitionStatus(ctx context.Context, id string, t store.StatusTransition) (bool, error) {
	as.guard.Lock()
	defer as.guard.Unlock()

	appointment, ok := as.d.appointments[id]
	if !ok || appointment.Status != t.From {
		return false, nil
	}

	appointment.Status = t.To
	if t.ActualStartTime != nil && appointment.ActualStartTime == nil {
		appointment.ActualStartTime = copyTime(t.ActualStartTime)
	}
	if t.ActualEndTime != nil && appointment.ActualEndTime == nil {
		appointment.ActualEndTime = copyTime(t.ActualEndTime)
	}
	if t.ClientConfirmationDate != nil && appointment.ClientConfirmationDate == nil {
		appointment.ClientConfirmationDate = copyTime(t.ClientConfirmationDate)
	}
	if t.CleanerConfirmationDate != nil {
		appointment.CleanerConfirmationDate = copyTime(t.CleanerConfirmationDate)
	}
	if t.CancelledAt != nil {
		appointment.CancelledAt = copyTime(t.CancelledAt)
	}
	if t.CancelledByID != nil {
		cancelledBy := *t.CancelledByID
		appointment.CancelledByID = &cancelledBy
	}
	if t.Rating != nil {
		rating := *t.Rating
		appointment.Rating = &rating
	}
	if t.RatingComment != nil {
		appointment.RatingComment = *t.RatingComment
	}

	// Leaving CANCELLED puts the range back under the overlap rule
	if t.From == store.AppointmentStatusCancelled {
		if err := as.checkOverlap(&appointment); err != nil {
			return false, err
		}
	}

	appointment.UpdatedAt = as.now()
	as.d.appointments[id] = appointment
	return true, nil
}

func (as *appointmentStore) ListAwaitingConfirmation(ctx context.Context, tenantID string, cleanerConfirmedBefore time.Time) ([]*store.Appointment, error) {
	as.guard.Lock()
	defer as.guard.Unlock()

	appointments := make([]*store.Appointment, 0)
	for _, a := range as.d.appointments {
		if a.TenantID != tenantID || a.Status != store.AppointmentStatusAwaitingConfirmation {
			continue
		}
		if a.CleanerConfirmationDate == nil || !a.CleanerConfirmationDate.Before(cleanerConfirmedBefore) {
			continue
		}
		appointment := a
		appointments = append(appointments, &appointment)
	}

	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].CleanerConfirmationDate.Before(*appointments[j].CleanerConfirmationDate)
	})
	return appointments, nil
}

func (as *appointmentStore) ListAwaitingTenantIDs(ctx context.Context) ([]string, error) {
	as.guard.Lock()
	defer as.guard.Unlock()

	seen := make(map[string]bool)
	tenantIDs := make([]string, 0)
	for _, a := range as.d.appointments {
		if a.Status != store.AppointmentStatusAwaitingConfirmation || seen[a.TenantID] {
			continue
		}
		seen[a.TenantID] = true
		tenantIDs = append(tenantIDs, a.TenantID)
	}
	sort.Strings(tenantIDs)
	return tenantIDs, nil
}

// checkOverlap enforces that one employee never holds two live appointments with
// intersecting [start, end) ranges
func (as *appointmentStore) checkOverlap(candidate *store.Appointment) error {
	if candidate.EmployeeID == nil || candidate.Status == store.AppointmentStatusCancelled {
		return nil
	}

	for id, other := range as.d.appointments {
		if id == candidate.ID || other.Status == store.AppointmentStatusCancelled {
			continue
		}
		if !other.IsAssignedTo(*candidate.EmployeeID) {
			continue
		}
		if candidate.StartTime.Before(other.EndTime) && other.StartTime.Before(candidate.EndTime) {
			return fmt.Errorf("%w: %s collides with %s", store.ErrOverlap, candidate.ID, id)
		}
	}
	return nil
}

func matches(a *store.Appointment, filters store.AppointmentFilters) bool {
	if filters.EmployeeID != nil && !a.IsAssignedTo(*filters.EmployeeID) {
		return false
	}
	if filters.CustomerID != nil && a.CustomerID != *filters.CustomerID {
		return false
	}
	if filters.From != nil && !a.EndTime.After(*filters.From) {
		return false
	}
	if filters.To != nil && !a.StartTime.Before(*filters.To) {
		return false
	}
	if len(filters.Statuses) > 0 && !containsStatus(filters.Statuses, a.Status) {
		return false
	}
	if len(filters.ExcludeStatuses) > 0 && containsStatus(filters.ExcludeStatuses, a.Status) {
		return false
	}
	return true
}

func containsStatus(statuses []store.AppointmentStatus, status store.AppointmentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	c := *t
	return &c
}
