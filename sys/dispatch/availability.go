package dispatch

import (
	"context"
	"fmt"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/scheduling"
)

type SlotsRequest struct {
	Date        string // 2006-01-02 in the tenant timezone
	DurationMin int

	// EmployeeID pins one resource; nil asks for any available employee, optionally in Region
	EmployeeID *string
	Region     string
}

// GetAvailableSlots lists candidate start times for a booking of the requested duration
func (s *Service) GetAvailableSlots(ctx context.Context, actor Actor, req SlotsRequest) ([]scheduling.Slot, error) {
	if req.DurationMin <= 0 {
		return nil, scheduling.NewValidationError("durationMinutes", "must be positive")
	}

	config, err := s.schedulingConfig(ctx, s.store, actor.TenantID)
	if err != nil {
		return nil, err
	}
	day, err := scheduling.ParseDate(req.Date, config.Location())
	if err != nil {
		return nil, err
	}

	var employees []*store.Employee
	if req.EmployeeID != nil {
		employee, err := s.employee(ctx, s.store, actor, *req.EmployeeID)
		if err != nil {
			return nil, err
		}
		employees = []*store.Employee{employee}
	} else {
		employees, err = s.staff(ctx, actor.TenantID, req.Region)
		if err != nil {
			return nil, err
		}
	}

	appointments, err := s.dayAppointments(ctx, actor.TenantID, day)
	if err != nil {
		return nil, err
	}
	busy := scheduling.BusyByResource(appointments, "")

	resources := make([]scheduling.Resource, 0, len(employees))
	for _, employee := range employees {
		resources = append(resources, scheduling.Resource{ID: employee.ID, Busy: busy[employee.ID]})
	}

	return scheduling.ComputeSlots(config, scheduling.SlotQuery{
		Date:      day,
		Duration:  time.Duration(req.DurationMin) * time.Minute,
		Tick:      s.slotTick,
		Resources: resources,
		Now:       s.now(),
	}), nil
}

type StaffAvailability struct {
	EmployeeID   string
	Name         string
	BookedRanges []scheduling.Interval
}

// GetStaffAvailability returns every active employee serving the region with their booked
// ranges on the date
func (s *Service) GetStaffAvailability(ctx context.Context, actor Actor, date, region string) ([]StaffAvailability, error) {
	config, err := s.schedulingConfig(ctx, s.store, actor.TenantID)
	if err != nil {
		return nil, err
	}
	day, err := scheduling.ParseDate(date, config.Location())
	if err != nil {
		return nil, err
	}

	employees, err := s.staff(ctx, actor.TenantID, region)
	if err != nil {
		return nil, err
	}
	appointments, err := s.dayAppointments(ctx, actor.TenantID, day)
	if err != nil {
		return nil, err
	}
	busy := scheduling.BusyByResource(appointments, "")

	staff := make([]StaffAvailability, 0, len(employees))
	for _, employee := range employees {
		booked := busy[employee.ID]
		if booked == nil {
			booked = []scheduling.Interval{}
		}
		staff = append(staff, StaffAvailability{EmployeeID: employee.ID, Name: employee.DisplayName, BookedRanges: booked})
	}
	return staff, nil
}

// ListAppointments returns the appointments of the tenant overlapping the date, for the
// dispatch board. Cleaners only see their own.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, date string) ([]*store.Appointment, error) {
	if !actor.IsAdmin() && actor.Role != store.UserRoleCleaner {
		return nil, scheduling.NewPermissionDenied("list appointments", "staff access required")
	}

	config, err := s.schedulingConfig(ctx, s.store, actor.TenantID)
	if err != nil {
		return nil, err
	}
	day, err := scheduling.ParseDate(date, config.Location())
	if err != nil {
		return nil, err
	}

	filters := dayFilters(day)
	if !actor.IsAdmin() {
		if actor.EmployeeID == nil {
			return []*store.Appointment{}, nil
		}
		filters.EmployeeID = actor.EmployeeID
	}

	appointments, err := s.store.Appointments().List(ctx, actor.TenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// ListConflicts reports the double bookings of the date with the same detector that gates moves
func (s *Service) ListConflicts(ctx context.Context, actor Actor, date string) (scheduling.Conflicts, error) {
	if err := requireAdmin(actor, "list conflicts"); err != nil {
		return nil, err
	}

	config, err := s.schedulingConfig(ctx, s.store, actor.TenantID)
	if err != nil {
		return nil, err
	}
	day, err := scheduling.ParseDate(date, config.Location())
	if err != nil {
		return nil, err
	}

	appointments, err := s.dayAppointments(ctx, actor.TenantID, day)
	if err != nil {
		return nil, err
	}
	return scheduling.FindConflicts(appointments), nil
}

func (s *Service) staff(ctx context.Context, tenantID, region string) ([]*store.Employee, error) {
	filters := store.EmployeeFilters{ActiveOnly: true}
	if region != "" {
		filters.Region = &region
	}
	employees, err := s.store.Employees().List(ctx, tenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// employee returns an active employee of the actor's tenant
func (s *Service) employee(ctx context.Context, st store.Store, actor Actor, id string) (*store.Employee, error) {
	employee, err := st.Employees().Get(ctx, id)
	if err != nil || !s.sameTenant(actor, employee.TenantID) {
		return nil, referenceError("employeeId", id, err)
	}
	if !employee.IsActive {
		return nil, scheduling.NewValidationError("employeeId", "employee %s is not active", id)
	}
	return employee, nil
}

func (s *Service) dayAppointments(ctx context.Context, tenantID string, day time.Time) ([]*store.Appointment, error) {
	appointments, err := s.store.Appointments().List(ctx, tenantID, dayFilters(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// dayFilters selects live appointments overlapping the calendar day starting at day
func dayFilters(day time.Time) store.AppointmentFilters {
	from := day
	to := day.AddDate(0, 0, 1)
	return store.AppointmentFilters{
		From:            &from,
		To:              &to,
		ExcludeStatuses: []store.AppointmentStatus{store.AppointmentStatusCancelled},
	}
}
