package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AppointmentStatus represents the lifecycle status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending              AppointmentStatus = "PENDING"               // Booked, no confirmation yet
	AppointmentStatusConfirmed            AppointmentStatus = "CONFIRMED"             // Accepted by the business
	AppointmentStatusEnRoute              AppointmentStatus = "EN_ROUTE"              // Cleaner travelling to the address
	AppointmentStatusInProgress           AppointmentStatus = "IN_PROGRESS"           // Service is being performed
	AppointmentStatusAwaitingConfirmation AppointmentStatus = "AWAITING_CONFIRMATION" // Cleaner finished, customer has not confirmed
	AppointmentStatusCompleted            AppointmentStatus = "COMPLETED"             // Confirmed and handed to billing
	AppointmentStatusCancelled            AppointmentStatus = "CANCELLED"             // Cancelled by customer or admin
)

// AppointmentStatuses lists every status in lifecycle order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusEnRoute,
	AppointmentStatusInProgress,
	AppointmentStatusAwaitingConfirmation,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
}

func (s AppointmentStatus) IsValid() bool {
	for _, known := range AppointmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// IsModifiable reports whether the appointment can still be rescheduled or cancelled by the customer.
func (s AppointmentStatus) IsModifiable() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

// Appointment is a booked service visit
type Appointment struct {
	ID         string  `gorm:"primaryKey;size:50;unique"`
	TenantID   string  `gorm:"size:50;not null;index:idx_appointment_tenant_start,priority:1"`
	CustomerID string  `gorm:"size:50;not null;index:idx_appointment_customer"`
	EmployeeID *string `gorm:"size:50;index:idx_appointment_employee_start,priority:1"` // nil while pooled
	ServiceID  string  `gorm:"size:50;not null"`

	// Scheduling
	StartTime      time.Time `gorm:"not null;index:idx_appointment_tenant_start,priority:2;index:idx_appointment_employee_start,priority:2"`
	EndTime        time.Time `gorm:"not null"`
	CustomDuration *int      // Minutes, overrides the service default

	Status AppointmentStatus `gorm:"size:30;not null;default:'PENDING';index:idx_appointment_status"`

	// Pricing (snapshotted at booking/edit time)
	Price    decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	TipPrice *decimal.Decimal `gorm:"type:numeric(12,2)"`

	Address string `gorm:"type:text;not null"`
	Notes   string `gorm:"type:text"`

	// Tracking
	ActualStartTime         *time.Time
	ActualEndTime           *time.Time
	CleanerConfirmationDate *time.Time `gorm:"index:idx_appointment_cleaner_confirmation"`
	ClientConfirmationDate  *time.Time

	// Customer feedback given on confirmation
	Rating        *int
	RatingComment string `gorm:"type:text"`

	CancelledAt   *time.Time
	CancelledByID *string `gorm:"size:50"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

func (a *Appointment) IsAssignedTo(employeeID string) bool {
	return a.EmployeeID != nil && *a.EmployeeID == employeeID
}

// StatusTransition describes a conditional status change: it only applies while the
// appointment is still in From.
type StatusTransition struct {
	From AppointmentStatus
	To   AppointmentStatus

	// Applied only when not already set
	ActualStartTime        *time.Time
	ActualEndTime          *time.Time
	ClientConfirmationDate *time.Time

	// Overwritten when present
	CleanerConfirmationDate *time.Time
	CancelledAt             *time.Time
	CancelledByID           *string
	Rating                  *int
	RatingComment           *string
}

// AppointmentStore defines the data access interface for appointments
type AppointmentStore interface {
	// Create inserts a new appointment; returns ErrOverlap when the employee is already booked
	Create(ctx context.Context, appointment *Appointment) error

	// Get retrieves an appointment by ID
	Get(ctx context.Context, id string) (*Appointment, error)

	// GetForUpdate retrieves an appointment and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, id string) (*Appointment, error)

	// List retrieves the appointments of a tenant matching the filters
	List(ctx context.Context, tenantID string, filters AppointmentFilters) ([]*Appointment, error)

	// LockEmployee serialises schedule writers of one employee until the transaction ends
	LockEmployee(ctx context.Context, employeeID string) error

	// UpdateSchedule moves an appointment in time and/or to another employee (nil = unassigned)
	UpdateSchedule(ctx context.Context, id string, start, end time.Time, employeeID *string) error

	// Update saves every field of the appointment
	Update(ctx context.Context, appointment *Appointment) error

	// TransitionStatus applies the transition only if the current status equals t.From.
	// The boolean reports whether a row was changed.
	TransitionStatus(ctx context.Context, id string, t StatusTransition) (bool, error)

	// ListAwaitingConfirmation retrieves AWAITING_CONFIRMATION appointments whose cleaner
	// confirmation happened strictly before the given point
	ListAwaitingConfirmation(ctx context.Context, tenantID string, cleanerConfirmedBefore time.Time) ([]*Appointment, error)

	// ListAwaitingTenantIDs returns every tenant holding at least one AWAITING_CONFIRMATION
	// appointment, whether or not it saved a scheduling config
	ListAwaitingTenantIDs(ctx context.Context) ([]string, error)
}

// AppointmentFilters contains filter options for listing appointments
type AppointmentFilters struct {
	EmployeeID      *string
	CustomerID      *string
	From            *time.Time // Overlap window start: end_time > From
	To              *time.Time // Overlap window end: start_time < To
	Statuses        []AppointmentStatus
	ExcludeStatuses []AppointmentStatus
	Limit           int
	Offset          int
}
