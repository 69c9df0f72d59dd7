// Package dispatch is the operation surface of the scheduling engine: booking, slot lookup,
// rescheduling and reassignment, lifecycle updates and confirmation. Every operation runs on
// behalf of an Actor and returns the business errors of package scheduling.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cleanbuddy-dispatch/res/mail"
	"cleanbuddy-dispatch/res/metrics"
	"cleanbuddy-dispatch/res/notification"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/billing"
	"cleanbuddy-dispatch/sys/scheduling"
)

const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentMoved         = "appointment.moved"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventTrackingStarted          = "tracking.started"
)

// Event is published after a mutation has been committed
type Event struct {
	Type        string             `json:"type"`
	TenantID    string             `json:"tenantId"`
	Appointment *store.Appointment `json:"appointment"`
	At          time.Time          `json:"at"`

	// PreviousEmployeeID is set on a move that took the job away from an employee
	PreviousEmployeeID *string `json:"previousEmployeeId,omitempty"`
}

type Publisher interface {
	Publish(event Event)
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID     string
	TenantID   string
	Role       store.UserRole
	CustomerID *string
	EmployeeID *string
}

func ActorFromUser(user *store.User) Actor {
	return Actor{
		UserID:     user.ID,
		TenantID:   user.TenantID,
		Role:       user.Role,
		CustomerID: user.CustomerID,
		EmployeeID: user.EmployeeID,
	}
}

// IsAdmin reports dispatch staff: company admins and platform admins
func (a Actor) IsAdmin() bool {
	return a.Role == store.UserRoleCleanerAdmin || a.Role == store.UserRoleGlobalAdmin
}

func (a Actor) owns(appointment *store.Appointment) bool {
	return a.Role == store.UserRoleClient && a.CustomerID != nil && *a.CustomerID == appointment.CustomerID
}

func (a Actor) isAssigned(appointment *store.Appointment) bool {
	return a.Role == store.UserRoleCleaner && a.EmployeeID != nil && appointment.IsAssignedTo(*a.EmployeeID)
}

type Config struct {
	Logger *log.Logger
	Store  store.Store

	Billing *billing.Service

	// Optional collaborators
	MailService         mail.MailService
	NotificationService notification.NotificationService
	Publisher           Publisher
	Metrics             *metrics.DispatchMetrics

	SlotTick           time.Duration // Default scheduling.DefaultSlotTick
	DragSnap           time.Duration // Default scheduling.DefaultDragSnap
	CancellationWindow time.Duration // Used when the tenant sets none; default 24h
	Now                func() time.Time
}

type Service struct {
	logger        *log.Logger
	store         store.Store
	billing       *billing.Service
	mail          mail.MailService
	notifications notification.NotificationService
	publisher     Publisher
	metrics       *metrics.DispatchMetrics

	slotTick           time.Duration
	dragSnap           time.Duration
	cancellationWindow time.Duration
	now                func() time.Time
}

func New(cfg *Config) *Service {
	s := &Service{
		logger:             cfg.Logger,
		store:              cfg.Store,
		billing:            cfg.Billing,
		mail:               cfg.MailService,
		notifications:      cfg.NotificationService,
		publisher:          cfg.Publisher,
		metrics:            cfg.Metrics,
		slotTick:           cfg.SlotTick,
		dragSnap:           cfg.DragSnap,
		cancellationWindow: cfg.CancellationWindow,
		now:                cfg.Now,
	}
	if s.slotTick <= 0 {
		s.slotTick = scheduling.DefaultSlotTick
	}
	if s.dragSnap <= 0 {
		s.dragSnap = scheduling.DefaultDragSnap
	}
	if s.cancellationWindow <= 0 {
		s.cancellationWindow = store.DefaultCancellationWindowHours * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.billing == nil {
		s.billing = billing.New(&billing.Config{Logger: cfg.Logger, Store: cfg.Store, Metrics: cfg.Metrics, Now: s.now})
	}
	return s
}

// GetAppointment returns an appointment visible to the actor: its customer, its assigned
// cleaner or an admin of the tenant
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id string) (*store.Appointment, error) {
	appointment, err := s.loadAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.owns(appointment) && !actor.isAssigned(appointment) {
		return nil, scheduling.NewPermissionDenied("view appointment", "not your appointment")
	}
	return appointment, nil
}

func (s *Service) loadAppointment(ctx context.Context, actor Actor, id string) (*store.Appointment, error) {
	if id == "" {
		return nil, scheduling.NewValidationError("appointmentId", "is required")
	}
	appointment, err := s.store.Appointments().Get(ctx, id)
	return s.visible(actor, id, appointment, err)
}

// lockAppointment reads the appointment inside tx and holds its row until tx ends
func (s *Service) lockAppointment(ctx context.Context, tx store.Store, actor Actor, id string) (*store.Appointment, error) {
	appointment, err := tx.Appointments().GetForUpdate(ctx, id)
	return s.visible(actor, id, appointment, err)
}

// visible hides other tenants' appointments behind ErrNotFound
func (s *Service) visible(actor Actor, id string, appointment *store.Appointment, err error) (*store.Appointment, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment %s: %w", id, err)
	}
	if !s.sameTenant(actor, appointment.TenantID) {
		return nil, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	return appointment, nil
}

func (s *Service) sameTenant(actor Actor, tenantID string) bool {
	return actor.Role == store.UserRoleGlobalAdmin || actor.TenantID == tenantID
}

// schedulingConfig returns the tenant rules, or the platform defaults when none were saved
func (s *Service) schedulingConfig(ctx context.Context, st store.Store, tenantID string) (*store.SchedulingConfig, error) {
	config, err := st.SchedulingConfigs().Get(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return store.DefaultSchedulingConfig(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduling config of tenant %s: %w", tenantID, err)
	}
	return config, nil
}

func (s *Service) cancellationWindowFor(config *store.SchedulingConfig) time.Duration {
	if config.CancellationWindowHours != nil {
		return config.CancellationWindow()
	}
	return s.cancellationWindow
}

func (s *Service) publish(eventType string, appointment *store.Appointment) {
	s.publishEvent(Event{Type: eventType, Appointment: appointment})
}

func (s *Service) publishEvent(event Event) {
	if s.publisher == nil || event.Appointment == nil {
		return
	}
	event.TenantID = event.Appointment.TenantID
	event.At = s.now()
	s.publisher.Publish(event)
}

func requireAdmin(actor Actor, action string) error {
	if !actor.IsAdmin() {
		return scheduling.NewPermissionDenied(action, "admin access required")
	}
	return nil
}
