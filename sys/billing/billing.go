// Package billing turns completed appointments into invoices and runs the auto-confirm sweep.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cleanbuddy-dispatch/res/lock"
	"cleanbuddy-dispatch/res/mail"
	"cleanbuddy-dispatch/res/metrics"
	"cleanbuddy-dispatch/res/notification"
	"cleanbuddy-dispatch/res/storage"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

type Config struct {
	Logger *log.Logger
	Store  store.Store

	// Optional collaborators, all best effort after commit
	MailService         mail.MailService
	NotificationService notification.NotificationService
	Archive             storage.InvoiceArchive
	Locker              lock.Locker
	Metrics             *metrics.DispatchMetrics

	// DefaultCutoff applies when neither the caller nor the tenant sets one
	DefaultCutoff time.Duration
	Now           func() time.Time
}

type Service struct {
	logger        *log.Logger
	store         store.Store
	mail          mail.MailService
	notifications notification.NotificationService
	archive       storage.InvoiceArchive
	locker        lock.Locker
	metrics       *metrics.DispatchMetrics
	defaultCutoff time.Duration
	now           func() time.Time
}

func New(cfg *Config) *Service {
	s := &Service{
		logger:        cfg.Logger,
		store:         cfg.Store,
		mail:          cfg.MailService,
		notifications: cfg.NotificationService,
		archive:       cfg.Archive,
		locker:        cfg.Locker,
		metrics:       cfg.Metrics,
		defaultCutoff: cfg.DefaultCutoff,
		now:           cfg.Now,
	}
	if s.defaultCutoff <= 0 {
		s.defaultCutoff = store.DefaultAutoConfirmAfterHours * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CustomerSource resolves the customer billed for an appointment
type CustomerSource interface {
	Load(ctx context.Context, id string) (*store.Customer, error)
}

type customerStoreSource struct {
	customers store.CustomerStore
}

func (c customerStoreSource) Load(ctx context.Context, id string) (*store.Customer, error) {
	return c.customers.Get(ctx, id)
}

type CompleteRequest struct {
	AppointmentID string
	Rating        *int
	RatingComment *string

	// Defaults to reading the customer store
	Customers CustomerSource
}

type Outcome struct {
	Appointment *store.Appointment

	// Transitioned is false when the appointment was already COMPLETED or another caller won
	Transitioned bool

	// Invoice issued by this call; nil for recurring customers and repeated calls
	Invoice *store.Invoice
}

// OnAppointmentConfirmed is the idempotent billing entry point: it makes sure the appointment
// is COMPLETED with a client confirmation date and that a one-time customer holds exactly
// one paid invoice for it.
func (s *Service) OnAppointmentConfirmed(ctx context.Context, appointmentID string) (*Outcome, error) {
	return s.Complete(ctx, CompleteRequest{AppointmentID: appointmentID})
}

// Complete moves an AWAITING_CONFIRMATION appointment to COMPLETED and bills it in the same
// transaction. Losing the race against a concurrent completion is a silent no-op.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*Outcome, error) {
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, scheduling.NewValidationError("rating", "must be between 1 and 5")
	}

	// The customer is resolved before the transaction; the embedded store does not allow
	// reads outside tx while one is running
	current, err := s.store.Appointments().Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment %s: %w", req.AppointmentID, err)
	}

	customers := req.Customers
	if customers == nil {
		customers = customerStoreSource{customers: s.store.Customers()}
	}
	customer, err := customers.Load(ctx, current.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", current.CustomerID, err)
	}

	now := s.now()
	outcome := &Outcome{}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		appointment, err := tx.Appointments().GetForUpdate(ctx, req.AppointmentID)
		if err != nil {
			return err
		}

		switch appointment.Status {
		case store.AppointmentStatusAwaitingConfirmation:
			transition, _, err := scheduling.Transition(appointment, store.AppointmentStatusCompleted, now)
			if err != nil {
				return err
			}
			transition.Rating = req.Rating
			transition.RatingComment = req.RatingComment

			changed, err := tx.Appointments().TransitionStatus(ctx, appointment.ID, transition)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			outcome.Transitioned = true

		case store.AppointmentStatusCompleted:
			if appointment.ClientConfirmationDate == nil {
				appointment.ClientConfirmationDate = &now
				if err := tx.Appointments().Update(ctx, appointment); err != nil {
					return err
				}
			}

		default:
			return scheduling.NewPolicyViolation(scheduling.PolicyWrongStatus,
				"appointment %s is %s, only appointments awaiting confirmation can be completed", appointment.ID, appointment.Status)
		}

		completed, err := tx.Appointments().Get(ctx, appointment.ID)
		if err != nil {
			return err
		}
		outcome.Appointment = completed

		invoice, err := s.bill(ctx, tx, completed, customer, now)
		if err != nil {
			return err
		}
		outcome.Invoice = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Transitioned {
		s.metrics.ObserveTransition(string(store.AppointmentStatusCompleted))
	}
	if outcome.Invoice != nil {
		s.afterInvoice(ctx, customer, outcome.Invoice)
	}
	if outcome.Appointment == nil {
		// Lost the race; report the winner's state
		outcome.Appointment, err = s.store.Appointments().Get(ctx, req.AppointmentID)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// bill branches on the billing frequency. Recurring customers are left to the periodic
// billing cycle; one-time customers get a paid invoice unless one already covers the appointment.
func (s *Service) bill(ctx context.Context, tx store.Store, appointment *store.Appointment, customer *store.Customer, now time.Time) (*store.Invoice, error) {
	if customer.Frequency.IsRecurring() {
		return nil, nil
	}
	if customer.Frequency != store.BillingFrequencyOneTime {
		return nil, fmt.Errorf("customer %s has unknown billing frequency %q", customer.ID, customer.Frequency)
	}

	_, err := tx.Invoices().GetByAppointment(ctx, appointment.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	invoiceID := uuid.NewString()
	paidAt := now
	invoice := &store.Invoice{
		ID:         invoiceID,
		TenantID:   appointment.TenantID,
		Number:     NewInvoiceNumber(),
		CustomerID: customer.ID,
		Amount:     appointment.Price,
		Status:     store.InvoiceStatusPaid,
		DueDate:    now,
		PaidAt:     &paidAt,
		Items: []store.InvoiceItem{{
			ID:            uuid.NewString(),
			InvoiceID:     invoiceID,
			AppointmentID: appointment.ID,
			Amount:        appointment.Price,
		}},
	}

	// The appointment row is locked, so a unique violation here means it was billed twice
	if err := tx.Invoices().Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice for appointment %s: %w", appointment.ID, err)
	}
	return invoice, nil
}

func (s *Service) afterInvoice(ctx context.Context, customer *store.Customer, invoice *store.Invoice) {
	s.metrics.ObserveInvoice(string(customer.Frequency))

	if s.archive != nil {
		if _, err := s.archive.ArchiveInvoice(ctx, invoice); err != nil {
			s.logger.Printf("Error archiving invoice %s: %s", invoice.Number, err)
		}
	}

	if s.mail != nil && customer.Email != "" {
		receipt := mail.InvoiceReceipt{
			InvoiceNumber: invoice.Number,
			Amount:        invoice.Amount.StringFixed(2),
			AppointmentID: strings.Join(invoice.AppointmentIDs(), ","),
		}
		if invoice.PaidAt != nil {
			receipt.PaidAt = *invoice.PaidAt
		}
		if err := s.mail.SendInvoiceReceipt(ctx, customer.Email, customer.DisplayName, receipt); err != nil {
			s.logger.Printf("Error sending invoice receipt %s: %s", invoice.Number, err)
		}
	}
}

// NewInvoiceNumber returns a sortable, human-quotable invoice number
func NewInvoiceNumber() string {
	return "INV-" + strings.ToUpper(xid.New().String())
}
