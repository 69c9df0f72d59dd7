package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen      InvoiceStatus = "OPEN"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is a billing batch for one customer covering one or more appointments
type Invoice struct {
	ID         string          `gorm:"primaryKey;size:50;unique"`
	TenantID   string          `gorm:"size:50;not null;index:idx_invoice_tenant"`
	Number     string          `gorm:"size:50;not null;unique"`
	CustomerID string          `gorm:"size:50;not null;index:idx_invoice_customer"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status     InvoiceStatus   `gorm:"size:20;not null;index:idx_invoice_status"`
	DueDate    time.Time       `gorm:"not null"`
	PaidAt     *time.Time

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

// InvoiceItem links an invoice to one appointment. An appointment is invoiced at most once.
type InvoiceItem struct {
	ID            string          `gorm:"primaryKey;size:50;unique"`
	InvoiceID     string          `gorm:"size:50;not null;index:idx_invoice_item_invoice"`
	AppointmentID string          `gorm:"size:50;not null;uniqueIndex:idx_invoice_item_appointment"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

func (inv *Invoice) AppointmentIDs() []string {
	ids := make([]string, 0, len(inv.Items))
	for _, item := range inv.Items {
		ids = append(ids, item.AppointmentID)
	}
	return ids
}

type InvoiceStore interface {
	// Create inserts the invoice and its items; returns ErrUniqueViolation when one of the
	// appointments is already invoiced
	Create(ctx context.Context, invoice *Invoice) error

	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByAppointment retrieves the invoice covering an appointment
	GetByAppointment(ctx context.Context, appointmentID string) (*Invoice, error)

	ListByCustomer(ctx context.Context, customerID string) ([]*Invoice, error)
}
