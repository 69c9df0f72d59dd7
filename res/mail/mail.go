package mail

import (
	"context"
	"time"
)

// InvoiceReceipt is what a customer sees in the paid invoice email
type InvoiceReceipt struct {
	InvoiceNumber string
	Amount        string
	PaidAt        time.Time
	AppointmentID string
}

// MailService defines the interface for transactional customer emails
type MailService interface {
	// SendInvoiceReceipt emails a paid invoice to the customer
	SendInvoiceReceipt(ctx context.Context, email, displayName string, receipt InvoiceReceipt) error

	// SendCancellationNotice confirms a cancelled appointment to the customer
	SendCancellationNotice(ctx context.Context, email, displayName, appointmentID string, startTime time.Time) error
}
