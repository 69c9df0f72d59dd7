package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cleanbuddy-dispatch/res/store"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// InvoiceArchive keeps an immutable snapshot of every issued invoice
type InvoiceArchive interface {
	ArchiveInvoice(ctx context.Context, invoice *store.Invoice) (string, error)
}

// GCSService writes invoice snapshots to Google Cloud Storage
type GCSService struct {
	client     *storage.Client
	bucketName string
	projectID  string
}

// NewGCSService creates a new Google Cloud Storage service
func NewGCSService(ctx context.Context, bucketName, projectID, credentialsPath string) (*GCSService, error) {
	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		// Use default credentials (for GCE, Cloud Run, etc.)
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSService{
		client:     client,
		bucketName: bucketName,
		projectID:  projectID,
	}, nil
}

// Close closes the GCS client
func (s *GCSService) Close() error {
	return s.client.Close()
}

// ArchiveInvoice uploads the invoice as JSON and returns its gs:// URL.
// Existing snapshots are never overwritten.
func (s *GCSService) ArchiveInvoice(ctx context.Context, invoice *store.Invoice) (string, error) {
	body, err := MarshalInvoiceSnapshot(invoice)
	if err != nil {
		return "", err
	}

	objectPath := BuildInvoiceObjectPath(invoice.TenantID, invoice.Number)
	obj := s.client.Bucket(s.bucketName).Object(objectPath).If(storage.Conditions{DoesNotExist: true})
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(body); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload invoice: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucketName, objectPath), nil
}

// BuildInvoiceObjectPath builds the object path of an invoice snapshot
func BuildInvoiceObjectPath(tenantID, invoiceNumber string) string {
	sanitize := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "/", "-"))
	}
	return fmt.Sprintf("invoices/%s/%s.json", sanitize(tenantID), sanitize(invoiceNumber))
}

type invoiceSnapshot struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	TenantID       string     `json:"tenantId"`
	CustomerID     string     `json:"customerId"`
	Amount         string     `json:"amount"`
	Status         string     `json:"status"`
	DueDate        time.Time  `json:"dueDate"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	AppointmentIDs []string   `json:"appointmentIds"`
}

// MarshalInvoiceSnapshot renders the archived form of an invoice. Amounts keep two decimals.
func MarshalInvoiceSnapshot(invoice *store.Invoice) ([]byte, error) {
	body, err := json.Marshal(invoiceSnapshot{
		ID:             invoice.ID,
		Number:         invoice.Number,
		TenantID:       invoice.TenantID,
		CustomerID:     invoice.CustomerID,
		Amount:         invoice.Amount.StringFixed(2),
		Status:         string(invoice.Status),
		DueDate:        invoice.DueDate.UTC(),
		PaidAt:         invoice.PaidAt,
		AppointmentIDs: invoice.AppointmentIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice %s: %w", invoice.ID, err)
	}
	return body, nil
}
