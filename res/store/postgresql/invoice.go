package postgresql

import (
	"context"
	"fmt"

	"cleanbuddy-dispatch/res/store"
)

type invoiceStore struct {
	*storeImpl
}

func NewInvoiceStore(rootStore *storeImpl) *invoiceStore {
	return &invoiceStore{storeImpl: rootStore}
}

// Create inserts the invoice; gorm inserts the items through the association
func (is *invoiceStore) Create(ctx context.Context, invoice *store.Invoice) error {
	if len(invoice.Items) == 0 {
		return fmt.Errorf("%w: invoice without appointments", store.ErrInvalidInput)
	}

	result := is.db.WithContext(ctx).Create(invoice)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create invoice")
	}
	return nil
}

func (is *invoiceStore) Get(ctx context.Context, id string) (*store.Invoice, error) {
	var invoice store.Invoice
	result := is.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&invoice)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &invoice, nil
}

func (is *invoiceStore) GetByAppointment(ctx context.Context, appointmentID string) (*store.Invoice, error) {
	var invoice store.Invoice
	result := is.db.WithContext(ctx).
		Preload("Items").
		Where("id = (SELECT invoice_id FROM invoice_items WHERE appointment_id = ?)", appointmentID).
		First(&invoice)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &invoice, nil
}

func (is *invoiceStore) ListByCustomer(ctx context.Context, customerID string) ([]*store.Invoice, error) {
	var invoices []*store.Invoice
	err := is.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, translateError(err)
	}
	return invoices, nil
}
