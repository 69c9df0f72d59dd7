package memory

import (
	"context"
	"fmt"
	"sort"

	"cleanbuddy-dispatch/res/store"
)

type schedulingConfigStore struct {
	*view
}

func (scs *schedulingConfigStore) Get(ctx context.Context, tenantID string) (*store.SchedulingConfig, error) {
	scs.guard.Lock()
	defer scs.guard.Unlock()

	config, ok := scs.d.configs[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &config, nil
}

func (scs *schedulingConfigStore) Upsert(ctx context.Context, config *store.SchedulingConfig) error {
	scs.guard.Lock()
	defer scs.guard.Unlock()

	now := scs.now()
	if existing, ok := scs.d.configs[config.TenantID]; ok {
		config.CreatedAt = existing.CreatedAt
	} else {
		config.CreatedAt = now
	}
	config.UpdatedAt = now
	scs.d.configs[config.TenantID] = *config
	return nil
}

type invoiceStore struct {
	*view
}

func (is *invoiceStore) Create(ctx context.Context, invoice *store.Invoice) error {
	is.guard.Lock()
	defer is.guard.Unlock()

	if len(invoice.Items) == 0 {
		return fmt.Errorf("%w: invoice without appointments", store.ErrInvalidInput)
	}
	if _, exists := is.d.invoices[invoice.ID]; exists {
		return fmt.Errorf("%w: invoice %s", store.ErrUniqueViolation, invoice.ID)
	}

	for _, existing := range is.d.invoices {
		if existing.Number == invoice.Number {
			return fmt.Errorf("%w: invoice number %s", store.ErrUniqueViolation, invoice.Number)
		}
		for _, item := range existing.Items {
			for _, candidate := range invoice.Items {
				if item.AppointmentID == candidate.AppointmentID {
					return fmt.Errorf("%w: appointment %s already invoiced", store.ErrUniqueViolation, candidate.AppointmentID)
				}
			}
		}
	}

	now := is.now()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	is.d.invoices[invoice.ID] = copyInvoice(invoice)
	return nil
}

func (is *invoiceStore) Get(ctx context.Context, id string) (*store.Invoice, error) {
	is.guard.Lock()
	defer is.guard.Unlock()

	invoice, ok := is.d.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyInvoice(&invoice)
	return &c, nil
}

func (is *invoiceStore) GetByAppointment(ctx context.Context, appointmentID string) (*store.Invoice, error) {
	is.guard.Lock()
	defer is.guard.Unlock()

	for _, invoice := range is.d.invoices {
		for _, item := range invoice.Items {
			if item.AppointmentID == appointmentID {
				c := copyInvoice(&invoice)
				return &c, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (is *invoiceStore) ListByCustomer(ctx context.Context, customerID string) ([]*store.Invoice, error) {
	is.guard.Lock()
	defer is.guard.Unlock()

	invoices := make([]*store.Invoice, 0)
	for _, invoice := range is.d.invoices {
		if invoice.CustomerID != customerID {
			continue
		}
		c := copyInvoice(&invoice)
		invoices = append(invoices, &c)
	}

	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return invoices, nil
}

func copyInvoice(invoice *store.Invoice) store.Invoice {
	c := *invoice
	c.Items = append([]store.InvoiceItem(nil), invoice.Items...)
	return c
}
