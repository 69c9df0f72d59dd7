package store

import (
	"context"
	"time"
)

// BillingFrequency decides how completed appointments of a customer are invoiced
type BillingFrequency string

const (
	BillingFrequencyOneTime  BillingFrequency = "ONE_TIME"
	BillingFrequencyWeekly   BillingFrequency = "WEEKLY"
	BillingFrequencyBiweekly BillingFrequency = "BIWEEKLY"
	BillingFrequencyMonthly  BillingFrequency = "MONTHLY"
)

func (f BillingFrequency) IsValid() bool {
	switch f {
	case BillingFrequencyOneTime, BillingFrequencyWeekly, BillingFrequencyBiweekly, BillingFrequencyMonthly:
		return true
	}
	return false
}

// IsRecurring reports whether invoicing is left to the periodic billing cycle.
func (f BillingFrequency) IsRecurring() bool {
	return f == BillingFrequencyWeekly || f == BillingFrequencyBiweekly || f == BillingFrequencyMonthly
}

type Customer struct {
	ID          string           `gorm:"primaryKey;size:50;unique"`
	TenantID    string           `gorm:"size:50;not null;index:idx_customer_tenant"`
	DisplayName string           `gorm:"size:100;not null"`
	Email       string           `gorm:"size:256;not null"`
	Frequency   BillingFrequency `gorm:"size:20;not null;default:'ONE_TIME'"`
	BillingDay  int              `gorm:"not null;default:1"` // Day of the cycle recurring invoices are issued on

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

type CustomerStore interface {
	Get(ctx context.Context, id string) (*Customer, error)

	// GetMany returns the customers found among ids, in no particular order
	GetMany(ctx context.Context, ids []string) ([]*Customer, error)

	Create(ctx context.Context, customer *Customer) error
}
