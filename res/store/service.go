package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricingUnit tells how a service price is applied
type PricingUnit string

const (
	PricingUnitHourly PricingUnit = "HOURLY"  // Price is an hourly rate
	PricingUnitPerJob PricingUnit = "PER_JOB" // Price is charged once per visit
)

// Service represents a bookable cleaning service with its default duration and price
type Service struct {
	ID       string `gorm:"primaryKey;size:50;unique"`
	TenantID string `gorm:"size:50;not null;index:idx_service_tenant"`

	Name        string `gorm:"size:100;not null"` // e.g., "General Cleaning", "Deep Cleaning"
	Description string `gorm:"type:text"`

	DurationMin int             `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PricingUnit PricingUnit     `gorm:"size:20;not null;default:'PER_JOB'"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

// PriceFor returns the price of one visit lasting d, rounded to cents.
func (s *Service) PriceFor(d time.Duration) decimal.Decimal {
	if s.PricingUnit != PricingUnitHourly {
		return s.Price.Round(2)
	}
	hours := decimal.NewFromInt(int64(d / time.Minute)).Div(decimal.NewFromInt(60))
	return s.Price.Mul(hours).Round(2)
}

// ServiceStore defines the data access interface for services
type ServiceStore interface {
	Get(ctx context.Context, id string) (*Service, error)
	Create(ctx context.Context, service *Service) error
}
