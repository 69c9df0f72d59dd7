package store

import (
	"context"
	"strings"
	"time"
)

// Employee is a schedulable resource (a cleaner)
type Employee struct {
	ID          string `gorm:"primaryKey;size:50;unique"`
	TenantID    string `gorm:"size:50;not null;index:idx_employee_tenant"`
	DisplayName string `gorm:"size:100;not null"`
	Color       string `gorm:"size:20"` // Calendar display only

	// Live location, written by the staff app
	Latitude          *float64
	Longitude         *float64
	LocationUpdatedAt *time.Time

	ServedAreas []string `gorm:"serializer:json;type:jsonb"` // Region tags
	IsActive    bool     `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

// Serves reports whether the employee covers the region; an empty region matches everyone.
func (e *Employee) Serves(region string) bool {
	if region == "" {
		return true
	}
	for _, area := range e.ServedAreas {
		if strings.EqualFold(area, region) {
			return true
		}
	}
	return false
}

type EmployeeStore interface {
	Get(ctx context.Context, id string) (*Employee, error)
	List(ctx context.Context, tenantID string, filters EmployeeFilters) ([]*Employee, error)
	Create(ctx context.Context, employee *Employee) error
}

type EmployeeFilters struct {
	Region     *string
	ActiveOnly bool
}
