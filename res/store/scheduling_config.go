package store

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultAutoConfirmAfterHours   = 3
	DefaultCancellationWindowHours = 24
	DefaultMinDurationMin          = 60

	dateLayout = "2006-01-02"
)

// TimeRange is an opening window inside one day, e.g. {"09:00", "12:00"}
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyAvailability maps a lowercase weekday name ("monday") to its ordered opening windows
type WeeklyAvailability map[string][]TimeRange

// RateTiers are the named price multipliers used for quoting
type RateTiers struct {
	Normal decimal.Decimal `json:"normal"`
	Peak   decimal.Decimal `json:"peak"`
	Urgent decimal.Decimal `json:"urgent"`
}

// SchedulingConfig holds the per-tenant booking rules
type SchedulingConfig struct {
	TenantID string `gorm:"primaryKey;size:50;unique"`
	Timezone string `gorm:"size:64;not null;default:'UTC'"` // IANA name

	Availability   WeeklyAvailability `gorm:"serializer:json;type:jsonb;not null"`
	Holidays       []string           `gorm:"serializer:json;type:jsonb"` // "2006-01-02" dates
	MinDurationMin int                `gorm:"not null;default:60"`
	RateTiers      RateTiers          `gorm:"serializer:json;type:jsonb"`

	// Grace windows; nil falls back to the platform defaults
	AutoConfirmAfterHours   *int
	CancellationWindowHours *int

	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

// DefaultSchedulingConfig is used for tenants that never saved their own rules:
// weekdays 08:00-18:00, closed on weekends.
func DefaultSchedulingConfig(tenantID string) *SchedulingConfig {
	weekday := []TimeRange{{Start: "08:00", End: "18:00"}}
	return &SchedulingConfig{
		TenantID: tenantID,
		Timezone: "UTC",
		Availability: WeeklyAvailability{
			"monday":    weekday,
			"tuesday":   weekday,
			"wednesday": weekday,
			"thursday":  weekday,
			"friday":    weekday,
		},
		MinDurationMin: DefaultMinDurationMin,
		RateTiers: RateTiers{
			Normal: decimal.NewFromInt(1),
			Peak:   decimal.NewFromFloat(1.25),
			Urgent: decimal.NewFromFloat(1.5),
		},
	}
}

// Location resolves the tenant timezone, falling back to UTC for unknown names.
func (c *SchedulingConfig) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WindowsFor returns the opening windows configured for a weekday.
func (c *SchedulingConfig) WindowsFor(day time.Weekday) []TimeRange {
	if c == nil {
		return nil
	}
	return c.Availability[strings.ToLower(day.String())]
}

// IsHoliday reports whether the calendar date of t (in the tenant timezone) is excluded.
func (c *SchedulingConfig) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	day := t.In(c.Location()).Format(dateLayout)
	for _, holiday := range c.Holidays {
		if holiday == day {
			return true
		}
	}
	return false
}

func (c *SchedulingConfig) AutoConfirmAfter() time.Duration {
	if c == nil || c.AutoConfirmAfterHours == nil || *c.AutoConfirmAfterHours <= 0 {
		return DefaultAutoConfirmAfterHours * time.Hour
	}
	return time.Duration(*c.AutoConfirmAfterHours) * time.Hour
}

func (c *SchedulingConfig) CancellationWindow() time.Duration {
	if c == nil || c.CancellationWindowHours == nil || *c.CancellationWindowHours < 0 {
		return DefaultCancellationWindowHours * time.Hour
	}
	return time.Duration(*c.CancellationWindowHours) * time.Hour
}

type SchedulingConfigStore interface {
	Get(ctx context.Context, tenantID string) (*SchedulingConfig, error)
	Upsert(ctx context.Context, config *SchedulingConfig) error

}
