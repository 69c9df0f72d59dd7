package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	total := hours*60 + minutes
	if hours < 0 || minutes < 0 || minutes > 59 || total > minutesPerDay {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return total, nil
}

// FormatClock is the inverse of ParseClock
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// AtMinute returns the instant minute minutes after midnight of day's calendar date in loc
func AtMinute(day time.Time, loc *time.Location, minute int) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
}

// StartOfDay returns local midnight of t's calendar date in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return AtMinute(t, loc, 0)
}

// ParseDate reads a "2006-01-02" date as local midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, NewValidationError("date", "expected YYYY-MM-DD, got %q", s)
	}
	return day, nil
}

// CombineDateTime joins a "2006-01-02" date and an "HH:MM" time in loc
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := ParseClock(clock)
	if err != nil || minute >= minutesPerDay {
		return time.Time{}, NewValidationError("time", "expected HH:MM, got %q", clock)
	}
	return AtMinute(day, loc, minute), nil
}
