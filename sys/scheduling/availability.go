package scheduling

import (
	"sort"
	"time"

	"cleanbuddy-dispatch/res/store"
)

const DefaultSlotTick = 30 * time.Minute

// Interval is a half-open time range [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Resource is one employee and the ranges already booked for them on the day
type Resource struct {
	ID   string
	Busy []Interval
}

func (r Resource) isFree(candidate Interval) bool {
	for _, busy := range r.Busy {
		if candidate.Overlaps(busy) {
			return false
		}
	}
	return true
}

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool

	// Resources free for the whole slot; a pool booking picks one of them later
	ResourceIDs []string
}

type SlotQuery struct {
	Date      time.Time     // Any instant of the calendar day, read in the tenant timezone
	Duration  time.Duration // Raised to the config minimum when shorter
	Tick      time.Duration // Zero means DefaultSlotTick; never coarser than the config minimum
	Resources []Resource    // One entry for a pinned employee, several for "any available"
	Now       time.Time
}

// ComputeSlots enumerates candidate start times across every open window of the day.
// A slot is available iff the day is not a holiday, it does not start before Now,
// it ends inside its window, and at least one resource is free for [start, start+duration).
func ComputeSlots(config *store.SchedulingConfig, q SlotQuery) []Slot {
	if config == nil {
		return nil
	}

	minDuration := time.Duration(config.MinDurationMin) * time.Minute
	duration := q.Duration
	if duration < minDuration {
		duration = minDuration
	}
	if duration <= 0 {
		return nil
	}

	tick := q.Tick
	if tick <= 0 {
		tick = DefaultSlotTick
	}
	if minDuration > 0 && tick > minDuration {
		tick = minDuration
	}

	loc := config.Location()
	holiday := config.IsHoliday(q.Date)

	slots := make([]Slot, 0)
	for _, window := range OpenWindows(config, q.Date) {
		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(tick) {
			candidate := Interval{Start: start, End: start.Add(duration)}
			slot := Slot{Start: candidate.Start.In(loc), End: candidate.End.In(loc)}

			if !holiday && !start.Before(q.Now) {
				for _, resource := range q.Resources {
					if resource.isFree(candidate) {
						slot.ResourceIDs = append(slot.ResourceIDs, resource.ID)
					}
				}
				slot.Available = len(slot.ResourceIDs) > 0
			}

			slots = append(slots, slot)
		}
	}
	return slots
}

// OpenWindows returns the open-hour ranges of date's weekday as instants, ordered by start.
// Malformed or empty ranges are skipped.
func OpenWindows(config *store.SchedulingConfig, date time.Time) []Interval {
	loc := config.Location()
	local := date.In(loc)

	windows := make([]Interval, 0)
	for _, r := range config.WindowsFor(local.Weekday()) {
		from, err := ParseClock(r.Start)
		if err != nil {
			continue
		}
		to, err := ParseClock(r.End)
		if err != nil || to <= from {
			continue
		}
		windows = append(windows, Interval{Start: AtMinute(local, loc, from), End: AtMinute(local, loc, to)})
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}

// WithinOpenHours reports whether the whole range fits in one open window and the day is not a holiday.
func WithinOpenHours(config *store.SchedulingConfig, candidate Interval) bool {
	if config.IsHoliday(candidate.Start) {
		return false
	}
	for _, window := range OpenWindows(config, candidate.Start) {
		if !candidate.Start.Before(window.Start) && !candidate.End.After(window.End) {
			return true
		}
	}
	return false
}

// BusyByResource groups live assigned appointments into per-employee busy ranges,
// leaving out the appointment being moved when skipID is set.
func BusyByResource(appointments []*store.Appointment, skipID string) map[string][]Interval {
	busy := make(map[string][]Interval)
	for _, a := range appointments {
		if a.EmployeeID == nil || a.Status == store.AppointmentStatusCancelled || a.ID == skipID {
			continue
		}
		busy[*a.EmployeeID] = append(busy[*a.EmployeeID], Interval{Start: a.StartTime, End: a.EndTime})
	}
	return busy
}
