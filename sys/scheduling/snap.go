package scheduling

import "time"

const DefaultDragSnap = 10 * time.Minute

// Snap rounds t to the nearest tick counted from midnight of t's own calendar day.
// Halfway values round up.
func Snap(t time.Time, tick time.Duration) time.Time {
	if tick <= 0 {
		return t
	}
	midnight := StartOfDay(t, t.Location())
	return midnight.Add(t.Sub(midnight).Round(tick))
}

// SnapOffset applies a continuous offset to start and snaps the result.
func SnapOffset(start time.Time, offset, tick time.Duration) time.Time {
	return Snap(start.Add(offset), tick)
}
