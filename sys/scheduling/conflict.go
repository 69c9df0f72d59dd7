package scheduling

import (
	"sort"

	"cleanbuddy-dispatch/res/store"
)

// Conflicts maps an appointment id to the ids it overlaps with on the same employee
type Conflicts map[string][]string

// IDs returns every conflicting appointment id, sorted
func (c Conflicts) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindConflicts reports every appointment that overlaps, on the same assigned employee,
// with at least one other appointment of the collection. Unassigned and cancelled
// appointments never conflict. Both sides of a collision are reported.
func FindConflicts(appointments []*store.Appointment) Conflicts {
	byEmployee := make(map[string][]*store.Appointment)
	for _, a := range appointments {
		if a == nil || a.EmployeeID == nil || a.Status == store.AppointmentStatusCancelled {
			continue
		}
		byEmployee[*a.EmployeeID] = append(byEmployee[*a.EmployeeID], a)
	}

	conflicts := make(Conflicts)
	for _, booked := range byEmployee {
		sort.Slice(booked, func(i, j int) bool {
			return booked[i].StartTime.Before(booked[j].StartTime)
		})

		for i := 0; i < len(booked); i++ {
			a := booked[i]
			// Sorted by start: once b starts at or after a ends, nothing later can overlap a
			for j := i + 1; j < len(booked) && booked[j].StartTime.Before(a.EndTime); j++ {
				b := booked[j]
				if a.StartTime.Before(b.EndTime) {
					conflicts[a.ID] = append(conflicts[a.ID], b.ID)
					conflicts[b.ID] = append(conflicts[b.ID], a.ID)
				}
			}
		}
	}

	for id := range conflicts {
		sort.Strings(conflicts[id])
	}
	return conflicts
}

// CollisionsAfterMove runs FindConflicts on the hypothetical state where moved replaces its
// stored version among others, and returns what moved would collide with.
func CollisionsAfterMove(moved *store.Appointment, others []*store.Appointment) []string {
	hypothetical := make([]*store.Appointment, 0, len(others)+1)
	for _, a := range others {
		if a.ID != moved.ID {
			hypothetical = append(hypothetical, a)
		}
	}
	hypothetical = append(hypothetical, moved)

	return FindConflicts(hypothetical)[moved.ID]
}
