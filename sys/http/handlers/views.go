package handlers

import (
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/billing"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/scheduling"
)

// AppointmentView is the wire form of an appointment, shared with the live board
type AppointmentView struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	CustomerID      string    `json:"customerId"`
	EmployeeID      *string   `json:"employeeId"`
	ServiceID       string    `json:"serviceId"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
	Status          string    `json:"status"`
	Price           string    `json:"price"`
	TipPrice        *string   `json:"tipPrice,omitempty"`
	Address         string    `json:"address"`
	Notes           string    `json:"notes,omitempty"`

	ActualStartTime         *time.Time `json:"actualStartTime,omitempty"`
	ActualEndTime           *time.Time `json:"actualEndTime,omitempty"`
	CleanerConfirmationDate *time.Time `json:"cleanerConfirmationDate,omitempty"`
	ClientConfirmationDate  *time.Time `json:"clientConfirmationDate,omitempty"`

	Rating        *int       `json:"rating,omitempty"`
	RatingComment string     `json:"ratingComment,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	CancelledByID *string    `json:"cancelledById,omitempty"`
}

func NewAppointmentView(a *store.Appointment) AppointmentView {
	view := AppointmentView{
		ID:                      a.ID,
		TenantID:                a.TenantID,
		CustomerID:              a.CustomerID,
		EmployeeID:              a.EmployeeID,
		ServiceID:               a.ServiceID,
		Start:                   a.StartTime,
		End:                     a.EndTime,
		DurationMinutes:         int(a.Duration() / time.Minute),
		Status:                  string(a.Status),
		Price:                   a.Price.StringFixed(2),
		Address:                 a.Address,
		Notes:                   a.Notes,
		ActualStartTime:         a.ActualStartTime,
		ActualEndTime:           a.ActualEndTime,
		CleanerConfirmationDate: a.CleanerConfirmationDate,
		ClientConfirmationDate:  a.ClientConfirmationDate,
		Rating:                  a.Rating,
		RatingComment:           a.RatingComment,
		CancelledAt:             a.CancelledAt,
		CancelledByID:           a.CancelledByID,
	}
	if a.TipPrice != nil {
		tip := a.TipPrice.StringFixed(2)
		view.TipPrice = &tip
	}
	return view
}

func newAppointmentViews(appointments []*store.Appointment) []AppointmentView {
	views := make([]AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		views = append(views, NewAppointmentView(a))
	}
	return views
}

type IntervalView struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SlotView struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Available   bool      `json:"available"`
	EmployeeIDs []string  `json:"employeeIds"`
}

func newSlotViews(slots []scheduling.Slot) []SlotView {
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		ids := slot.ResourceIDs
		if ids == nil {
			ids = []string{}
		}
		views = append(views, SlotView{Start: slot.Start, End: slot.End, Available: slot.Available, EmployeeIDs: ids})
	}
	return views
}

type StaffView struct {
	EmployeeID string         `json:"employeeId"`
	Name       string         `json:"name"`
	Booked     []IntervalView `json:"booked"`
}

func newStaffViews(staff []dispatch.StaffAvailability) []StaffView {
	views := make([]StaffView, 0, len(staff))
	for _, member := range staff {
		booked := make([]IntervalView, 0, len(member.BookedRanges))
		for _, r := range member.BookedRanges {
			booked = append(booked, IntervalView{Start: r.Start, End: r.End})
		}
		views = append(views, StaffView{EmployeeID: member.EmployeeID, Name: member.Name, Booked: booked})
	}
	return views
}

type ConflictsView struct {
	// Appointment id -> ids it overlaps with
	Conflicts map[string][]string `json:"conflicts"`
}

type SweepView struct {
	TenantID    string  `json:"tenantId"`
	CutoffHours float64 `json:"cutoffHours"`
	Processed   int     `json:"processed"`
	Failed      int     `json:"failed"`
	Skipped     bool    `json:"skipped"`
}

func newSweepView(result *billing.SweepResult) SweepView {
	return SweepView{
		TenantID:    result.TenantID,
		CutoffHours: result.Cutoff.Hours(),
		Processed:   result.Processed,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
	}
}
