package handlers

import (
	"net/http"
	"strconv"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// GET /api/v1/slots?date=2025-03-11&durationMinutes=60[&employeeId=][&region=]
func (h *handler) getAvailableSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	duration, err := strconv.Atoi(query.Get("durationMinutes"))
	if err != nil {
		h.writeError(w, r, scheduling.NewValidationError("durationMinutes", "expected a number of minutes"))
		return
	}

	req := dispatch.SlotsRequest{Date: query.Get("date"), DurationMin: duration, Region: query.Get("region")}
	if employeeID := query.Get("employeeId"); employeeID != "" {
		req.EmployeeID = &employeeID
	}

	slots, err := h.dispatch.GetAvailableSlots(r.Context(), actor(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSlotViews(slots))
}

// GET /api/v1/staff?date=2025-03-11[&region=]
func (h *handler) getStaffAvailability(w http.ResponseWriter, r *http.Request) {
	staff, err := h.dispatch.GetStaffAvailability(r.Context(), actor(r), r.URL.Query().Get("date"), r.URL.Query().Get("region"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStaffViews(staff))
}

// GET /api/v1/conflicts?date=2025-03-11
func (h *handler) listConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.dispatch.ListConflicts(r.Context(), actor(r), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ConflictsView{Conflicts: conflicts})
}

type autoConfirmRequest struct {
	TenantID    string `json:"tenantId"`
	CutoffHours *int   `json:"cutoffHours"`
}

// POST /api/v1/auto-confirm
func (h *handler) checkAutoConfirm(w http.ResponseWriter, r *http.Request) {
	var req autoConfirmRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	result, err := h.dispatch.CheckAutoConfirmAppointments(r.Context(), actor(r), req.TenantID, req.CutoffHours)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSweepView(result))
}

// GET /api/v1/appointments?date=2025-03-11
func (h *handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.dispatch.ListAppointments(r.Context(), actor(r), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newAppointmentViews(appointments))
}

type createAppointmentRequest struct {
	CustomerID      string  `json:"customerId"`
	ServiceID       string  `json:"serviceId"`
	EmployeeID      *string `json:"employeeId"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	DurationMinutes *int    `json:"durationMinutes"`
	Address         string  `json:"address"`
	Notes           string  `json:"notes"`
}

// POST /api/v1/appointments
func (h *handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.CreateAppointment(r.Context(), actor(r), dispatch.CreateAppointmentRequest{
		CustomerID: req.CustomerID,
		ServiceID:  req.ServiceID,
		EmployeeID: req.EmployeeID,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.DurationMinutes,
		Address:    req.Address,
		Notes:      req.Notes,
	})
	h.respondAppointment(w, r, http.StatusCreated, appointment, err)
}

// GET /api/v1/appointments/{appointmentID}
func (h *handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.dispatch.GetAppointment(r.Context(), actor(r), chi.URLParam(r, "appointmentID"))
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type moveRequest struct {
	Start         *time.Time `json:"start"`
	OffsetMinutes *int       `json:"offsetMinutes"`
	Reassign      bool       `json:"reassign"`
	EmployeeID    *string    `json:"employeeId"`
}

// POST /api/v1/appointments/{appointmentID}/move is a drag on the dispatch board
func (h *handler) proposeMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	move := dispatch.MoveRequest{
		AppointmentID: chi.URLParam(r, "appointmentID"),
		NewStart:      req.Start,
		Reassign:      req.Reassign,
		EmployeeID:    req.EmployeeID,
	}
	if req.OffsetMinutes != nil {
		offset := time.Duration(*req.OffsetMinutes) * time.Minute
		move.Offset = &offset
	}

	appointment, err := h.dispatch.ProposeMove(r.Context(), actor(r), move)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type updateTimeRequest struct {
	Start time.Time `json:"start"`
}

// PUT /api/v1/appointments/{appointmentID}/time
func (h *handler) updateTime(w http.ResponseWriter, r *http.Request) {
	var req updateTimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Start.IsZero() {
		h.writeError(w, r, scheduling.NewValidationError("start", "is required"))
		return
	}

	appointment, err := h.dispatch.UpdateAppointmentTime(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Start)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type updateResourceRequest struct {
	EmployeeID *string   `json:"employeeId"`
	Start      time.Time `json:"start"`
}

// PUT /api/v1/appointments/{appointmentID}/resource, a null employeeId returns it to the pool
func (h *handler) updateResource(w http.ResponseWriter, r *http.Request) {
	var req updateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Start.IsZero() {
		h.writeError(w, r, scheduling.NewValidationError("start", "is required"))
		return
	}

	appointment, err := h.dispatch.UpdateAppointmentResource(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.EmployeeID, req.Start)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// POST /api/v1/appointments/{appointmentID}/reschedule
func (h *handler) reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.RescheduleAppointment(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Date, req.Time)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type statusRequest struct {
	Status store.AppointmentStatus `json:"status"`
}

// PUT /api/v1/appointments/{appointmentID}/status
func (h *handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.UpdateAppointmentStatus(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Status)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

// PUT /api/v1/appointments/{appointmentID}/status/override
func (h *handler) overrideStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.OverrideAppointmentStatus(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Status)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

// POST /api/v1/appointments/{appointmentID}/cancel
func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.dispatch.CancelAppointment(r.Context(), actor(r), chi.URLParam(r, "appointmentID"))
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type confirmRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// POST /api/v1/appointments/{appointmentID}/confirm
func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.ConfirmService(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Rating, req.Comment)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

type tipRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PUT /api/v1/appointments/{appointmentID}/tip
func (h *handler) setTip(w http.ResponseWriter, r *http.Request) {
	var req tipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	appointment, err := h.dispatch.SetTip(r.Context(), actor(r), chi.URLParam(r, "appointmentID"), req.Amount)
	h.respondAppointment(w, r, http.StatusOK, appointment, err)
}

func (h *handler) respondAppointment(w http.ResponseWriter, r *http.Request, status int, appointment *store.Appointment, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, status, NewAppointmentView(appointment))
}
