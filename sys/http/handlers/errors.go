package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cleanbuddy-dispatch/sys/http/middleware"
	"cleanbuddy-dispatch/sys/scheduling"
)

const (
	codeValidation       = "VALIDATION"
	codeConflict         = "CONFLICT"
	codePermissionDenied = "PERMISSION_DENIED"
	codeNotFound         = "NOT_FOUND"
	codeInternal         = "INTERNAL"
	codeUnauthenticated  = "UNAUTHENTICATED"
)

// writeError maps a business error to its status. Internal errors are logged and their
// message is never sent to the client.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusInternalServerError, middleware.ErrorBody{Code: codeInternal, Message: "internal error"}

	var (
		policy   *scheduling.PolicyViolation
		conflict *scheduling.ConflictRejected
	)
	switch scheduling.KindOf(err) {
	case scheduling.KindValidation:
		status, body = http.StatusBadRequest, middleware.ErrorBody{Code: codeValidation, Message: err.Error()}
	case scheduling.KindPolicy:
		errors.As(err, &policy)
		status, body = http.StatusUnprocessableEntity, middleware.ErrorBody{
			Code:           string(policy.Code),
			Message:        policy.Reason,
			HoursRemaining: policy.HoursRemaining,
		}
	case scheduling.KindConflict:
		body = middleware.ErrorBody{Code: codeConflict, Message: err.Error()}
		if errors.As(err, &conflict) {
			body.CollidesWith = conflict.CollidesWith
		}
		status = http.StatusConflict
	case scheduling.KindPermission:
		status, body = http.StatusForbidden, middleware.ErrorBody{Code: codePermissionDenied, Message: err.Error()}
	case scheduling.KindNotFound:
		status, body = http.StatusNotFound, middleware.ErrorBody{Code: codeNotFound, Message: "not found"}
	default:
		h.logger.Printf("Error handling %s %s: %s", r.Method, r.URL.Path, err)
	}

	if err := middleware.EmitError(w, status, body); err != nil {
		h.logger.Printf("Error serializing error response: %s", err)
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Printf("Error serializing response: %s", err)
	}
}

// decodeJSON reads a request body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return scheduling.NewValidationError("body", "invalid JSON: %s", err)
	}
	return nil
}
