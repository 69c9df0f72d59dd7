package middleware

import (
	"encoding/json"
	"net/http"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Set for late cancellations
	HoursRemaining *float64 `json:"hoursRemaining,omitempty"`

	// Set for conflicts
	CollidesWith []string `json:"collidesWith,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// EmitErrorResponse writes the JSON error envelope shared by the middleware and the handlers
func EmitErrorResponse(w http.ResponseWriter, status int, code, message string) error {
	return EmitError(w, status, ErrorBody{Code: code, Message: message})
}

func EmitError(w http.ResponseWriter, status int, body ErrorBody) error {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(ErrorResponse{Error: body})
}
