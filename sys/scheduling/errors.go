package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"cleanbuddy-dispatch/res/store"
)

// ValidationError reports malformed or missing input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type PolicyCode string

const (
	PolicyLateCancellation  PolicyCode = "LATE_CANCELLATION"
	PolicyIllegalTransition PolicyCode = "ILLEGAL_TRANSITION"
	PolicyNotModifiable     PolicyCode = "NOT_MODIFIABLE"
	PolicyWrongStatus       PolicyCode = "WRONG_STATUS"
	PolicyOutsideOpenHours  PolicyCode = "OUTSIDE_OPEN_HOURS"
)

// PolicyViolation is a business rule rejection that must reach the end user with its reason
type PolicyViolation struct {
	Code   PolicyCode
	Reason string

	// Set for late cancellations
	HoursRemaining *float64
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func NewPolicyViolation(code PolicyCode, format string, args ...interface{}) error {
	return &PolicyViolation{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ConflictRejected means the move would double-book EmployeeID; callers should reload
// before proposing another move
type ConflictRejected struct {
	AppointmentID string
	EmployeeID    string
	CollidesWith  []string
}

func (e *ConflictRejected) Error() string {
	if len(e.CollidesWith) == 0 {
		return fmt.Sprintf("conflict: appointment %s overlaps another booking of employee %s", e.AppointmentID, e.EmployeeID)
	}
	return fmt.Sprintf("conflict: appointment %s overlaps %s on employee %s",
		e.AppointmentID, strings.Join(e.CollidesWith, ", "), e.EmployeeID)
}

type PermissionDenied struct {
	Action string
	Reason string
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: %s: %s", e.Action, e.Reason)
}

func NewPermissionDenied(action, reason string) error {
	return &PermissionDenied{Action: action, Reason: reason}
}

type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindPolicy     Kind = "POLICY_VIOLATION"
	KindConflict   Kind = "CONFLICT"
	KindPermission Kind = "PERMISSION_DENIED"
	KindNotFound   Kind = "NOT_FOUND"
	KindInternal   Kind = "INTERNAL"
)

// KindOf classifies any error returned by the engine. Everything unrecognised is internal.
func KindOf(err error) Kind {
	var (
		validation *ValidationError
		policy     *PolicyViolation
		conflict   *ConflictRejected
		permission *PermissionDenied
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation), errors.Is(err, store.ErrInvalidInput):
		return KindValidation
	case errors.As(err, &policy):
		return KindPolicy
	case errors.As(err, &conflict), errors.Is(err, store.ErrOverlap):
		return KindConflict
	case errors.As(err, &permission):
		return KindPermission
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
