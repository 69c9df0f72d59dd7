package store

import "errors"

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrUniqueViolation = errors.New("store: duplicate key value violates unique constraint")
	ErrInvalidInput    = errors.New("store: invalid input")

	// Raised by the per-employee exclusion constraint on appointment time ranges
	ErrOverlap = errors.New("store: appointment overlaps another appointment of the same employee")
)
