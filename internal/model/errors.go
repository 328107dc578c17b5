package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrNotAuthenticated is returned when an operation runs without a user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidRange marks a malformed or inverted date range.
	ErrInvalidRange = errors.New("invalid range")
	// ErrUpstream wraps failures of the event store or profile accessor.
	ErrUpstream = errors.New("upstream query failure")

	ErrNarrativeFailed      = errors.New("narrative generation failed")
	ErrNarrativeTimeout     = errors.New("narrative generation timed out")
	ErrNarrativeUnavailable = errors.New("narrative generator not configured")

	// ErrMergeCycle is returned when a person merge chain loops back on itself.
	ErrMergeCycle = errors.New("person merge cycle")
)
