package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced to callers. Every error returned by the services wraps one of these.
var (
	// ErrNotFound is returned when a lookup by owner id, slug or profile id matches nothing
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a duplicate owner id or a slug already used by another profile
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when fields are individually valid but inconsistent together
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned when a single field is malformed
	ErrValidation = errors.New("validation error")

	// ErrUpstreamUnavailable is returned when the identity provider or upload service fails
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrForbidden is returned when the caller does not own the profile it tries to change
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when an operation needs a caller identity and none was supplied
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error codes for authentication failures
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// FieldError describes a single malformed field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// NewFieldError builds a validation error for field.
func NewFieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// StateError names the fields that conflict with each other.
type StateError struct {
	Fields []string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", strings.Join(e.Fields, ", "), e.Reason)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// ConflictError names the unique field that collided.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s already in use", e.Field)
	}
	return fmt.Sprintf("%s %q already in use", e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ErrorField returns the field name carried by err, if any.
func ErrorField(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	var se *StateError
	if errors.As(err, &se) {
		return strings.Join(se.Fields, ",")
	}
	return ""
}
