package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both an unknown phone and a wrong password
	ErrInvalidCredentials = fmt.Errorf("%w: invalid phone or password", ErrUnauthorized)
	ErrConflict           = errors.New("user with this phone number already exists")
	ErrUnavailable        = errors.New("service temporarily unavailable")
	ErrInternal           = errors.New("internal error")
)

// ValidationError carries per-field messages keyed by the request field name.
type ValidationError struct {
	Fields map[string][]string
}

// NewFieldError builds a ValidationError for a single field
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
