package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// Lifecycle errors
var (
	ErrUnknownAction = errors.New("unknown action")
	ErrWrongState    = errors.New("action not allowed in current status")
	ErrWrongRole     = errors.New("role not allowed to perform this action")
	ErrNotAssigned   = errors.New("user is not assigned to this invoice")
)

// TransitionError explains why a guard refused an action.
type TransitionError struct {
	Action Action
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s refused: %s", e.Action, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func refuse(action Action, err error, format string, args ...interface{}) error {
	return &TransitionError{Action: action, Reason: fmt.Sprintf(format, args...), Err: err}
}

// ValidationErrors maps a field name to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrInvalidInput
}

// Err returns nil when no field failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
