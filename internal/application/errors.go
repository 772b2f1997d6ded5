package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same key is already stored.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an apartment and PIN do not identify a resident.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrMissingReference is returned when a reservation points at a date or
	// room row that no longer exists.
	ErrMissingReference = errors.New("application: referenced row missing")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// LookupError reports a failed read of booking state. Nothing was changed.
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s failed: %v", e.Op, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write while creating or cancelling a
// reservation. Rows written by earlier steps are left in place.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence step %s failed: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuthError is returned for every failed authentication. Reason and Err are
// meant for operator logs; callers should only show that credentials were wrong.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidCredentials) hold for every AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

const (
	authReasonBlankInput       = "blank_input"
	authReasonUnknownApartment = "unknown_apartment"
	authReasonAmbiguous        = "ambiguous_identity"
	authReasonPINMismatch      = "pin_mismatch"
	authReasonStore            = "store_error"
)
