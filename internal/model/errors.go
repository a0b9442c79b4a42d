package model

import "errors"

var (
	// ErrValidation wraps field errors detected before any store call.
	ErrValidation = errors.New("validation failed")

	// ErrIntegrityViolation is returned when the store rejects a write because of a
	// uniqueness or not-null constraint. It is only observed at commit.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrAccessUnauthorized is the single denial used by the authorization gate.
	ErrAccessUnauthorized = errors.New("access unauthorized")
)

// ValidationError ties a field error to ErrValidation so callers can match either.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IntegrityError ties a field-specific conflict to ErrIntegrityViolation.
type IntegrityError struct {
	Constraint string
	Err        error // ErrUsernameTaken, ErrEmailTaken or nil when the field is unknown
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "integrity violation on " + e.Constraint
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
