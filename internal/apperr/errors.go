// Package apperr defines the error taxonomy shared by the ledger, the
// recurring engines and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced row does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a single-apply request targets a period
	// that already holds the materialized row.
	ErrConflict = errors.New("already applied in period")
)

// ValidationError rejects a request before any mutation happens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Invalid builds a *ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// InfrastructureError wraps store and price-source failures.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Infra wraps err as an *InfrastructureError. A nil err stays nil, and errors
// that already belong to the taxonomy are returned unchanged.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
