package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrDelivery        = errors.New("delivery failed")
)

// Uniqueness violations reported by the user store on insert.
var (
	ErrEmailTaken  = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrHandleTaken = fmt.Errorf("username already taken: %w", ErrConflict)
)

// IsDomainError reports whether err was raised deliberately by a service and
// may be shown to the caller as is. Delivery failures are not included: their
// cause belongs to an external collaborator.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrBadRequest, ErrNotFound, ErrConflict, ErrValidation, ErrUnauthenticated} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
