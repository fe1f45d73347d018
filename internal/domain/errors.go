package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the requested row does not exist or is not visible
// to the caller.
var ErrNotFound = errors.New("not found")

// ErrLocationUnavailable is returned when no place name could be resolved
// for a coordinate pair.
var ErrLocationUnavailable = errors.New("location unavailable: check that location services are enabled and try again, or enter the place manually")

// ErrAssociatedVisits aborts a user deletion whose visits could not be
// detached and whose profile could not be removed.
var ErrAssociatedVisits = errors.New("cannot delete user because they have associated visits that cannot be unlinked")

// AuthorizationError indicates a missing session or an insufficient role.
type AuthorizationError struct {
	Action          string
	Role            UserRole
	Allowed         []UserRole
	Reason          string
	Unauthenticated bool
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	allowed := make([]string, 0, len(e.Allowed))
	for _, r := range e.Allowed {
		allowed = append(allowed, string(r))
	}
	return fmt.Sprintf("insufficient permissions: user has role %s, needed %s", e.Role, strings.Join(allowed, " or "))
}

// PersistenceError wraps a failure reported by the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError indicates bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ExternalServiceError indicates a failure of the identity registry, the
// object store or the geocoder.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it is nil or already a domain error.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Required returns a ValidationError for an empty field.
func Required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}
