// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
// These are the abstract failure kinds every core operation terminates with;
// the HTTP layer owns the mapping to transport codes.
var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists indicates a duplicate unique key.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidState indicates an operation is illegal for the entity's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument indicates malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden indicates the actor lacks the required capability.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized indicates the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates traffic shaping rejected the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrStorageFailure indicates the underlying store is unavailable.
	// This is the only kind a caller might reasonably retry.
	ErrStorageFailure = errors.New("storage failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "course", "enrollment", "user"
	Op      string // Operation that failed, e.g., "Submit", "Enroll"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidState checks if the error is an illegal-transition error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsForbidden checks if the error is a capability error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRetryable checks if the operation can be retried without changing
// the request. Only storage failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
