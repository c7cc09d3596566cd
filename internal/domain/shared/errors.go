// Package shared contains the error kinds and domain events used across the
// learning tracker. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, checked with errors.Is().
var (
	// ErrNotFound means a user, lesson, quest or badge id does not resolve.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating a record that is already there.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrConflict signals a concurrent modification detected by persistence.
	// The completion orchestrator retries on it.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrInvalidDefinition marks a lesson, quest or badge definition that lacks
	// the fields its type needs.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrInvalidInput marks a malformed request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable is returned when a backing store cannot be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "progress", "lesson", "badge"
	Op      string // operation that failed, e.g. "Load", "Save"
	Kind    error  // base error kind for errors.Is() checks
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
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

// Named errors returned by repositories and handlers.
var (
	ErrUserNotFound     = NewDomainError("progress", "Load", ErrNotFound, "user progress not found")
	ErrUserExists       = NewDomainError("progress", "Create", ErrAlreadyExists, "user progress already exists")
	ErrProgressConflict = NewDomainError("progress", "Save", ErrConflict, "user progress was modified concurrently")
	ErrLessonNotFound   = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrQuestNotFound    = NewDomainError("quest", "Find", ErrNotFound, "quest not found")
	ErrBadgeNotFound    = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidDefinition checks if the error reports a malformed definition.
func IsInvalidDefinition(err error) bool {
	return errors.Is(err, ErrInvalidDefinition)
}

// IsValidation checks if the error is caused by bad input or definitions.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidDefinition)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrServiceUnavailable)
}
