package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below matches exactly one kind via errors.Is,
// except PermissionError which also counts as a validation failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrPermission = errors.New("permission denied")
	ErrRepository = errors.New("repository failure")
)

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound is a shorthand used by repositories.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports malformed input or a violated business rule.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field string, value any, format string, args ...any) error {
	return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a status change is not in the transition table.
// To is empty when the requested event has no destination from any state.
type TransitionError struct {
	Event Event
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("event %q is not valid from status '%s'", e.Event, e.From)
	}
	return fmt.Sprintf("Invalid status transition from '%s' to '%s'", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrValidation }

// ConflictError is returned on a uniqueness violation within a scope.
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Resource, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PermissionError is returned when the caller's role lacks a capability.
type PermissionError struct {
	Resource string
	Action   string
	UserID   string
	Role     Role
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %q (%s) is not allowed to %s %s", e.UserID, e.Role, e.Action, e.Resource)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission || target == ErrValidation
}

// RepositoryError wraps a data-store failure, keeping the driver's details.
type RepositoryError struct {
	Op      string
	Code    string
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }
