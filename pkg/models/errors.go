package models

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or inconsistent input. Never
// partially applied; always recoverable by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateError reports a transition or action that is not legal for the
// entity's current status. Unmet preconditions are enumerated, never a
// bare rejection.
type StateError struct {
	Entity  string
	Current string
	Message string
	Unmet   []string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s in status %s: %s", e.Entity, e.Current, e.Message)
	if len(e.Unmet) > 0 {
		msg += ": " + strings.Join(e.Unmet, ", ")
	}
	return msg
}

// NewStateError builds a StateError without enumerated preconditions.
func NewStateError(entity, current, message string) *StateError {
	return &StateError{Entity: entity, Current: current, Message: message}
}

// AuthorizationError reports a missing capability for the requested scope.
type AuthorizationError struct {
	Capability string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor lacks capability %s", e.Capability)
}

// NewAuthorizationError builds an AuthorizationError for one capability.
func NewAuthorizationError(capability string) *AuthorizationError {
	return &AuthorizationError{Capability: capability}
}

// NotFoundError reports a missing plan/cycle/version/approval/result.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError builds a NotFoundError for one entity.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}
