package domain

import (
	"errors"
	"fmt"
)

// Error codes surfaced in API responses as {error_code, message, details}
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeProcessing  = "PROCESSING_ERROR"
	ErrCodeIntegration = "INTEGRATION_ERROR"
)

// ValidationError indicates malformed or out-of-range input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError indicates a referenced entity is absent
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a not-found error for an entity reference
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ProcessingError indicates a rule evaluation failure for a single item.
// It is logged and accumulated, never fatal for the whole batch.
type ProcessingError struct {
	Rule   string
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("rule %s failed: %s", e.Rule, e.Reason)
}

// IntegrationError indicates the persistence layer or a downstream
// collaborator is unavailable; fatal for the current operation, retryable.
type IntegrationError struct {
	System string
	Err    error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.System, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
