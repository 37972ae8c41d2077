// Package errors provides the error definitions shared by the saga packages.
//
// This file provides:
// - Sentinel errors for all error conditions
// - DecodeError, the per-record decode failure
// - Error category checking functions
// - ValidationErrors, the configuration error collector
// - Error wrapping utilities

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Decode errors
	ErrMalformedJSON    = errors.New("malformed JSON")
	ErrMissingField     = errors.New("missing required field")
	ErrWrongType        = errors.New("wrong field type")
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// Storage errors
	ErrStorageOpen  = errors.New("storage open failed")
	ErrStorageWrite = errors.New("storage write failed")

	// Lookup errors
	ErrNotFound    = errors.New("not found")
	ErrInvalidDate = errors.New("invalid date")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ============================================================================
// DecodeError
// ============================================================================

// DecodeError reports why one record of a source batch was rejected.
// Index is the position of the record in the batch, -1 for batch-level
// failures.
type DecodeError struct {
	Index int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("decode record %d field %s: %v", e.Index, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError builds a DecodeError for record index and field.
func NewDecodeError(index int, field string, err error) *DecodeError {
	return &DecodeError{Index: index, Field: field, Err: err}
}

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsDecode returns true if err is a decode error.
func IsDecode(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	return errors.Is(err, ErrMalformedJSON) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrWrongType) ||
		errors.Is(err, ErrInvalidTimestamp)
}

// IsStorage returns true if err is a storage error.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageOpen) ||
		errors.Is(err, ErrStorageWrite)
}

// IsNotFound returns true if err is a not-found or invalid-date error.
// Both map to a 404 at the HTTP layer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidDate)
}

// ============================================================================
// Validation
// ============================================================================

// NewValidation creates a field validation error wrapping ErrInvalidConfig.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
