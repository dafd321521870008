// ABOUTME: Error taxonomy shared by every component
// ABOUTME: Callers classify failures with errors.Is against these sentinels
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected at the boundary
	ErrValidation = errors.New("validation error")
	// ErrExtraction marks an unreachable extractor or unparseable output
	ErrExtraction = errors.New("extraction failure")
	// ErrPersistence marks a storage failure that aborted a batch
	ErrPersistence = errors.New("persistence error")
	// ErrCardGeneration marks an empty or invalid synthesized card
	ErrCardGeneration = errors.New("card generation failed")
	// ErrScheduling marks a rejected review
	ErrScheduling = errors.New("scheduling error")
	// ErrNotFound marks a missing record
	ErrNotFound = errors.New("not found")
)

// ValidationError describes which field was rejected and why
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFound wraps ErrNotFound with the kind and id that was missing
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
