package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a missing or invalid computation input.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration marks missing statutory or runtime configuration.
	ErrConfiguration = errors.New("configuration missing")
	// ErrConcurrency marks a conflicting concurrent operation.
	ErrConcurrency = errors.New("concurrent operation in progress")
	// ErrForbidden indicates the principal may not perform the action.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports the specific field that blocked a computation.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfigurationError aborts an operation before any write happens.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Message)
}

// Is lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NotFoundError is an ordinary "no result" outcome, e.g. no authenticity code on a
// capture. It never implies tampering.
type NotFoundError struct {
	Resource string
	Reason   string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return e.Reason
	}
	return e.Resource + ": " + e.Reason
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConcurrencyError rejects an operation racing another on the same resource.
type ConcurrencyError struct {
	Resource string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s: another operation is in progress", e.Resource)
}

// Is lets errors.Is match ErrConcurrency.
func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrency }
