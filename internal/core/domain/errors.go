// Package domain defines the core domain models for pixelflut.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a stable error code.
type DomainError struct {
	Code    string // Error code (e.g., "PX-CANV-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Canvas Errors (CANV)
// ============================================================================

var (
	// ErrOutOfBounds indicates a coordinate outside the canvas.
	ErrOutOfBounds = NewDomainError("PX-CANV-4000", "coordinate out of bounds")

	// ErrInvalidDimensions indicates a canvas size that cannot be allocated.
	ErrInvalidDimensions = NewDomainError("PX-CANV-4001", "invalid canvas dimensions")

	// ErrDimensionMismatch indicates raw pixel data of the wrong length.
	ErrDimensionMismatch = NewDomainError("PX-CANV-4002", "pixel data does not match canvas dimensions")
)

// ============================================================================
// Color Errors (COLR)
// ============================================================================

var (
	// ErrInvalidColor indicates a color literal that is not RRGGBB or RRGGBBAA hex.
	ErrInvalidColor = NewDomainError("PX-COLR-4000", "invalid color")
)
