// Package gpu structured error types for better error handling
package gpu

import (
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Device or context unavailable or lost
	ErrTypeDevice ErrorType = iota
	// Buffer capacity does not match the layout it is used with
	ErrTypeCapacity
	// Device reported no data on readback
	ErrTypeReadback
	// Invalid argument errors
	ErrTypeInvalidArg
	// Input validation errors (malformed graphs)
	ErrTypeValidation
	// Execution errors
	ErrTypeExecution
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same type. A target with a non-empty Message
// must also match on Message, so package sentinels can be specific.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeDevice:
		return "Device"
	case ErrTypeCapacity:
		return "Capacity"
	case ErrTypeReadback:
		return "Readback"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeValidation:
		return "Validation"
	case ErrTypeExecution:
		return "Execution"
	default:
		return "Unknown"
	}
}

// NewDeviceError creates a device error
func NewDeviceError(op, message string, err error) error {
	return &Error{Type: ErrTypeDevice, Op: op, Message: message, Err: err}
}

// NewCapacityError creates a capacity mismatch error
func NewCapacityError(op string, got, want int) error {
	return &Error{
		Type:    ErrTypeCapacity,
		Op:      op,
		Message: fmt.Sprintf("buffer holds %d bytes, layout needs %d", got, want),
	}
}

// NewReadbackError creates a readback error
func NewReadbackError(op, message string, err error) error {
	return &Error{Type: ErrTypeReadback, Op: op, Message: message, Err: err}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op, message string) error {
	return &Error{Type: ErrTypeInvalidArg, Op: op, Message: message}
}

// NewValidationError creates an input validation error
func NewValidationError(op, message string) error {
	return &Error{Type: ErrTypeValidation, Op: op, Message: message}
}

// NewExecutionError creates an execution error
func NewExecutionError(op, message string, err error) error {
	return &Error{Type: ErrTypeExecution, Op: op, Message: message, Err: err}
}

// Kind sentinels, matched with errors.Is.
var (
	// ErrDeviceUnavailable matches every device error.
	ErrDeviceUnavailable = &Error{Type: ErrTypeDevice}

	// ErrDeviceLost is reported after Destroy or a kernel fault.
	ErrDeviceLost = &Error{Type: ErrTypeDevice, Op: "Device", Message: "device lost"}

	// ErrCapacity matches every capacity mismatch.
	ErrCapacity = &Error{Type: ErrTypeCapacity}

	// ErrNoData matches every readback that produced no data.
	ErrNoData = &Error{Type: ErrTypeReadback}

	// ErrInvalidArg matches every invalid argument error.
	ErrInvalidArg = &Error{Type: ErrTypeInvalidArg}

	// ErrValidation matches every input validation error.
	ErrValidation = &Error{Type: ErrTypeValidation}

	// ErrExecution matches every execution error.
	ErrExecution = &Error{Type: ErrTypeExecution}
)
