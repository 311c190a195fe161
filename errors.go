// Package cccl structured error types for launch failure reporting
package cccl

import (
	"fmt"
)

// ErrorType represents categories of launch errors
type ErrorType int

const (
	// Device memory allocation failures (staging)
	ErrTypeAllocation ErrorType = iota
	// Launch configuration failures (occupancy solver)
	ErrTypeConfiguration
	// Runtime faults inside a kernel invocation
	ErrTypeKernel
	// Invalid argument errors
	ErrTypeInvalidArg
)

// Error represents a structured launch error with context.
//
// Allocation and configuration errors are synchronous: they are returned from
// the Launch call itself, before any kernel invocation is enqueued. Kernel
// errors are deferred: they surface at the next Synchronize on the stream the
// offending launch was issued to, never from Launch.
type Error struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Err     error       // Underlying error if any
	Launch  LaunchID    // Offending launch for deferred kernel errors
	Context interface{} // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cccl %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("cccl %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeAllocation:
		return "Allocation"
	case ErrTypeConfiguration:
		return "Configuration"
	case ErrTypeKernel:
		return "Kernel"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewAllocationError creates a staging-memory allocation error
func NewAllocationError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeAllocation,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError creates a launch configuration error
func NewConfigurationError(op string, message string) error {
	return &Error{
		Type:    ErrTypeConfiguration,
		Op:      op,
		Message: message,
	}
}

// NewKernelError creates a deferred kernel execution error.
// The launch ID identifies which enqueued launch faulted, since the error is
// only observed at a later synchronization point.
func NewKernelError(launch LaunchID, message string, err error) error {
	return &Error{
		Type:    ErrTypeKernel,
		Op:      "Launch",
		Message: fmt.Sprintf("launch %s: %s", launch, message),
		Err:     err,
		Launch:  launch,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// Common pre-defined errors

var (
	// ErrNoFeasibleConfiguration indicates the kernel's per-thread resource
	// footprint exceeds hardware capacity at every candidate block size
	ErrNoFeasibleConfiguration = NewConfigurationError("BlockSizeForMaxOccupancy",
		"no block size satisfies the kernel's resource constraints")

	// ErrOutOfMemory indicates staging memory allocation failure
	ErrOutOfMemory = NewAllocationError("Allocate", "out of device memory", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Allocate", "size must be positive")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewAllocationError("Free", "double free detected", nil)

	// ErrInvalidGeometry indicates a non-positive block or grid size
	ErrInvalidGeometry = NewInvalidArgError("Launch", "grid and block sizes must be positive")
)

// IsAllocationError checks if an error is a staging allocation error
func IsAllocationError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTypeAllocation
	}
	return false
}

// IsConfigurationError checks if an error is an occupancy configuration error
func IsConfigurationError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTypeConfiguration
	}
	return false
}

// IsKernelError checks if an error is a deferred kernel execution error
func IsKernelError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTypeKernel
	}
	return false
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTypeInvalidArg
	}
	return false
}
