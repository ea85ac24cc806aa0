// Package domain defines core types, interfaces, and errors for the
// just-in-time access lifecycle.
package domain

import "fmt"

// NotFoundError indicates an unknown request or principal.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// InvalidStateTransitionError indicates that an operation's status
// precondition did not hold. It is the expected outcome of races and
// duplicate deliveries, surfaced as a conflict, never as corruption.
type InvalidStateTransitionError struct {
	Message string
}

func (e *InvalidStateTransitionError) Error() string { return e.Message }

// ProviderError indicates an authorization provider failure that is not
// one of the named idempotent-success conditions.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SchedulingError indicates a trigger-service failure. Non-fatal: the
// request stays ACTIVE and remains manually revocable.
type SchedulingError struct {
	Message string
}

func (e *SchedulingError) Error() string { return e.Message }

// NotificationError indicates an outbound messaging failure. Always
// logged, never alters lifecycle state.
type NotificationError struct {
	Message string
}

func (e *NotificationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidStateTransition creates an InvalidStateTransitionError with a
// formatted message.
func ErrInvalidStateTransition(format string, args ...interface{}) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{Message: fmt.Sprintf(format, args...)}
}

// ErrProvider creates a ProviderError with a provider error code and a
// formatted message.
func ErrProvider(code, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrScheduling creates a SchedulingError with a formatted message.
func ErrScheduling(format string, args ...interface{}) *SchedulingError {
	return &SchedulingError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotification creates a NotificationError with a formatted message.
func ErrNotification(format string, args ...interface{}) *NotificationError {
	return &NotificationError{Message: fmt.Sprintf(format, args...)}
}
