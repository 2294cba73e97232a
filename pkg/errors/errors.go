// Package errors provides custom error types for the boardstream system.
// These errors enable programmatic error checking with errors.Is and
// errors.As across the registry, the transport endpoint and the client.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Token rejection reasons.
var (
	// ErrMalformedToken indicates the token is not three non-empty segments or its payload is not JSON
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpired indicates the token exp claim has passed
	ErrExpired = errors.New("token expired")

	// ErrInvalidSignature indicates the recomputed signature does not match
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMisconfiguredServer indicates the verifier has no signing secret
	ErrMisconfiguredServer = errors.New("server misconfigured")
)

// Common sentinel errors for the boardstream system
var (
	// ErrBroadcastUnauthorized indicates a missing or wrong internal broadcast key
	ErrBroadcastUnauthorized = errors.New("broadcast unauthorized")

	// ErrTransport indicates a network-level failure on an open stream
	ErrTransport = errors.New("transport error")

	// ErrStaleConnection indicates the client watchdog saw no traffic for too long
	ErrStaleConnection = errors.New("stale connection")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrClosed indicates use of a closed component
	ErrClosed = errors.New("closed")
)

// AuthenticationError represents a rejected credential.
// Reason is one of the token rejection sentinels.
type AuthenticationError struct {
	Reason  error
	Message string
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %v: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("authentication failed: %v", e.Reason)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Reason
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(reason error, message string) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Message: message}
}

// TransportError represents a failure on a stream transport
type TransportError struct {
	Operation string // "connect", "write", "read", "close"
	Target    string
	Err       error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("transport error during %s to %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a new TransportError
func NewTransportError(operation, target string, err error) *TransportError {
	return &TransportError{Operation: operation, Target: target, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// Helper functions for error checking

// IsAuthentication checks if an error is any token rejection
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapTransport wraps an error as a TransportError
func WrapTransport(operation, target string, err error) error {
	if err == nil {
		return nil
	}
	return NewTransportError(operation, target, err)
}
