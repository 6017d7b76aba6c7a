// Package domain provides the engine's shared value objects, error taxonomy,
// and the capability ports runtime adapters implement.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes an engine error.
type ErrorKind string

const (
	// ErrorKindSessionNotFound indicates an unregistered session key.
	ErrorKindSessionNotFound ErrorKind = "session_not_found"

	// ErrorKindInvalidRequest indicates malformed caller input.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindNotFound indicates a missing stored record.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindRuntimeExecution indicates the external agent runtime failed
	// during a turn. Streaming consumers see it as a terminal error event,
	// never as a broken transport.
	ErrorKindRuntimeExecution ErrorKind = "runtime_execution"

	// ErrorKindStorage indicates the profile/trip store failed.
	ErrorKindStorage ErrorKind = "storage"
)

// EngineError is a typed failure surfaced to the interface layer.
type EngineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	cause   error
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.cause }

// Is matches engine errors by kind, so callers can compare against the
// constructors with errors.Is.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatusCode maps the error kind to a status for the interface layer.
func (e *EngineError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindSessionNotFound, ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrSessionNotFound creates a session-not-found error for the given key.
func ErrSessionNotFound(sessionID string) *EngineError {
	return &EngineError{
		Kind:    ErrorKindSessionNotFound,
		Message: fmt.Sprintf("session %s not found", sessionID),
	}
}

// ErrNotFound creates a not-found error for a stored record.
func ErrNotFound(resource, id string) *EngineError {
	return &EngineError{
		Kind:    ErrorKindNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

// ErrInvalidRequest creates an invalid-request error.
func ErrInvalidRequest(message string) *EngineError {
	return &EngineError{Kind: ErrorKindInvalidRequest, Message: message}
}

// ErrRuntimeExecution wraps an agent runtime failure.
func ErrRuntimeExecution(err error) *EngineError {
	return &EngineError{
		Kind:    ErrorKindRuntimeExecution,
		Message: "agent execution error",
		cause:   err,
	}
}

// ErrStorage wraps a store failure.
func ErrStorage(op string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindStorage, Message: op, cause: err}
}
