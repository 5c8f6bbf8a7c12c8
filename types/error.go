package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the agent.
type ErrorCode string

// Cycle error codes
const (
	// ErrCodePerception: the perception collaborator failed; the cycle
	// aborted before admitting anything. The only code surfaced to callers
	// as a failed cycle.
	ErrCodePerception ErrorCode = "PERCEPTION_FAILURE"
	// ErrCodeResponder: the response-generation collaborator failed. The
	// interaction is still stored; only the response is degraded.
	ErrCodeResponder ErrorCode = "RESPONDER_FAILURE"
	// ErrCodeReflectionTimeout: the cycle deadline expired mid-reflection.
	ErrCodeReflectionTimeout ErrorCode = "REFLECTION_TIMEOUT"
	// ErrCodeInvalidTransition: a session attempted an illegal phase change.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrCodeAgentClosed: the orchestrator has been shut down.
	ErrCodeAgentClosed ErrorCode = "AGENT_CLOSED"
)

// Memory error codes
const (
	// ErrCodeInvalidRecord: malformed record on store (dimension mismatch,
	// empty content, non-positive decay rate). Rejected and logged; the
	// cycle continues without storing.
	ErrCodeInvalidRecord  ErrorCode = "INVALID_RECORD"
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeConceptUnknown ErrorCode = "CONCEPT_UNKNOWN"
)

// Background error codes
const (
	// ErrCodeConsolidation: a consolidation tick failed; it is retried on
	// the next schedule and never fatal to the agent.
	ErrCodeConsolidation ErrorCode = "CONSOLIDATION_FAILURE"
	// ErrCodePersistence: a snapshot save/load failed; retried with
	// backoff while the agent continues operating in-memory.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
)

// Configuration error codes
const (
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts a *Error from an error chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e := AsError(err); e != nil {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any error in the chain carries the code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
