package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a handler-boundary failure per the error taxonomy:
// configuration, connection, transport, timeout and transform errors are
// all surfaced to the client as success=false rather than killing a worker.
type ErrorCode string

const (
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeConnection    ErrorCode = "CONNECTION"
	CodeTransport     ErrorCode = "TRANSPORT"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeTransform     ErrorCode = "TRANSFORM"
)

// HandlerError is a structured error carrying the taxonomy code plus
// enough context to render a client-facing message.
type HandlerError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *HandlerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError reports a missing or invalid request field.
func NewConfigurationError(message string) *HandlerError {
	return &HandlerError{Code: CodeConfiguration, Message: message}
}

// NewConnectionError reports a CONN failure against the backend.
func NewConnectionError(message string, cause error) *HandlerError {
	return &HandlerError{Code: CodeConnection, Message: message, Cause: cause}
}

// NewTransportError reports a transient transport failure, e.g. a
// disconnect mid-GET, retried by the caller before becoming fatal.
func NewTransportError(message string, cause error) *HandlerError {
	return &HandlerError{Code: CodeTransport, Message: message, Cause: cause}
}

// NewTimeoutError reports that message_wait elapsed without a result.
func NewTimeoutError(message string) *HandlerError {
	return &HandlerError{Code: CodeTimeout, Message: message}
}

// NewTransformError reports that a browse expression failed to parse or
// evaluate against a message body.
func NewTransformError(message string, cause error) *HandlerError {
	return &HandlerError{Code: CodeTransform, Message: message, Cause: cause}
}

// IsRetryable reports whether the caller should retry the operation that
// produced err, per the taxonomy in spec.md §7 (only transport errors are).
func IsRetryable(err error) bool {
	var herr *HandlerError
	if errors.As(err, &herr) {
		return herr.Code == CodeTransport
	}
	return false
}
