package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerErrorMessage(t *testing.T) {
	err := NewConfigurationError("missing url")
	assert.Equal(t, "missing url", err.Error())

	wrapped := NewTransportError("get failed", errors.New("connection reset"))
	assert.Equal(t, "get failed: connection reset", wrapped.Error())
	assert.Equal(t, "connection reset", errors.Unwrap(wrapped).Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransportError("x", nil)))
	assert.False(t, IsRetryable(NewConfigurationError("x")))
	assert.False(t, IsRetryable(NewTimeoutError("x")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestAbortSentinel(t *testing.T) {
	wrapped := &RequestError{Message: "abort"}
	assert.Equal(t, "abort", wrapped.Error())
	assert.True(t, errors.Is(ErrAbort, ErrAbort))
}
