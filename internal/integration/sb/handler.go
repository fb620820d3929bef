// Package sb is the Azure Service Bus integration handler. Per spec.md
// §1 Service Bus is a named collaborator but out of this system's
// detailed scope: the sb:// scheme resolves to this handler, but every
// action, CONN included, reports that the integration is not implemented.
package sb

import (
	"github.com/grizzly-loadtest/async-messaged/internal/protocol"
)

// Handler is the per-worker Service Bus stub.
type Handler struct {
	workerID string
}

// NewHandler creates a Service Bus handler for workerID.
func NewHandler(workerID string) *Handler {
	return &Handler{workerID: workerID}
}

// Close is a no-op; the stub never opens a real backend connection.
func (h *Handler) Close() error {
	return nil
}

// Conn recognises the sb:// scheme but goes no further: Service Bus is a
// named collaborator outside this system's detailed scope.
func (h *Handler) Conn(req protocol.Request) (protocol.Response, error) {
	if req.ContextString("url") == "" {
		return protocol.Response{}, protocol.NewConfigurationError("no context in request")
	}
	return protocol.Response{}, protocol.NewConfigurationError("integration for sb:// is not implemented")
}

// Disc always reports the stub's scope limitation.
func (h *Handler) Disc(req protocol.Request) (protocol.Response, error) {
	return protocol.Response{}, protocol.NewConfigurationError("integration for sb:// is not implemented")
}

// Put always reports the stub's scope limitation.
func (h *Handler) Put(req protocol.Request) (protocol.Response, error) {
	return protocol.Response{}, protocol.NewConfigurationError("integration for sb:// is not implemented")
}

// Get always reports the stub's scope limitation.
func (h *Handler) Get(req protocol.Request) (protocol.Response, error) {
	return protocol.Response{}, protocol.NewConfigurationError("integration for sb:// is not implemented")
}
