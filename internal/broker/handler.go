package broker

import "github.com/grizzly-loadtest/async-messaged/internal/protocol"

// Handler is the behaviour a worker delegates requests to once it has
// resolved an integration for its assigned client. Implementations live in
// internal/integration/*; the broker package only depends on this
// interface so it never needs to know about MQ, Service Bus, etc.
type Handler interface {
	// Handle dispatches a single request and returns the response. It
	// never panics on a bad request: unknown actions and handler errors
	// are translated into success=false responses.
	Handle(req protocol.Request) protocol.Response
	// Close tears down any backend connection the handler is holding.
	Close() error
}

// HandlerFactory builds the Handler bound to a request's URL scheme
// (mq, mqs, sb, ...). It returns an error for unrecognised schemes.
type HandlerFactory func(scheme, workerID string) (Handler, error)
