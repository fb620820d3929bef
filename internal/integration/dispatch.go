// Package integration holds the per-scheme backend handlers (MQ, Service
// Bus) and the dispatch registry that maps an action string to the
// handler method that serves it.
package integration

import (
	"time"

	"github.com/grizzly-loadtest/async-messaged/internal/broker"
	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	log "github.com/sirupsen/logrus"
)

// ActionHandler serves one request for an already-bound backend
// connection.
type ActionHandler func(req protocol.Request) (protocol.Response, error)

// Dispatcher registers one ActionHandler per canonical action string and
// brackets every call with response-time measurement and panic-free error
// translation, matching the "no implementation for <action>" contract.
type Dispatcher struct {
	handlers map[string]ActionHandler
	worker   string
}

// NewDispatcher creates an empty registry for the given worker identity.
func NewDispatcher(worker string) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]ActionHandler),
		worker:   worker,
	}
}

// Register binds one or more action spellings (e.g. "PUT", "SEND") to the
// same handler.
func (d *Dispatcher) Register(handler ActionHandler, actions ...string) {
	for _, action := range actions {
		d.handlers[action] = handler
	}
}

// Handle canonicalises the request's action, looks it up, and brackets
// the call with timing. Unknown actions and handler errors both come back
// as success=false responses; the worker never sees a panic escape this
// boundary.
func (d *Dispatcher) Handle(req protocol.Request) (resp protocol.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"worker": d.worker, "panic": r}).Error("recovered from panic in action handler")
			resp = protocol.ErrorResponse(req.RequestID, d.worker, "internal error handling request")
		}
		resp.ResponseTime = time.Since(start).Milliseconds()
		if resp.RequestID == "" {
			resp.RequestID = req.RequestID
		}
		if resp.Worker == "" {
			resp.Worker = d.worker
		}
	}()

	action := protocol.Canonicalize(req.Action)
	handler, ok := d.handlers[action]
	if !ok {
		return protocol.ErrorResponse(req.RequestID, d.worker, action+": no implementation for "+req.Action)
	}

	out, err := handler(req)
	if err != nil {
		return protocol.ErrorResponse(req.RequestID, d.worker, err.Error())
	}
	return out
}

var _ broker.Handler = (*baseHandler)(nil)

// baseHandler adapts a Dispatcher plus a Close func into a broker.Handler.
type baseHandler struct {
	dispatcher *Dispatcher
	closeFunc  func() error
}

func (h *baseHandler) Handle(req protocol.Request) protocol.Response {
	return h.dispatcher.Handle(req)
}

func (h *baseHandler) Close() error {
	if h.closeFunc == nil {
		return nil
	}
	return h.closeFunc()
}
