package integration

import (
	"fmt"

	"github.com/grizzly-loadtest/async-messaged/internal/broker"
	"github.com/grizzly-loadtest/async-messaged/internal/integration/mq"
	"github.com/grizzly-loadtest/async-messaged/internal/integration/sb"
	"github.com/grizzly-loadtest/async-messaged/internal/protocol"
)

// NewHandlerFactory returns the broker.HandlerFactory wired to every
// scheme this daemon understands: mq/mqs to the IBM MQ handler, sb to the
// Service Bus stub. Any other scheme is a ConfigurationError.
func NewHandlerFactory() broker.HandlerFactory {
	return func(scheme, workerID string) (broker.Handler, error) {
		switch scheme {
		case "mq", "mqs":
			return newMQHandler(workerID, scheme == "mqs"), nil
		case "sb":
			return newServiceBusHandler(workerID), nil
		default:
			return nil, protocol.NewConfigurationError(fmt.Sprintf("integration for %s:// is not implemented", scheme))
		}
	}
}

func newMQHandler(workerID string, tls bool) broker.Handler {
	h := mq.NewHandler(workerID, tls)
	d := NewDispatcher(workerID)
	d.Register(h.Conn, "CONN")
	d.Register(h.Disc, "DISC")
	d.Register(h.Put, "PUT", "SEND")
	d.Register(h.Get, "GET", "RECEIVE")
	return &baseHandler{dispatcher: d, closeFunc: h.Close}
}

func newServiceBusHandler(workerID string) broker.Handler {
	h := sb.NewHandler(workerID)
	d := NewDispatcher(workerID)
	d.Register(h.Conn, "CONN")
	d.Register(h.Disc, "DISC")
	d.Register(h.Put, "PUT", "SEND")
	d.Register(h.Get, "GET", "RECEIVE")
	return &baseHandler{dispatcher: d, closeFunc: h.Close}
}
