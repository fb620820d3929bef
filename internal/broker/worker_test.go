package broker

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	"github.com/stretchr/testify/assert"
)

type stubHandler struct {
	resp     protocol.Response
	closeErr error
	calls    int
}

func (h *stubHandler) Handle(req protocol.Request) protocol.Response {
	h.calls++
	return h.resp
}

func (h *stubHandler) Close() error { return h.closeErr }

func newTestWorker(factory HandlerFactory) *Worker {
	return NewWorker("worker-1", "inproc://test", factory)
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	w := newTestWorker(nil)
	resp := w.process([]byte("not json"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "invalid request")
}

func TestProcessRejectsWorkerMismatch(t *testing.T) {
	w := newTestWorker(nil)
	body, _ := json.Marshal(protocol.Request{Action: "GET", Worker: "worker-2"})
	resp := w.process(body)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "expected worker-1")
}

func TestProcessResolvesHandlerFromURLScheme(t *testing.T) {
	stub := &stubHandler{resp: protocol.Response{Success: true}}
	var seenScheme string
	factory := func(scheme, workerID string) (Handler, error) {
		seenScheme = scheme
		assert.Equal(t, "worker-1", workerID)
		return stub, nil
	}

	w := newTestWorker(factory)
	body, _ := json.Marshal(protocol.Request{
		Action:  "GET",
		Context: map[string]any{"url": "mq://host/queue:DEV.Q"},
	})

	resp := w.process(body)
	assert.True(t, resp.Success)
	assert.Equal(t, "mq", seenScheme)
	assert.Equal(t, "worker-1", resp.Worker)
	assert.Equal(t, 1, stub.calls)
	assert.True(t, w.Bound())
}

func TestProcessReusesResolvedHandler(t *testing.T) {
	stub := &stubHandler{resp: protocol.Response{Success: true}}
	calls := 0
	factory := func(scheme, workerID string) (Handler, error) {
		calls++
		return stub, nil
	}

	w := newTestWorker(factory)
	body, _ := json.Marshal(protocol.Request{
		Action:  "GET",
		Context: map[string]any{"url": "mq://host/queue:DEV.Q"},
	})

	w.process(body)
	w.process(body)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, stub.calls)
}

func TestProcessHandlerResolutionFailure(t *testing.T) {
	factory := func(scheme, workerID string) (Handler, error) {
		return nil, errors.New("no handler for scheme")
	}
	w := newTestWorker(factory)
	body, _ := json.Marshal(protocol.Request{
		Action:  "CONN",
		Context: map[string]any{"url": "sb://host/queue"},
	})

	resp := w.process(body)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no handler for scheme")
	assert.False(t, w.Bound())
}

func TestProcessMissingURLOnFirstRequest(t *testing.T) {
	w := newTestWorker(func(scheme, workerID string) (Handler, error) {
		t.Fatal("factory should not be called without a url")
		return nil, nil
	})
	body, _ := json.Marshal(protocol.Request{Action: "GET"})

	resp := w.process(body)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no url")
}
