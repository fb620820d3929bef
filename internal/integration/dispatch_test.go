package integration

import (
	"errors"
	"testing"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherUnknownAction(t *testing.T) {
	d := NewDispatcher("worker-1")
	resp := d.Handle(protocol.Request{Action: "FROBNICATE", RequestID: "r1"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no implementation for FROBNICATE")
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, "worker-1", resp.Worker)
}

func TestDispatcherRegistersAliases(t *testing.T) {
	d := NewDispatcher("worker-1")
	calls := 0
	d.Register(func(req protocol.Request) (protocol.Response, error) {
		calls++
		return protocol.Response{Success: true}, nil
	}, "PUT", "SEND")

	resp := d.Handle(protocol.Request{Action: "SEND"})
	assert.True(t, resp.Success)
	resp = d.Handle(protocol.Request{Action: "PUT"})
	assert.True(t, resp.Success)
	assert.Equal(t, 2, calls)
}

func TestDispatcherTranslatesHandlerError(t *testing.T) {
	d := NewDispatcher("worker-1")
	d.Register(func(req protocol.Request) (protocol.Response, error) {
		return protocol.Response{}, errors.New("boom")
	}, "GET", "RECEIVE")

	resp := d.Handle(protocol.Request{Action: "RECEIVE", RequestID: "r2"})
	assert.False(t, resp.Success)
	assert.Equal(t, "boom", resp.Message)
	assert.Equal(t, "r2", resp.RequestID)
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	d := NewDispatcher("worker-1")
	d.Register(func(req protocol.Request) (protocol.Response, error) {
		panic("unexpected")
	}, "CONN")

	resp := d.Handle(protocol.Request{Action: "CONN"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "internal error")
}

func TestDispatcherFillsResponseTime(t *testing.T) {
	d := NewDispatcher("worker-1")
	d.Register(func(req protocol.Request) (protocol.Response, error) {
		return protocol.Response{Success: true}, nil
	}, "GET")

	resp := d.Handle(protocol.Request{Action: "GET"})
	assert.GreaterOrEqual(t, resp.ResponseTime, int64(0))
}
