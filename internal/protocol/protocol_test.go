package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"SEND":    "PUT",
		"RECEIVE": "GET",
		"PUT":     "PUT",
		"GET":     "GET",
		"CONN":    "CONN",
		"DISC":    "DISC",
		"BOGUS":   "BOGUS",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonicalize(in), "action %s", in)
	}
}

func TestRequestContextString(t *testing.T) {
	req := Request{Context: map[string]any{"url": "mq://host/", "count": 3}}
	assert.Equal(t, "mq://host/", req.ContextString("url"))
	assert.Equal(t, "", req.ContextString("missing"))
	assert.Equal(t, "", req.ContextString("count"))
}

func TestRequestContextInt(t *testing.T) {
	req := Request{Context: map[string]any{"count": 3, "name": "x"}}
	assert.Equal(t, 3, req.ContextInt("count"))
	assert.Equal(t, 0, req.ContextInt("name"))
	assert.Equal(t, 0, req.ContextInt("missing"))

	var decoded Request
	raw := []byte(`{"action":"GET","context":{"count":7}}`)
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 7, decoded.ContextInt("count"))
}

func TestAbortResponse(t *testing.T) {
	resp := AbortResponse("worker-1")
	assert.False(t, resp.Success)
	assert.Equal(t, "abort", resp.Message)
	assert.Equal(t, "worker-1", resp.Worker)
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse("req-1", "worker-1", "boom")
	assert.False(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "worker-1", resp.Worker)
	assert.Equal(t, "boom", resp.Message)
}
