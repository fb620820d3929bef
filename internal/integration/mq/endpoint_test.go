package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpointQueueOnly(t *testing.T) {
	ep, err := parseEndpoint("queue:DEV.Q1")
	assert.NoError(t, err)
	assert.Equal(t, "DEV.Q1", ep.Queue)
	assert.False(t, ep.HasExpression)
}

func TestParseEndpointWithExpression(t *testing.T) {
	ep, err := parseEndpoint("queue:DEV.Q1, expression:$[?(@.id=='B')]")
	assert.NoError(t, err)
	assert.Equal(t, "DEV.Q1", ep.Queue)
	assert.True(t, ep.HasExpression)
	assert.Equal(t, "$[?(@.id=='B')]", ep.Expression)
}

func TestParseEndpointWithMaxMessageSize(t *testing.T) {
	ep, err := parseEndpoint("queue:DEV.Q1, max_message_size:4096")
	assert.NoError(t, err)
	assert.True(t, ep.HasMaxMsgSize)
	assert.Equal(t, 4096, ep.MaxMessageSize)
}

func TestParseEndpointRejectsUnknownKey(t *testing.T) {
	_, err := parseEndpoint("queue:DEV.Q1, bogus:x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParseEndpointRequiresQueue(t *testing.T) {
	_, err := parseEndpoint("expression:$.id")
	assert.Error(t, err)
}

func TestParseEndpointTrimsWhitespace(t *testing.T) {
	ep, err := parseEndpoint("  queue: DEV.Q1 ,  expression: $.id  ")
	assert.NoError(t, err)
	assert.Equal(t, "DEV.Q1", ep.Queue)
	assert.Equal(t, "$.id", ep.Expression)
}
