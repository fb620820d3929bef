package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerFactoryResolvesMQSchemes(t *testing.T) {
	factory := NewHandlerFactory()

	h, err := factory("mq", "worker-1")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.NoError(t, h.Close())

	h, err = factory("mqs", "worker-1")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.NoError(t, h.Close())
}

func TestHandlerFactoryResolvesServiceBus(t *testing.T) {
	factory := NewHandlerFactory()
	h, err := factory("sb", "worker-1")
	assert.NoError(t, err)
	assert.NotNil(t, h)
}

func TestHandlerFactoryRejectsUnknownScheme(t *testing.T) {
	factory := NewHandlerFactory()
	_, err := factory("ftp", "worker-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}
