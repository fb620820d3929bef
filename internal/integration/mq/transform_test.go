package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONTransformerMatches(t *testing.T) {
	tr := jsonTransformer{}
	match, err := tr.compile("$[?(@.id=='B')]")
	assert.NoError(t, err)

	ok, err := match(`{"id":"B"}`)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = match(`{"id":"A"}`)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONTransformerRejectsInvalidExpression(t *testing.T) {
	tr := jsonTransformer{}
	_, err := tr.compile("not a valid jsonpath [[[")
	assert.Error(t, err)
}

func TestJSONTransformerRejectsNonJSONBody(t *testing.T) {
	tr := jsonTransformer{}
	match, err := tr.compile("$.id")
	assert.NoError(t, err)

	_, err = match("not json")
	assert.Error(t, err)
}

func TestXMLTransformerMatches(t *testing.T) {
	tr := xmlTransformer{}
	match, err := tr.compile("//message[id='B']")
	assert.NoError(t, err)

	ok, err := match(`<message><id>B</id></message>`)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = match(`<message><id>A</id></message>`)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestXMLTransformerRejectsInvalidExpression(t *testing.T) {
	tr := xmlTransformer{}
	_, err := tr.compile("///[[[")
	assert.Error(t, err)
}

func TestContentTypeFromString(t *testing.T) {
	assert.Equal(t, ContentTypeJSON, contentTypeFromString("json"))
	assert.Equal(t, ContentTypeXML, contentTypeFromString(" XML "))
	assert.Equal(t, ContentTypeGuess, contentTypeFromString(""))
	assert.Equal(t, ContentTypeGuess, contentTypeFromString("yaml"))
}

func TestTransformerForRejectsGuess(t *testing.T) {
	_, err := transformerFor(ContentTypeGuess)
	assert.Error(t, err)
}
