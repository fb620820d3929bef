package mq

import (
	"strings"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"
)

// ContentType selects which transformer evaluates a browse expression.
type ContentType string

const (
	ContentTypeJSON  ContentType = "json"
	ContentTypeXML   ContentType = "xml"
	ContentTypeGuess ContentType = "guess"
)

// contentTypeFromString parses the request context's content_type field,
// defaulting to guess when absent.
func contentTypeFromString(value string) ContentType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ContentTypeJSON):
		return ContentTypeJSON
	case string(ContentTypeXML):
		return ContentTypeXML
	default:
		return ContentTypeGuess
	}
}

// matcher evaluates a compiled expression against one decoded message
// body, returning true if it selects the message.
type matcher func(body string) (bool, error)

// transformer compiles a browse expression into a matcher for one content
// type.
type transformer interface {
	compile(expression string) (matcher, error)
}

// transformerFor resolves the transformer for a content type, rejecting
// the ambiguous guess case the way the browse path requires an explicit
// content_type.
func transformerFor(ct ContentType) (transformer, error) {
	switch ct {
	case ContentTypeJSON:
		return jsonTransformer{}, nil
	case ContentTypeXML:
		return xmlTransformer{}, nil
	default:
		return nil, protocol.NewTransformError("content_type must be json or xml to use an expression", nil)
	}
}
