package mq

import (
	"strings"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// xmlTransformer evaluates XPath expressions against XML message bodies.
type xmlTransformer struct{}

func (xmlTransformer) compile(expression string) (matcher, error) {
	// Validate the expression is well-formed XPath before ever touching a
	// message body, matching the up-front validation the browse loop does
	// for JSONPath.
	if _, err := xpath.Compile(expression); err != nil {
		return nil, protocol.NewTransformError("invalid xpath expression", err)
	}

	return func(body string) (bool, error) {
		doc, err := xmlquery.Parse(strings.NewReader(body))
		if err != nil {
			return false, protocol.NewTransformError("message body is not valid xml", err)
		}

		nodes, err := xmlquery.QueryAll(doc, expression)
		if err != nil {
			return false, protocol.NewTransformError("xpath evaluation failed", err)
		}

		return len(nodes) > 0, nil
	}, nil
}
