package mq

import (
	"encoding/json"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"
	"github.com/oliveagle/jsonpath"
)

// jsonTransformer evaluates JSONPath expressions against JSON message
// bodies, e.g. `$[?(@.id=='B')]`.
type jsonTransformer struct{}

func (jsonTransformer) compile(expression string) (matcher, error) {
	compiled, err := jsonpath.Compile(expression)
	if err != nil {
		return nil, protocol.NewTransformError("invalid jsonpath expression", err)
	}

	return func(body string) (bool, error) {
		var decoded any
		if err := json.Unmarshal([]byte(body), &decoded); err != nil {
			return false, protocol.NewTransformError("message body is not valid json", err)
		}

		result, err := compiled.Lookup(decoded)
		if err != nil {
			// lookup failing to find a match is not an error, just a miss
			return false, nil
		}

		return matched(result), nil
	}, nil
}

func matched(result any) bool {
	if result == nil {
		return false
	}
	if slice, ok := result.([]any); ok {
		return len(slice) > 0
	}
	return true
}
