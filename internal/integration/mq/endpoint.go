package mq

import (
	"fmt"
	"strings"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"
)

// endpoint is a parsed "queue:<name>[, expression:<expr>][, max_message_size:<n>]"
// request-context endpoint string.
type endpoint struct {
	Queue          string
	Expression     string
	MaxMessageSize int
	HasExpression  bool
	HasMaxMsgSize  bool
}

var endpointKeys = map[string]bool{
	"queue":            true,
	"expression":       true,
	"max_message_size": true,
}

// parseEndpoint splits the endpoint grammar on commas, trims whitespace,
// and rejects any key outside {queue, expression, max_message_size}.
func parseEndpoint(raw string) (endpoint, error) {
	parts := strings.Split(raw, ",")
	ep := endpoint{}

	var unknown []string

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, ":")
		if !ok {
			return endpoint{}, protocol.NewConfigurationError(fmt.Sprintf("malformed endpoint segment: %q", part))
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)

		if !endpointKeys[key] {
			unknown = append(unknown, key)
			continue
		}

		switch key {
		case "queue":
			if i != 0 {
				return endpoint{}, protocol.NewConfigurationError("queue must be the first endpoint segment")
			}
			ep.Queue = value
		case "expression":
			ep.Expression = value
			ep.HasExpression = true
		case "max_message_size":
			var n int
			if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
				return endpoint{}, protocol.NewConfigurationError(fmt.Sprintf("invalid max_message_size: %q", value))
			}
			ep.MaxMessageSize = n
			ep.HasMaxMsgSize = true
		}
	}

	if len(unknown) > 0 {
		return endpoint{}, protocol.NewConfigurationError(fmt.Sprintf("unsupported endpoint argument(s): %s", strings.Join(unknown, ", ")))
	}
	if ep.Queue == "" {
		return endpoint{}, protocol.NewConfigurationError("no queue specified in endpoint")
	}

	return ep, nil
}
