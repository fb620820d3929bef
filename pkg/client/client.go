// Package client is the load-test driver's half of the wire protocol: it
// owns the DEALER socket connected to the router's frontend, stamps each
// outgoing request with a request_id, and logs a warning when the reply it
// receives carries a different one.
package client

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// pollInterval is how often the client polls its socket while waiting for
// a reply; an empty poll iteration that takes longer than one second is
// logged as drift rather than silently absorbed.
const pollInterval = 100 * time.Millisecond

// Client is a synchronous request/reply driver bound to one router
// frontend endpoint. It is not safe for concurrent use by multiple
// goroutines issuing overlapping requests: each request blocks until its
// reply (or a timeout) arrives.
type Client struct {
	endpoint string
	socket   *czmq.Sock
	poller   *czmq.Poller
	timeout  time.Duration
}

// New connects to the router frontend at endpoint.
func New(endpoint string, timeout time.Duration) (c *Client, err error) {
	c = &Client{endpoint: endpoint, timeout: timeout}

	if err = c.connect(); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(c, (*Client).Close)

	return c, nil
}

func (c *Client) connect() (err error) {
	_ = c.Close()

	if c.socket, err = czmq.NewDealer(c.endpoint); err != nil {
		log.WithFields(log.Fields{"endpoint": c.endpoint, "error": err}).Error("failed to create client dealer socket")
		return err
	}

	if c.poller, err = czmq.NewPoller(c.socket); err != nil {
		log.WithFields(log.Fields{"endpoint": c.endpoint, "error": err}).Error("failed to create client poller")
		c.socket.Destroy()
		c.socket = nil
		return err
	}

	log.WithFields(log.Fields{"endpoint": c.endpoint}).Debug("client connected to router")
	return nil
}

// Close tears down the client's socket and poller.
func (c *Client) Close() error {
	if c.poller != nil {
		c.poller.Destroy()
		c.poller = nil
	}
	if c.socket != nil {
		c.socket.Destroy()
		c.socket = nil
	}
	return nil
}

// Request sends req and blocks for its correlated reply. If req has no
// RequestID, one is assigned. A success=false reply with message "abort"
// surfaces as protocol.ErrAbort; any other failure surfaces as a
// *protocol.RequestError.
func (c *Client) Request(req protocol.Request) (protocol.Response, error) {
	if req.RequestID == "" {
		req.RequestID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Frame 0: empty (REQ emulation over DEALER)
	// Frame 1: request JSON
	if err := c.socket.SendMessage([][]byte{{}, body}); err != nil {
		return protocol.Response{}, fmt.Errorf("failed to send request: %w", err)
	}

	return c.await(req.RequestID)
}

func (c *Client) await(requestID string) (protocol.Response, error) {
	deadline := time.Now().Add(c.timeout)

	for {
		iterStart := time.Now()
		if iterStart.After(deadline) {
			return protocol.Response{}, protocol.NewTimeoutError("no reply received within message_wait")
		}

		sock, err := c.poller.Wait(int(pollInterval / time.Millisecond))
		if err != nil {
			return protocol.Response{}, fmt.Errorf("client poller error: %w", err)
		}
		if sock == nil {
			if elapsed := time.Since(iterStart); elapsed > time.Second {
				log.WithFields(log.Fields{
					"elapsed": elapsed,
					"request": requestID,
				}).Warn("client poll iteration drifted past one second")
			}
			continue
		}

		frames, err := sock.RecvMessage()
		if err != nil || len(frames) < 2 {
			continue
		}

		var resp protocol.Response
		if err := json.Unmarshal(frames[len(frames)-1], &resp); err != nil {
			log.WithError(err).Warn("client received malformed reply, discarding")
			continue
		}

		if resp.RequestID != "" && resp.RequestID != requestID {
			log.WithFields(log.Fields{
				"expected": requestID,
				"got":      resp.RequestID,
			}).Warn("reply request_id mismatch")
		}

		if !resp.Success {
			if resp.Message == "abort" {
				return resp, protocol.ErrAbort
			}
			return resp, &protocol.RequestError{Message: resp.Message}
		}

		return resp, nil
	}
}
