// Package mq implements the IBM MQ integration handler: CONN/DISC manage
// one queue manager connection per worker, PUT/GET open and operate on a
// queue, and GET with an expression runs the browse-then-fetch algorithm
// to select a specific message non-destructively before consuming it.
package mq

import (
	"errors"
	"math/rand"
	"time"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	log "github.com/sirupsen/logrus"
)

const (
	defaultSSLCipher = "ECDHE_RSA_AES_256_GCM_SHA384"
	browseRetryDelay = 500 * time.Millisecond

	// maxGetRetries is the GET retry policy's cap per spec.md §4.3/§7:
	// up to 5 retries on a transient remote-disconnect before the
	// failure is surfaced as a TransportError.
	maxGetRetries = 5
)

// Handler is the per-worker MQ integration. It is bound to exactly one
// worker and holds at most one live queue manager connection.
type Handler struct {
	workerID    string
	tls         bool
	connector   Connector
	connected   bool
	messageWait int // seconds, default wait applied when a request omits message_wait

	// now is overridable for deterministic timeout tests.
	now func() time.Time

	// sleep and jitter back the GET retry policy's backoff
	// (attempt*2 + random(1..5) seconds) and are overridable so tests
	// can exercise retries without actually waiting.
	sleep  func(time.Duration)
	jitter func() int
}

// NewHandler creates an MQ handler for workerID. tls selects whether the
// mqs:// scheme's default key-file/cert-label conventions apply on CONN.
func NewHandler(workerID string, tls bool) *Handler {
	return &Handler{
		workerID:  workerID,
		tls:       tls,
		connector: newIBMMQConnector(),
		now:       time.Now,
		sleep:     time.Sleep,
		jitter:    func() int { return rand.Intn(5) + 1 },
	}
}

// Close tears down any live connection, suppressing and logging errors as
// best-effort teardown.
func (h *Handler) Close() error {
	if !h.connected {
		return nil
	}
	err := h.connector.Disconnect()
	h.connected = false
	if err != nil {
		log.WithFields(log.Fields{"worker": h.workerID, "error": err}).Debug("suppressed error disconnecting mq handler")
	}
	return nil
}

// Conn opens the queue manager connection. Repeated CONN on an
// already-connected handler fails with "already connected" (native
// handler semantics are authoritative; see the HTTP-stand-in's "re-used
// connection" phrasing in the design notes).
func (h *Handler) Conn(req protocol.Request) (protocol.Response, error) {
	if h.connected {
		return protocol.Response{}, protocol.NewConnectionError("already connected", nil)
	}
	if req.Context == nil {
		return protocol.Response{}, protocol.NewConfigurationError("no context in request")
	}

	connection := req.ContextString("connection")
	queueManager := req.ContextString("queue_manager")
	channel := req.ContextString("channel")
	if connection == "" || queueManager == "" || channel == "" {
		return protocol.Response{}, protocol.NewConfigurationError("connection, queue_manager and channel are required")
	}

	username := req.ContextString("username")
	password := req.ContextString("password")
	keyFile := req.ContextString("key_file")
	certLabel := req.ContextString("cert_label")
	sslCipher := req.ContextString("ssl_cipher")

	useTLS := h.tls || keyFile != ""
	if useTLS {
		if certLabel == "" {
			certLabel = username
		}
		if sslCipher == "" {
			sslCipher = defaultSSLCipher
		}
		if keyFile == "" {
			keyFile = "./" + username
		}
	}

	opts := ConnectOptions{
		Connection:   connection,
		QueueManager: queueManager,
		Channel:      channel,
		Username:     username,
		Password:     password,
		TLS:          useTLS,
		KeyFile:      keyFile,
		CertLabel:    certLabel,
		SSLCipher:    sslCipher,
	}

	if err := h.connector.Connect(opts); err != nil {
		return protocol.Response{}, protocol.NewConnectionError("failed to connect to queue manager", err)
	}

	h.connected = true
	h.messageWait = req.ContextInt("message_wait")

	return protocol.Response{Success: true, Message: "connected"}, nil
}

// Disc tears down the connection. Idempotent.
func (h *Handler) Disc(req protocol.Request) (protocol.Response, error) {
	_ = h.Close()
	return protocol.Response{Success: true, Message: "disconnected"}, nil
}

// Put requires a non-nil payload and writes it to the parsed endpoint's
// queue.
func (h *Handler) Put(req protocol.Request) (protocol.Response, error) {
	if !h.connected {
		return protocol.Response{}, protocol.NewConnectionError("not connected", nil)
	}
	if req.Payload == nil {
		return protocol.Response{}, protocol.NewConfigurationError("no payload")
	}

	ep, err := h.endpointFor(req)
	if err != nil {
		return protocol.Response{}, err
	}
	if ep.HasExpression {
		return protocol.Response{}, protocol.NewConfigurationError("expression is not valid for PUT")
	}

	msg, err := h.connector.Put(ep.Queue, []byte(*req.Payload))
	if err != nil {
		return protocol.Response{}, protocol.NewTransportError("put failed", err)
	}

	payload := protocol.Latin1String(msg.Payload)
	return protocol.Response{
		Success:        true,
		Payload:        &payload,
		Metadata:       metadataOf(msg),
		ResponseLength: len(*req.Payload),
	}, nil
}

// Get rejects any payload and, depending on whether the endpoint carries
// an expression, either issues a direct wait-get or runs browse-then-fetch.
func (h *Handler) Get(req protocol.Request) (protocol.Response, error) {
	if !h.connected {
		return protocol.Response{}, protocol.NewConnectionError("not connected", nil)
	}
	if req.Payload != nil {
		return protocol.Response{}, protocol.NewConfigurationError("payload not allowed")
	}

	ep, err := h.endpointFor(req)
	if err != nil {
		return protocol.Response{}, err
	}

	messageWait := h.messageWait
	if _, ok := req.Context["message_wait"]; ok {
		messageWait = req.ContextInt("message_wait")
	}

	var msg Message
	if ep.HasExpression {
		msg, err = h.browseThenFetch(ep, req, messageWait)
	} else {
		msg, err = h.directGet(ep.Queue, messageWait)
	}
	if err != nil {
		return protocol.Response{}, err
	}

	payload := protocol.Latin1String(msg.Payload)
	return protocol.Response{
		Success:        true,
		Payload:        &payload,
		Metadata:       metadataOf(msg),
		ResponseLength: len(msg.Payload),
	}, nil
}

// withRetry drives the GET retry policy: a transient disconnect
// (classified by the connector as ErrConnectionBroken) is retried up to
// maxGetRetries times with jittered backoff (attempt*2 + random(1..5)
// seconds) before the failure is surfaced. protocol.IsRetryable is
// consulted on every attempt so the taxonomy it encodes actually gates
// behaviour rather than existing only for its own tests.
func (h *Handler) withRetry(op func() (Message, error)) (Message, error) {
	for attempt := 1; ; attempt++ {
		msg, err := op()
		if err == nil || errors.Is(err, ErrNoMessageAvailable) {
			return msg, err
		}
		if !errors.Is(err, ErrConnectionBroken) {
			return Message{}, err
		}

		transportErr := protocol.NewTransportError("transient disconnect during get", err)
		if !protocol.IsRetryable(transportErr) || attempt > maxGetRetries {
			return Message{}, err
		}

		delay := time.Duration(attempt*2)*time.Second + time.Duration(h.jitter())*time.Second
		log.WithFields(log.Fields{
			"worker":  h.workerID,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("transient disconnect during get, retrying")
		h.sleep(delay)
	}
}

func (h *Handler) directGet(queue string, messageWaitSeconds int) (Message, error) {
	msg, err := h.withRetry(func() (Message, error) {
		return h.connector.Get(queue, GetOptions{WaitMillis: int32(messageWaitSeconds) * 1000})
	})
	if err != nil {
		if errors.Is(err, ErrNoMessageAvailable) {
			return Message{}, protocol.NewTimeoutError("timeout while waiting for message")
		}
		return Message{}, protocol.NewTransportError("get failed", err)
	}
	return msg, nil
}

// browseThenFetch runs the non-destructive scan loop described in
// spec.md §4.3: repeatedly browse the queue from the front, evaluate the
// expression against each message, and on a hit, issue a destructive get
// matched on that message's id.
func (h *Handler) browseThenFetch(ep endpoint, req protocol.Request, messageWaitSeconds int) (Message, error) {
	ct := contentTypeFromString(req.ContextString("content_type"))
	tr, err := transformerFor(ct)
	if err != nil {
		return Message{}, err
	}

	match, err := tr.compile(ep.Expression)
	if err != nil {
		return Message{}, err
	}

	start := h.now()

	for {
		msgID, found, err := h.browsePass(ep.Queue, match)
		if err != nil {
			return Message{}, err
		}
		if found {
			elapsed := int(h.now().Sub(start).Seconds())
			remaining := messageWaitSeconds - elapsed
			return h.fetchByMsgID(ep.Queue, msgID, remaining)
		}

		if h.now().Sub(start) >= time.Duration(messageWaitSeconds)*time.Second {
			return Message{}, protocol.NewTimeoutError("timeout while waiting for matching message")
		}

		log.WithFields(log.Fields{"worker": h.workerID, "queue": ep.Queue}).Debug("no matching message found, retrying after backoff")
		time.Sleep(browseRetryDelay)
	}
}

// browsePass scans the queue once, front to back, returning the first
// matching message's id. It holds a single BrowseCursor open for the
// whole pass: IBM MQ's browse cursor lives on the open queue handle, so
// opening once before BROWSE_FIRST and closing only once the pass ends
// (match, exhaustion, or error) is what lets successive Next calls
// actually advance rather than re-reading the first message every time.
func (h *Handler) browsePass(queue string, match matcher) (msgID []byte, found bool, err error) {
	cursor, err := h.connector.OpenBrowse(queue)
	if err != nil {
		return nil, false, protocol.NewTransportError("failed to open browse cursor", err)
	}
	defer cursor.Close()

	for {
		msg, getErr := h.withRetry(cursor.Next)
		if getErr != nil {
			if errors.Is(getErr, ErrNoMessageAvailable) {
				return nil, false, nil
			}
			return nil, false, protocol.NewTransportError("browse failed", getErr)
		}

		ok, matchErr := match(string(msg.Payload))
		if matchErr != nil {
			return nil, false, matchErr
		}
		if ok {
			return msg.MsgID, true, nil
		}
	}
}

func (h *Handler) fetchByMsgID(queue string, msgID []byte, remainingWaitSeconds int) (Message, error) {
	waitMillis := int32(0)
	if remainingWaitSeconds > 0 {
		waitMillis = int32(remainingWaitSeconds) * 1000
	}

	msg, err := h.withRetry(func() (Message, error) {
		return h.connector.Get(queue, GetOptions{WaitMillis: waitMillis, MatchMsgID: msgID})
	})
	if err != nil {
		if errors.Is(err, ErrNoMessageAvailable) {
			return Message{}, protocol.NewTimeoutError("matched message disappeared before fetch")
		}
		return Message{}, protocol.NewTransportError("get failed", err)
	}
	return msg, nil
}

func (h *Handler) endpointFor(req protocol.Request) (endpoint, error) {
	raw := req.ContextString("endpoint")
	if raw == "" {
		return endpoint{}, protocol.NewConfigurationError("no endpoint specified")
	}
	return parseEndpoint(raw)
}

func metadataOf(msg Message) map[string]any {
	return map[string]any{
		"PutDate": msg.PutDate,
		"PutTime": msg.PutTime,
		"MsgId":   protocol.Latin1String(msg.MsgID),
	}
}
