package broker

// Worker implements one request-servicing loop bound to the router's
// backend socket. It owns exactly one Handler, created lazily from the
// first request's context.url scheme, and serves requests strictly
// serially for as long as it lives.

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// Worker is a single router-assigned request servicer.
type Worker struct {
	ID              string
	backendEndpoint string
	handlerFactory  HandlerFactory

	socket *czmq.Sock
	poller *czmq.Poller

	handler Handler
	bound   atomic.Bool
}

// NewWorker creates a worker with the given identity. The worker does not
// connect to the backend until Run is called.
func NewWorker(id, backendEndpoint string, factory HandlerFactory) *Worker {
	return &Worker{
		ID:              id,
		backendEndpoint: backendEndpoint,
		handlerFactory:  factory,
	}
}

// Bound reports whether the worker has resolved an integration handler,
// i.e. it has processed at least one request for a client.
func (w *Worker) Bound() bool {
	return w.bound.Load()
}

// Run connects to the backend, announces readiness, and services requests
// until ctx is cancelled. It closes its handler and socket on exit.
func (w *Worker) Run(ctx context.Context) {
	var err error
	if w.socket, err = czmq.NewDealer(w.backendEndpoint); err != nil {
		log.WithFields(log.Fields{"worker": w.ID, "error": err}).Error("failed to create worker dealer socket")
		return
	}
	w.socket.SetOption(czmq.SockSetIdentity(w.ID))

	if w.poller, err = czmq.NewPoller(w.socket); err != nil {
		log.WithFields(log.Fields{"worker": w.ID, "error": err}).Error("failed to create worker poller")
		w.socket.Destroy()
		return
	}

	if err := w.socket.SendMessage([][]byte{{}, []byte(ReadySentinel)}); err != nil {
		log.WithFields(log.Fields{"worker": w.ID, "error": err}).Error("failed to announce readiness")
	}

	log.WithFields(log.Fields{"worker": w.ID}).Debug("worker ready")

	for {
		if ctx.Err() != nil {
			break
		}

		sock, perr := w.poller.Wait(0)
		if perr != nil {
			log.WithFields(log.Fields{"worker": w.ID, "error": perr}).Error("worker poller error")
			break
		}
		if sock == nil {
			time.Sleep(WorkerIdleBackoff)
			continue
		}

		frames, err := sock.RecvMessage()
		if err != nil || len(frames) < 3 {
			continue
		}

		// frames: [empty][client_identity][empty][payload_json]
		clientIdentity := frames[1]
		payload := frames[len(frames)-1]

		resp := w.process(payload)

		body, err := json.Marshal(resp)
		if err != nil {
			log.WithFields(log.Fields{"worker": w.ID, "error": err}).Error("failed to marshal response")
			continue
		}

		reply := [][]byte{{}, clientIdentity, {}, body}
		if err := w.socket.SendMessage(reply); err != nil {
			log.WithFields(log.Fields{"worker": w.ID, "error": err}).Error("failed to send response to router")
		}
	}

	if w.handler != nil {
		if err := w.handler.Close(); err != nil {
			log.WithFields(log.Fields{"worker": w.ID, "error": err}).Debug("error closing handler on shutdown")
		}
	}
	w.socket.Destroy()
	log.WithFields(log.Fields{"worker": w.ID}).Debug("worker stopped")
}

// process validates, dispatches and times a single request, never
// panicking: any failure to even parse the request is turned into an
// error response so the worker survives malformed input.
func (w *Worker) process(payload []byte) protocol.Response {
	start := time.Now()

	var req protocol.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return protocol.ErrorResponse("", w.ID, "invalid request: "+err.Error())
	}

	if req.Worker != "" && req.Worker != w.ID {
		return protocol.ErrorResponse(req.RequestID, w.ID, "got "+req.Worker+", expected "+w.ID)
	}

	if w.handler == nil {
		handler, err := w.resolveHandler(req)
		if err != nil {
			return protocol.ErrorResponse(req.RequestID, w.ID, err.Error())
		}
		w.handler = handler
		w.bound.Store(true)
	}

	resp := w.handler.Handle(req)
	resp.ResponseTime = time.Since(start).Milliseconds()
	if resp.Worker == "" {
		resp.Worker = w.ID
	}
	if resp.RequestID == "" {
		resp.RequestID = req.RequestID
	}

	return resp
}

func (w *Worker) resolveHandler(req protocol.Request) (Handler, error) {
	rawURL := req.ContextString("url")
	if rawURL == "" {
		return nil, errNoURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errNoURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	return w.handlerFactory(scheme, w.ID)
}

var errNoURL = urlError{"no url found in request context"}

type urlError struct{ msg string }

func (e urlError) Error() string { return e.msg }
