// Package broker implements the two-socket message switch described in
// spec.md §4.1: a frontend socket clients connect to, a backend socket
// workers dial, a dynamic worker pool with one-ahead preemptive spawning,
// and a client-to-worker affinity map so a client's backend connection
// state always lives on the same worker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grizzly-loadtest/async-messaged/internal/protocol"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

type spawnedWorker struct {
	worker *Worker
	cancel context.CancelFunc
}

// Router owns the frontend/backend sockets, the idle-worker queue and the
// client affinity map. It is not safe for concurrent use; all state is
// mutated only from within Run's poll loop, mirroring the teacher's
// single-goroutine broker loop.
type Router struct {
	frontendEndpoint string
	backendEndpoint  string
	handlerFactory   HandlerFactory

	frontend *czmq.Sock
	backend  *czmq.Sock
	poller   *czmq.Poller

	workersAvailable  []string
	clientWorkerMap   map[string]string
	workerIdentityMap map[string][]byte
	workers           map[string]*spawnedWorker

	wg sync.WaitGroup
}

// NewRouter creates a router bound to the given frontend/backend
// endpoints. factory resolves a request URL scheme to an integration
// Handler and is handed down to every spawned worker.
func NewRouter(frontendEndpoint, backendEndpoint string, factory HandlerFactory) *Router {
	return &Router{
		frontendEndpoint:  frontendEndpoint,
		backendEndpoint:   backendEndpoint,
		handlerFactory:    factory,
		clientWorkerMap:   make(map[string]string),
		workerIdentityMap: make(map[string][]byte),
		workers:           make(map[string]*spawnedWorker),
	}
}

// Bind creates and binds the frontend and backend sockets. Both are
// configured with zero linger (pending messages are dropped on close) and
// router handover enabled (a re-identifying dealer peer does not get
// rejected).
func (r *Router) Bind() error {
	var err error

	if r.frontend, err = czmq.NewRouter(r.frontendEndpoint); err != nil {
		return fmt.Errorf("failed to bind frontend socket: %w", err)
	}
	r.frontend.SetOption(czmq.SockSetLinger(0))
	r.frontend.SetOption(czmq.SockSetRouterHandover(1))

	if r.backend, err = czmq.NewRouter(r.backendEndpoint); err != nil {
		return fmt.Errorf("failed to bind backend socket: %w", err)
	}
	r.backend.SetOption(czmq.SockSetLinger(0))
	r.backend.SetOption(czmq.SockSetRouterHandover(1))

	if r.poller, err = czmq.NewPoller(r.frontend, r.backend); err != nil {
		return fmt.Errorf("failed to create router poller: %w", err)
	}

	maybeWatch("frontend", r.frontend)
	maybeWatch("backend", r.backend)

	log.WithFields(log.Fields{
		"frontend": r.frontendEndpoint,
		"backend":  r.backendEndpoint,
	}).Info("router bound")

	return nil
}

// Run services the router loop until ctx is cancelled, at which point it
// emits abort responses to every client with an in-flight worker, tears
// down every worker socket and destroys both router sockets.
func (r *Router) Run(ctx context.Context) {
	r.spawnWorker(ctx)

	for ctx.Err() == nil {
		sock, err := r.poller.Wait(int(DefaultPollTimeout.Milliseconds()))
		if err != nil {
			log.WithError(err).Error("router poller error")
			continue
		}
		if sock == nil {
			continue
		}

		switch sock {
		case r.backend:
			r.handleBackend(ctx)
		case r.frontend:
			r.handleFrontend(ctx)
		}
	}

	r.shutdown()
}

// handleBackend processes one message arriving from a worker: either a
// READY announcement or a forwarded client reply.
func (r *Router) handleBackend(ctx context.Context) {
	frames, err := r.backend.RecvMessage()
	if err != nil || len(frames) < 2 {
		return
	}

	workerID := string(frames[0])
	rest := frames[1:] // [empty][READY] or [empty][client_identity][empty][response_json]

	if len(rest) >= 2 && string(rest[1]) == ReadySentinel {
		r.workersAvailable = append(r.workersAvailable, workerID)
		log.WithFields(log.Fields{"worker": workerID}).Debug("worker ready")
		return
	}

	if len(rest) < 3 {
		log.WithFields(log.Fields{"worker": workerID, "frames": len(rest)}).Warn("malformed backend reply")
		return
	}

	clientIdentity := rest[1]
	r.workerIdentityMap[workerID] = clientIdentity

	reply := [][]byte{clientIdentity, {}, rest[len(rest)-1]}
	if err := r.frontend.SendMessage(reply); err != nil {
		log.WithFields(log.Fields{"worker": workerID, "error": err}).Error("failed to forward reply to client")
	}
}

// handleFrontend processes one inbound client request: resolving or
// assigning a worker, stamping the worker id and forwarding to the
// backend.
func (r *Router) handleFrontend(ctx context.Context) {
	frames, err := r.frontend.RecvMessage()
	if err != nil || len(frames) < 3 {
		return
	}

	clientIdentity := frames[0]
	payloadBytes := frames[len(frames)-1]

	var payload protocol.Request
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		log.WithError(err).Warn("dropping malformed client request")
		return
	}

	var clientKey string
	if payload.Client != "" {
		clientKey = fmt.Sprintf("%s::%s", payload.Client, schemeOf(payload))
	}

	workerID := payload.Worker
	if workerID == "" && clientKey != "" {
		workerID = r.clientWorkerMap[clientKey]
	}

	if workerID == "" {
		if len(r.workersAvailable) == 0 {
			log.Warn("no available workers and pool exhausted; dropping request")
			return
		}
		workerID, r.workersAvailable = r.workersAvailable[0], r.workersAvailable[1:]

		if clientKey != "" {
			r.clientWorkerMap[clientKey] = workerID
		}
		payload.Worker = workerID

		log.WithFields(log.Fields{"worker": workerID, "client_key": clientKey}).Info("assigned worker")

		if len(r.workersAvailable) == 0 {
			log.Debug("spawning additional worker for next client")
			r.spawnWorker(ctx)
		}
	} else if payload.Worker == "" {
		payload.Worker = workerID
	}

	stamped, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("failed to re-marshal stamped request")
		return
	}

	backendRequest := [][]byte{[]byte(workerID), {}, clientIdentity, {}, stamped}
	if err := r.backend.SendMessage(backendRequest); err != nil {
		log.WithFields(log.Fields{"worker": workerID, "error": err}).Error("failed to forward request to worker")
	}
}

func schemeOf(req protocol.Request) string {
	rawURL := req.ContextString("url")
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// spawnWorker starts one new worker goroutine bound to the backend
// endpoint, tracked for shutdown.
func (r *Router) spawnWorker(ctx context.Context) {
	id := uuid.NewString()
	workerCtx, cancel := context.WithCancel(ctx)
	worker := NewWorker(id, r.backendEndpoint, r.handlerFactory)

	r.workers[id] = &spawnedWorker{worker: worker, cancel: cancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		worker.Run(workerCtx)
	}()

	log.WithFields(log.Fields{"worker": id}).Info("spawned worker")
}

// shutdown emits synthetic abort responses to every client with an
// in-flight worker, cancels all workers, waits for them to exit, and
// destroys the router sockets with zero linger.
func (r *Router) shutdown() {
	log.Info("router shutting down")

	for id, sw := range r.workers {
		clientIdentity, hasClient := r.workerIdentityMap[id]
		if sw.worker.Bound() && hasClient {
			resp := protocol.AbortResponse(id)
			body, err := json.Marshal(resp)
			if err == nil {
				reply := [][]byte{clientIdentity, {}, body}
				if err := r.frontend.SendMessage(reply); err != nil {
					log.WithFields(log.Fields{"worker": id, "error": err}).Error("failed to send abort to client")
				} else {
					log.WithFields(log.Fields{"worker": id}).Debug("sent abort to client")
				}
			}
		}
		sw.cancel()
	}

	r.wg.Wait()

	if r.frontend != nil {
		r.frontend.Destroy()
	}
	if r.backend != nil {
		r.backend.Destroy()
	}

	log.Info("router stopped")
}
