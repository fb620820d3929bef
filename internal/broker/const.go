package broker

import "time"

// ReadySentinel is the single frame a worker sends to announce it is idle
// and awaiting a request.
const ReadySentinel = "READY"

// DefaultPollTimeout bounds how long the router's poll loop blocks waiting
// for frontend or backend traffic before re-checking for shutdown.
const DefaultPollTimeout = 1 * time.Second

// WorkerIdleBackoff is how long a worker sleeps after an empty
// non-blocking poll of its backend socket.
const WorkerIdleBackoff = 100 * time.Millisecond
