package concurrency

import (
	"context"
	"time"
)

// WorkerStatus is one snapshot produced by a worker's status probe
// (spec.md §3). It flattens LatencyHistory out into the manager's
// WorkerView rather than nesting it inside WorkerStatus itself — see
// DESIGN.md's "Open Questions resolved".
type WorkerStatus struct {
	// IsReady reports whether the worker has completed initialization and
	// may serve invocations.
	IsReady bool

	// Latency is the measured round-trip time of this single probe.
	Latency time.Duration
}

// WorkerChannel is the per-worker RPC surface a Monitor probes. Concrete
// implementations (internal/rpcworker) reach an out-of-process worker over
// the network; tests use an in-memory fake.
type WorkerChannel interface {
	// GetStatus measures its own round-trip time and returns the worker's
	// current status. It must be safe to call concurrently with
	// invocations the worker is otherwise serving.
	GetStatus(ctx context.Context) (WorkerStatus, error)
}
