// Package concurrency implements the dynamic worker-concurrency control
// loop: a per-worker latency monitor and the process-wide manager that
// decides when to grow the worker pool.
package concurrency

import "time"

// Default values for Options, used whenever a field is left unset by the
// environment/config binding in internal/hostconfig.
const (
	DefaultCheckInterval    = 1 * time.Second
	DefaultAdjustmentPeriod = 10 * time.Second
	DefaultHistorySize      = 10
	DefaultHistoryThreshold = 1.0
	DefaultLatencyThreshold = 1 * time.Second
	DefaultMaxWorkerCount   = 0

	// LogStateInterval bounds how often the manager dumps its full
	// per-worker snapshot at debug level when it is not already doing so
	// because it just decided to scale up.
	LogStateInterval = 60 * time.Second
)

// Options is the immutable configuration for the concurrency control loop.
// It is read-only after startup; nothing in this package mutates it.
type Options struct {
	// Enabled is the master switch. When false, Monitor.EnsureStarted and
	// Manager.Start are no-ops.
	Enabled bool

	// CheckInterval is the tick period of every probe and of the manager's
	// own decision loop.
	CheckInterval time.Duration

	// AdjustmentPeriod is the minimum wall-clock time between two
	// successive "add worker" decisions.
	AdjustmentPeriod time.Duration

	// HistorySize is the sliding-window length, in samples, kept per
	// worker.
	HistorySize int

	// HistoryThreshold is the fraction, in (0, 1], of samples in the
	// window that must meet or exceed LatencyThreshold for the worker to
	// be considered overloaded.
	HistoryThreshold float64

	// LatencyThreshold is the per-sample latency at or above which a
	// sample counts toward overload.
	LatencyThreshold time.Duration

	// MaxWorkerCount is the hard cap on the number of workers the manager
	// will grow the pool to. Zero means "derive from CPU count"; callers
	// that build Options directly (as opposed to via hostconfig) must
	// resolve this themselves before passing Options to NewManager if they
	// want the CPU-derived default, since this package does not read the
	// host's CPU count.
	MaxWorkerCount int
}

// DefaultOptions returns the Options a fresh, unconfigured host starts with
// (spec.md §8 Scenario G). Enabled defaults to false: dynamic concurrency
// is opt-in, never on unless explicitly turned on by the environment.
func DefaultOptions() Options {
	return Options{
		Enabled:          false,
		CheckInterval:    DefaultCheckInterval,
		AdjustmentPeriod: DefaultAdjustmentPeriod,
		HistorySize:      DefaultHistorySize,
		HistoryThreshold: DefaultHistoryThreshold,
		LatencyThreshold: DefaultLatencyThreshold,
		MaxWorkerCount:   DefaultMaxWorkerCount,
	}
}
