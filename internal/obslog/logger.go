// Package obslog provides structured logging for the dynamic concurrency
// control loop's observable side effects (spec.md §6), following the
// teacher's internal/events/logger.go: a small typed wrapper with one
// method per event kind, built over log/slog.
package obslog

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger implements concurrency.Logger.
type Logger struct {
	logger *slog.Logger
}

// New creates a Logger with JSON output to stdout at debug level, so the
// debug-level side effects (worker state, worker added, disabled, HTTP
// unsupported) are emitted; dispatcher and start-worker failures are
// logged at error level.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing JSON to w. Useful for tests.
func NewWithWriter(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{logger: slog.New(handler).With("component", "worker_concurrency")}
}

// WorkerState logs the per-tick per-worker snapshot: id, overloaded flag,
// the latency history, and its average/max.
func (l *Logger) WorkerState(workerID string, overloaded bool, history []time.Duration) {
	avg, max := summarize(history)
	l.logger.Debug("worker_state",
		"worker_id", workerID,
		"overloaded", overloaded,
		"history", formatHistory(history),
		"avg_ms", avg.Milliseconds(),
		"max_ms", max.Milliseconds(),
	)
}

// WorkerAdded logs a successful scale-up.
func (l *Logger) WorkerAdded() {
	l.logger.Debug("New worker is added.")
}

// Disabled logs that dynamic concurrency is turned off.
func (l *Logger) Disabled() {
	l.logger.Debug("disabled")
}

// HTTPUnsupported logs that the manager refused to run against an
// HTTP-mode dispatcher. Logged once, since the manager enters a terminal
// state afterward.
func (l *Logger) HTTPUnsupported() {
	l.logger.Debug("dynamic concurrency is not supported for HTTP-triggered worker dispatch")
}

// DispatcherError logs a failed worker-status query.
func (l *Logger) DispatcherError(err error) {
	l.logger.Error("failed to query worker statuses", "error", err)
}

// StartWorkerError logs a failed scale-up attempt.
func (l *Logger) StartWorkerError(err error) {
	l.logger.Error("failed to start a new worker channel", "error", err)
}

func summarize(history []time.Duration) (avg, max time.Duration) {
	if len(history) == 0 {
		return 0, 0
	}
	var total time.Duration
	for _, sample := range history {
		total += sample
		if sample > max {
			max = sample
		}
	}
	return total / time.Duration(len(history)), max
}

func formatHistory(history []time.Duration) []int64 {
	out := make([]int64, len(history))
	for i, sample := range history {
		out[i] = sample.Milliseconds()
	}
	return out
}
