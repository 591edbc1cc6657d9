package concurrency

import (
	"context"
	"sync"
	"time"
)

// Monitor maintains a bounded, time-ordered history of RPC probe latencies
// for exactly one worker channel. It is created together with its worker
// channel and disposed when the channel is torn down; its lifetime is tied
// to the channel, not to any Manager (spec.md §3 "Ownership").
type Monitor struct {
	options Options
	channel WorkerChannel

	mu       sync.Mutex
	history  []time.Duration
	started  bool
	disposed bool
	timer    *time.Timer

	workerID string
	metrics  MetricsSink
	tracer   Tracer
}

// NewMonitor creates a Monitor for channel. The probe is not started until
// the first call to EnsureStarted or Stats.
func NewMonitor(options Options, channel WorkerChannel) *Monitor {
	return &Monitor{
		options: options,
		channel: channel,
		history: make([]time.Duration, 0, options.HistorySize),
	}
}

// Observe wires optional metrics/tracing hooks into the monitor. It must be
// called before EnsureStarted; a nil metrics or tracer disables its
// corresponding recording, so a Monitor built without calling Observe
// behaves exactly as before this hook existed.
func (m *Monitor) Observe(workerID string, metrics MetricsSink, tracer Tracer) *Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workerID = workerID
	m.metrics = metrics
	m.tracer = tracer
	return m
}

// EnsureStarted idempotently starts the monitor's background probe. It is a
// no-op when Options.Enabled is false, and a no-op on every call after the
// first (spec.md §8 invariant 6: two consecutive calls schedule at most one
// timer).
func (m *Monitor) EnsureStarted() {
	if !m.options.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.disposed {
		return
	}
	m.started = true
	m.timer = time.AfterFunc(m.options.CheckInterval, m.tick)
}

// Stats returns a snapshot of the current history, oldest-first. Calling
// Stats also triggers lazy activation via EnsureStarted. The returned slice
// is a copy: callers may retain and inspect it without racing a concurrent
// probe.
func (m *Monitor) Stats() []time.Duration {
	m.EnsureStarted()

	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]time.Duration, len(m.history))
	copy(snapshot, m.history)
	return snapshot
}

// Dispose stops the periodic probe and releases timer resources. It is
// idempotent and safe to call from any goroutine.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	if m.timer != nil {
		m.timer.Stop()
	}
}

// tick runs one probe cycle and, unless the monitor has been disposed,
// re-arms itself for the next one. The re-arm happens strictly after this
// tick's body completes, so a slow probe cannot pile up overlapping ticks
// (spec.md §5).
func (m *Monitor) tick() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	workerID, metrics, tracer := m.workerID, m.metrics, m.tracer
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.options.CheckInterval)
	probeCtx := ctx
	var span Span
	if tracer != nil {
		probeCtx, span = tracer.StartProbeSpan(ctx, workerID)
	}
	status, err := m.channel.GetStatus(probeCtx)
	cancel()
	if span != nil {
		span.End(err)
	}

	if err == nil {
		m.record(status.Latency)
		if metrics != nil {
			latencyMs := float64(status.Latency.Microseconds()) / 1000.0
			metrics.RecordProbeLatency(context.Background(), workerID, latencyMs)
		}
	}
	// Probe failures are expected during channel shutdown and are silently
	// swallowed here; the monitor does not know or care why GetStatus
	// failed (spec.md §7 TransientProbeError).

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.timer = time.AfterFunc(m.options.CheckInterval, m.tick)
}

// record appends a latency sample, dropping the oldest sample first if the
// history is already at capacity.
func (m *Monitor) record(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) >= m.options.HistorySize {
		m.history = append(m.history[1:], latency)
		return
	}
	m.history = append(m.history, latency)
}
