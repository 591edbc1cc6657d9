package concurrency

import (
	"context"
	"sync"
	"time"
)

// WorkerView is the manager's per-tick materialization of one worker's
// observed state: readiness plus its monitor's current latency history
// (spec.md §3).
type WorkerView struct {
	IsReady bool
	History []time.Duration
}

// Dispatcher is the external collaborator that owns the worker pool
// (spec.md §6). The manager never mutates worker state directly; it only
// reads a snapshot and, when policy permits, asks the dispatcher to start
// one more worker.
type Dispatcher interface {
	// WorkerStatuses returns the current view of every live worker, keyed
	// by worker id.
	WorkerStatuses(ctx context.Context) (map[string]WorkerView, error)

	// StartWorkerChannel launches one additional worker. It blocks until
	// the new worker has been started (or the attempt has failed).
	StartWorkerChannel(ctx context.Context) error

	// SupportsDynamicConcurrency reports whether this dispatcher variant
	// may be scaled by the manager. HTTP-mode dispatchers return false
	// (spec.md §6's "distinguished HttpDispatcher variant").
	SupportsDynamicConcurrency() bool
}

// Logger receives the manager's observable side effects (spec.md §6). It is
// satisfied by internal/obslog.Logger in production and by a no-op/fake in
// tests.
type Logger interface {
	WorkerState(workerID string, overloaded bool, history []time.Duration)
	WorkerAdded()
	Disabled()
	HTTPUnsupported()
	DispatcherError(err error)
	StartWorkerError(err error)
}

type noopLogger struct{}

func (noopLogger) WorkerState(string, bool, []time.Duration) {}
func (noopLogger) WorkerAdded()                               {}
func (noopLogger) Disabled()                                  {}
func (noopLogger) HTTPUnsupported()                           {}
func (noopLogger) DispatcherError(error)                      {}
func (noopLogger) StartWorkerError(error)                     {}

// managerState is the state machine of spec.md §4.2.
type managerState int

const (
	stateInit managerState = iota
	stateDisabled
	stateHTTPUnsupported
	stateWarmingUp
	stateRunning
	stateStopped
	stateDisposed
)

// Manager runs the single process-wide control loop that scales the worker
// pool upward when the aggregate of per-worker latency signals indicates
// overload. There is exactly one Manager per host process.
type Manager struct {
	options    Options
	dispatcher Dispatcher
	log        Logger
	now        func() time.Time

	mu               sync.Mutex
	state            managerState
	timer            *time.Timer
	lastAddTime      time.Time
	lastLogStateTime time.Time

	lastReportedWorkerCount     int
	lastReportedOverloadedCount int

	metrics MetricsSink
	tracer  Tracer
}

// NewManager builds a Manager against the given dispatcher. log may be nil,
// in which case observable side effects are discarded.
func NewManager(options Options, dispatcher Dispatcher, log Logger) *Manager {
	if log == nil {
		log = noopLogger{}
	}
	return &Manager{
		options:    options,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
		state:      stateInit,
	}
}

// Observe wires optional metrics/tracing hooks into the manager. A nil
// metrics or tracer disables its corresponding recording, so a Manager built
// without calling Observe behaves exactly as before this hook existed.
func (m *Manager) Observe(metrics MetricsSink, tracer Tracer) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
	m.tracer = tracer
	return m
}

// Start is called during host startup. If disabled, it logs "disabled" and
// returns immediately (state Disabled). If enabled, it refuses to run
// against an HTTP-mode dispatcher (state HttpUnsupported) and otherwise
// waits for exactly one AdjustmentPeriod before arming the first tick
// (state WarmingUp, then Running) — cold-start damping so the decision
// predicate never fires against an empty history. After Dispose it returns
// ErrDisposed.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.state == stateDisposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	if m.state != stateInit {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}

	if !m.options.Enabled {
		m.state = stateDisabled
		m.mu.Unlock()
		m.log.Disabled()
		return nil
	}

	if m.dispatcher == nil || !m.dispatcher.SupportsDynamicConcurrency() {
		m.state = stateHTTPUnsupported
		m.mu.Unlock()
		m.log.HTTPUnsupported()
		return nil
	}

	m.state = stateWarmingUp
	m.lastAddTime = m.now()
	m.lastLogStateTime = m.now()
	m.timer = time.AfterFunc(m.options.AdjustmentPeriod, m.firstTick)
	m.mu.Unlock()
	return nil
}

// firstTick transitions WarmingUp -> Running and runs the first real tick.
func (m *Manager) firstTick() {
	m.mu.Lock()
	if m.state != stateWarmingUp {
		m.mu.Unlock()
		return
	}
	m.state = stateRunning
	m.mu.Unlock()
	m.tick()
}

// tick runs one decision cycle and, unless stopped or disposed, re-arms
// itself strictly after this tick's body completes.
func (m *Manager) tick() {
	m.mu.Lock()
	if m.state != stateRunning {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.runOnce()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateRunning {
		return
	}
	m.timer = time.AfterFunc(m.options.CheckInterval, m.tick)
}

// runOnce performs exactly one tick body: pull statuses, decide, maybe
// scale up. Any error from the dispatcher is logged and swallowed; the
// control loop's liveness outranks any single tick's success (spec.md §7).
func (m *Manager) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.options.CheckInterval)
	defer cancel()

	statuses, err := m.dispatcher.WorkerStatuses(ctx)
	if err != nil {
		m.log.DispatcherError(err)
		return
	}

	m.mu.Lock()
	sinceLastAdd := m.now().Sub(m.lastAddTime)
	m.mu.Unlock()

	shouldAdd := decide(statuses, sinceLastAdd, m.options)

	m.logState(ctx, statuses, shouldAdd)

	if !shouldAdd {
		return
	}

	m.mu.Lock()
	tracer := m.tracer
	metrics := m.metrics
	m.mu.Unlock()

	startCtx := ctx
	var span Span
	if tracer != nil {
		startCtx, span = tracer.StartScaleUpSpan(ctx)
	}
	err = m.dispatcher.StartWorkerChannel(startCtx)
	if span != nil {
		span.End(err)
	}
	if err != nil {
		m.log.StartWorkerError(err)
		return
	}

	m.mu.Lock()
	m.lastAddTime = m.now()
	m.mu.Unlock()
	m.log.WorkerAdded()
	if metrics != nil {
		metrics.RecordScaleUp(ctx)
	}
}

// logState dumps the per-worker snapshot at most once per LogStateInterval,
// except it always dumps it when shouldAdd is true (spec.md §4.2 "State
// kept by the manager"). It also reports the worker-count and
// overloaded-worker-count deltas since the last report, at the same
// cadence, to any attached MetricsSink.
func (m *Manager) logState(ctx context.Context, statuses map[string]WorkerView, shouldAdd bool) {
	m.mu.Lock()
	elapsed := m.now().Sub(m.lastLogStateTime)
	due := shouldAdd || elapsed >= LogStateInterval
	if due {
		m.lastLogStateTime = m.now()
	}
	metrics := m.metrics
	m.mu.Unlock()

	if !due {
		return
	}

	overloadedCount := 0
	for id, view := range statuses {
		overloaded := isOverloaded(view.History, m.options)
		if overloaded {
			overloadedCount++
		}
		m.log.WorkerState(id, overloaded, view.History)
	}

	if metrics == nil {
		return
	}

	m.mu.Lock()
	workerDelta := len(statuses) - m.lastReportedWorkerCount
	overloadedDelta := overloadedCount - m.lastReportedOverloadedCount
	m.lastReportedWorkerCount = len(statuses)
	m.lastReportedOverloadedCount = overloadedCount
	m.mu.Unlock()

	if workerDelta != 0 {
		metrics.RecordWorkerCountDelta(ctx, workerDelta)
	}
	if overloadedDelta != 0 {
		metrics.RecordOverloadedCountDelta(ctx, overloadedDelta)
	}
}

// Stop stops the tick loop. It is safe to call even if Start was never
// called. An in-flight tick is allowed to complete.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == stateRunning || m.state == stateWarmingUp {
		m.state = stateStopped
	}
	if m.timer != nil {
		m.timer.Stop()
	}
}

// Dispose releases timer resources. Safe to call multiple times.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateDisposed
	if m.timer != nil {
		m.timer.Stop()
	}
}

// decide implements spec.md §4.2's decision predicate.
func decide(statuses map[string]WorkerView, sinceLastAdd time.Duration, options Options) bool {
	if sinceLastAdd < options.AdjustmentPeriod {
		return false
	}

	if len(statuses) >= options.MaxWorkerCount {
		return false
	}

	anyOverloaded := false
	for _, view := range statuses {
		if !view.IsReady {
			return false
		}
		if isOverloaded(view.History, options) {
			anyOverloaded = true
		}
	}

	return anyOverloaded
}

// isOverloaded implements spec.md §4.2.1's per-worker overload predicate.
// It is order-independent: the result depends only on the multiset of
// samples, never their position in the slice.
func isOverloaded(history []time.Duration, options Options) bool {
	if len(history) < options.HistorySize {
		return false
	}

	over := 0
	for _, sample := range history {
		if sample >= options.LatencyThreshold {
			over++
		}
	}

	fraction := float64(over) / float64(options.HistorySize)
	return fraction >= options.HistoryThreshold
}
