package concurrency

import (
	"testing"
	"time"
)

func ms(values ...int) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

// Scenario A — overload count.
func TestScenarioA_OverloadCount(t *testing.T) {
	options := Options{LatencyThreshold: 10 * time.Millisecond, HistorySize: 5, HistoryThreshold: 1.0}

	if !isOverloaded(ms(11, 12, 13, 14, 15), options) {
		t.Error("expected overloaded=true for all-above-threshold history")
	}
	if isOverloaded(ms(1, 2, 3, 4, 5), options) {
		t.Error("expected overloaded=false for all-below-threshold history")
	}
	if isOverloaded(ms(1, 2, 3, 4), options) {
		t.Error("expected overloaded=false for short history")
	}
}

// Scenario B — fractional threshold.
func TestScenarioB_FractionalThreshold(t *testing.T) {
	history := ms(11, 12, 13, 14, 15, 16)

	options := Options{LatencyThreshold: 13 * time.Millisecond, HistorySize: 6, HistoryThreshold: 0.5}
	if !isOverloaded(history, options) {
		t.Error("expected overloaded=true: 4/6 samples >= 13ms")
	}

	options.LatencyThreshold = 15 * time.Millisecond
	if isOverloaded(history, options) {
		t.Error("expected overloaded=false: 2/6 samples >= 15ms")
	}
}

// Scenario C — add decision, all ready.
func TestScenarioC_AddDecisionAllReady(t *testing.T) {
	options := Options{
		HistorySize:      5,
		HistoryThreshold: 1.0,
		LatencyThreshold: 110 * time.Millisecond,
		AdjustmentPeriod: 1 * time.Second,
		MaxWorkerCount:   3,
	}
	statuses := map[string]WorkerView{
		"w1": {IsReady: true, History: ms(100, 100, 100, 100, 100)},
		"w2": {IsReady: true, History: ms(150, 150, 150, 150, 150)},
	}

	if !decide(statuses, 2*time.Second, options) {
		t.Error("expected decide=true")
	}
}

// Scenario D — not ready.
func TestScenarioD_NotReady(t *testing.T) {
	options := Options{
		HistorySize:      5,
		HistoryThreshold: 1.0,
		LatencyThreshold: 110 * time.Millisecond,
		AdjustmentPeriod: 1 * time.Second,
		MaxWorkerCount:   3,
	}
	statuses := map[string]WorkerView{
		"w1": {IsReady: true, History: ms(100, 100, 100, 100, 100)},
		"w2": {IsReady: false, History: ms(150, 150, 150, 150, 150)},
	}

	if decide(statuses, 2*time.Second, options) {
		t.Error("expected decide=false when any worker is not ready")
	}
}

// Scenario E — cooldown.
func TestScenarioE_Cooldown(t *testing.T) {
	options := Options{
		HistorySize:      5,
		HistoryThreshold: 1.0,
		LatencyThreshold: 110 * time.Millisecond,
		AdjustmentPeriod: 1 * time.Second,
		MaxWorkerCount:   3,
	}
	statuses := map[string]WorkerView{
		"w1": {IsReady: true, History: ms(100, 100, 100, 100, 100)},
		"w2": {IsReady: true, History: ms(150, 150, 150, 150, 150)},
	}

	if decide(statuses, 500*time.Millisecond, options) {
		t.Error("expected decide=false before adjustment period elapses")
	}
}

// Scenario F — cap reached.
func TestScenarioF_CapReached(t *testing.T) {
	options := Options{
		HistorySize:      5,
		HistoryThreshold: 1.0,
		LatencyThreshold: 110 * time.Millisecond,
		AdjustmentPeriod: 1 * time.Second,
		MaxWorkerCount:   2,
	}
	statuses := map[string]WorkerView{
		"w1": {IsReady: true, History: ms(100, 100, 100, 100, 100)},
		"w2": {IsReady: true, History: ms(150, 150, 150, 150, 150)},
	}

	if decide(statuses, 2*time.Second, options) {
		t.Error("expected decide=false at worker cap")
	}
}

// Scenario G — defaults.
func TestScenarioG_Defaults(t *testing.T) {
	got := DefaultOptions()
	want := Options{
		Enabled:          false,
		CheckInterval:    1 * time.Second,
		AdjustmentPeriod: 10 * time.Second,
		HistorySize:      10,
		HistoryThreshold: 1.0,
		LatencyThreshold: 1 * time.Second,
		MaxWorkerCount:   0,
	}
	if got != want {
		t.Errorf("DefaultOptions() = %+v, want %+v", got, want)
	}
}

// Invariant 4: decide is false whenever every history is shorter than
// HistorySize, even with no ready/cap issues.
func TestDecide_NoHistoryLongEnough(t *testing.T) {
	options := Options{
		HistorySize:      5,
		HistoryThreshold: 1.0,
		LatencyThreshold: 10 * time.Millisecond,
		AdjustmentPeriod: time.Second,
		MaxWorkerCount:   5,
	}
	statuses := map[string]WorkerView{
		"w1": {IsReady: true, History: ms(20, 20, 20)},
	}
	if decide(statuses, 2*time.Second, options) {
		t.Error("expected decide=false: no worker has a full window")
	}
}

// Invariant 5: overload is order-independent.
func TestIsOverloaded_OrderIndependent(t *testing.T) {
	options := Options{LatencyThreshold: 13 * time.Millisecond, HistorySize: 6, HistoryThreshold: 0.5}
	a := ms(11, 16, 13, 12, 15, 14)
	b := ms(16, 15, 14, 13, 12, 11)

	if isOverloaded(a, options) != isOverloaded(b, options) {
		t.Error("expected isOverloaded to be independent of sample order")
	}
}
