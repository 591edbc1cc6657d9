package concurrency

import "context"

// MetricsSink receives live activity from the control loop: probe latencies,
// scale-ups, and per-tick worker/overload counts. It is satisfied
// structurally by internal/obsmetrics.Metrics; this package stays free of
// any metrics library import, matching the teacher's own separation between
// a pure decision package and its observability wiring.
type MetricsSink interface {
	RecordProbeLatency(ctx context.Context, workerID string, latencyMs float64)
	RecordScaleUp(ctx context.Context)
	RecordWorkerCountDelta(ctx context.Context, delta int)
	RecordOverloadedCountDelta(ctx context.Context, delta int)
}

// Span is the handle returned by a Tracer's Start* methods: End reports
// whether the traced operation failed.
type Span interface {
	End(err error)
}

// Tracer starts spans around the two operations worth tracing end-to-end: a
// single worker status probe, and a scale-up attempt. It is satisfied
// structurally by internal/obstracing.Tracer.
type Tracer interface {
	StartProbeSpan(ctx context.Context, workerID string) (context.Context, Span)
	StartScaleUpSpan(ctx context.Context) (context.Context, Span)
}
