// Package obsmetrics publishes OpenTelemetry metrics for the dynamic
// concurrency control loop, adapted from the teacher's
// internal/otel/metrics.go: same exporter-selection shape, new instruments
// for worker counts, overload counts, scale-ups, and probe latency.
package obsmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExporterType selects which metrics exporter backs a Metrics instance.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Config holds configuration for the OpenTelemetry metrics pipeline.
type Config struct {
	// Enabled controls whether metrics collection is active. Default: false.
	Enabled bool

	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string
	OTLPInsecure bool
}

// DefaultConfig returns a configuration with metrics disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ServiceName:  "worker-concurrency-host",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps the OpenTelemetry instruments the control loop publishes
// into. It implements concurrency manager/monitor observer hooks without
// the core decision logic ever importing it directly — it is wired in by
// cmd/host.
type Metrics struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	shutdown      func(context.Context) error

	workerCount       metric.Int64UpDownCounter
	overloadedCount   metric.Int64UpDownCounter
	scaleUpCount      metric.Int64Counter
	probeLatency      metric.Float64Histogram
}

// New builds a Metrics instance from cfg. With Enabled false or
// ExporterNone, every instrument is backed by a no-op meter provider, so
// callers may record metrics unconditionally without checking Enabled
// themselves.
func New(ctx context.Context, cfg Config) (*Metrics, error) {
	m := &Metrics{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.shutdown = func(context.Context) error { return nil }
		return m, m.registerInstruments()
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("obsmetrics: creating exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", serviceAttributes(cfg)...),
	)
	if err != nil {
		return nil, fmt.Errorf("obsmetrics: creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m.meterProvider = mp
	m.shutdown = mp.Shutdown

	return m, m.registerInstruments()
}

func serviceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return attrs
}

func createExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("obsmetrics: unknown exporter type: %s", cfg.ExporterType)
	}
}

func (m *Metrics) registerInstruments() error {
	meter := m.meterProvider.Meter(m.config.ServiceName)
	var err error

	m.workerCount, err = meter.Int64UpDownCounter(
		"workerconcurrency.workers",
		metric.WithDescription("Number of live workers in the pool"),
	)
	if err != nil {
		return fmt.Errorf("obsmetrics: worker count instrument: %w", err)
	}

	m.overloadedCount, err = meter.Int64UpDownCounter(
		"workerconcurrency.overloaded_workers",
		metric.WithDescription("Number of workers currently overloaded"),
	)
	if err != nil {
		return fmt.Errorf("obsmetrics: overloaded count instrument: %w", err)
	}

	m.scaleUpCount, err = meter.Int64Counter(
		"workerconcurrency.scaleups",
		metric.WithDescription("Count of successful worker scale-ups"),
	)
	if err != nil {
		return fmt.Errorf("obsmetrics: scale-up counter instrument: %w", err)
	}

	m.probeLatency, err = meter.Float64Histogram(
		"workerconcurrency.probe_latency",
		metric.WithDescription("Round-trip latency of worker status probes"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("obsmetrics: probe latency instrument: %w", err)
	}

	return nil
}

// RecordWorkerCountDelta adjusts the worker-count gauge by delta (positive
// when a worker is added).
func (m *Metrics) RecordWorkerCountDelta(ctx context.Context, delta int) {
	m.workerCount.Add(ctx, int64(delta))
}

// RecordOverloadedCountDelta adjusts the overloaded-worker gauge by delta.
func (m *Metrics) RecordOverloadedCountDelta(ctx context.Context, delta int) {
	m.overloadedCount.Add(ctx, int64(delta))
}

// RecordScaleUp increments the scale-up counter.
func (m *Metrics) RecordScaleUp(ctx context.Context) {
	m.scaleUpCount.Add(ctx, 1)
}

// RecordProbeLatency records one worker status probe's round-trip time.
func (m *Metrics) RecordProbeLatency(ctx context.Context, workerID string, latencyMs float64) {
	m.probeLatency.Record(ctx, latencyMs, metric.WithAttributes(attribute.String("worker_id", workerID)))
}

// Shutdown flushes and releases the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}
