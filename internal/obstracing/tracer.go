// Package obstracing publishes OpenTelemetry traces for the dynamic
// concurrency control loop, adapted from the teacher's
// internal/otel/tracer.go: same exporter-selection shape and no-op default,
// with two span kinds in place of the teacher's generic operation span:
// one per worker status probe, one per scale-up attempt.
package obstracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/functionshost/dynamicconcurrency/internal/concurrency"
)

// ExporterType selects which trace exporter backs a Tracer instance.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Config holds configuration for the OpenTelemetry tracing pipeline.
type Config struct {
	// Enabled controls whether tracing is active. Default: false (no-op).
	Enabled bool

	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string
	OTLPInsecure bool

	// SampleRate is the sampling rate (0.0 to 1.0). Default: 1.0 (sample all).
	SampleRate float64
}

// DefaultConfig returns a configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ServiceName:  "worker-concurrency-host",
		ExporterType: ExporterNone,
		SampleRate:   1.0,
	}
}

// Tracer wraps the OpenTelemetry spans the control loop starts. It satisfies
// internal/concurrency.Tracer structurally — the concurrency package never
// imports go.opentelemetry.io/* directly.
type Tracer struct {
	config         Config
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	shutdown       func(context.Context) error
}

// New builds a Tracer from cfg. With Enabled false or ExporterNone, spans
// are backed by a no-op tracer provider, so callers may start spans
// unconditionally without checking Enabled themselves.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	t := &Tracer{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		t.tracerProvider = noop.NewTracerProvider()
		t.tracer = t.tracerProvider.Tracer(cfg.ServiceName)
		t.shutdown = func(context.Context) error { return nil }
		return t, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("obstracing: creating exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", serviceAttributes(cfg)...),
	)
	if err != nil {
		return nil, fmt.Errorf("obstracing: creating resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	t.tracerProvider = tp
	t.tracer = tp.Tracer(cfg.ServiceName)
	t.shutdown = tp.Shutdown

	return t, nil
}

func serviceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return attrs
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("obstracing: unknown exporter type: %s", cfg.ExporterType)
	}
}

// span adapts an otel trace.Span to internal/concurrency.Span: End records
// an error, if any, and closes the span.
type span struct {
	otelSpan trace.Span
}

func (s *span) End(err error) {
	if err != nil {
		s.otelSpan.RecordError(err)
		s.otelSpan.SetAttributes(attribute.Bool("error", true))
	}
	s.otelSpan.End()
}

// StartProbeSpan starts a span around one worker status probe.
func (t *Tracer) StartProbeSpan(ctx context.Context, workerID string) (context.Context, concurrency.Span) {
	spanCtx, otelSpan := t.tracer.Start(ctx, "workerconcurrency.probe",
		trace.WithAttributes(attribute.String("worker_id", workerID)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return spanCtx, &span{otelSpan: otelSpan}
}

// StartScaleUpSpan starts a span around one scale-up attempt.
func (t *Tracer) StartScaleUpSpan(ctx context.Context) (context.Context, concurrency.Span) {
	spanCtx, otelSpan := t.tracer.Start(ctx, "workerconcurrency.scaleup",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return spanCtx, &span{otelSpan: otelSpan}
}

// Shutdown flushes and releases the underlying tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
