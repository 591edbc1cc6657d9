package obsmetrics

import (
	"context"
	"testing"
)

func TestNew_Disabled_IsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	m, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(context.Background())

	// Recording against a no-op meter provider must never panic or error.
	m.RecordWorkerCountDelta(context.Background(), 1)
	m.RecordOverloadedCountDelta(context.Background(), 1)
	m.RecordScaleUp(context.Background())
	m.RecordProbeLatency(context.Background(), "w1", 12.5)
}

func TestNew_StdoutExporter(t *testing.T) {
	cfg := Config{Enabled: true, ServiceName: "test", ExporterType: ExporterStdout}
	m, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.RecordScaleUp(context.Background())
}

func TestNew_UnknownExporter(t *testing.T) {
	cfg := Config{Enabled: true, ServiceName: "test", ExporterType: "bogus"}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown exporter type")
	}
}
