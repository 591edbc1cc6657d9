// Command host runs the dynamic-concurrency control loop against a pool of
// out-of-process language workers, each launched by execing the worker
// binary configured via -worker-cmd. Grounded on the teacher's
// cmd/server/main.go: flag parsing, explicit component wiring (no DI
// framework), and signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/functionshost/dynamicconcurrency/internal/concurrency"
	"github.com/functionshost/dynamicconcurrency/internal/dispatch"
	"github.com/functionshost/dynamicconcurrency/internal/hostconfig"
	"github.com/functionshost/dynamicconcurrency/internal/obslog"
	"github.com/functionshost/dynamicconcurrency/internal/obsmetrics"
	"github.com/functionshost/dynamicconcurrency/internal/obstracing"
)

func main() {
	configPath := flag.String("config", "", "path to host.yaml (optional; WorkerConcurrencyOptions section)")
	workerCmd := flag.String("worker-cmd", "", "worker process executable (required unless -http-mode)")
	workerArgs := flag.String("worker-args", "", "comma-separated extra args passed to every launched worker")
	httpMode := flag.Bool("http-mode", false, "run against the HTTP-triggered dispatcher, which never scales")

	metricsEnabled := flag.Bool("metrics", false, "enable OpenTelemetry metrics export")
	metricsExporter := flag.String("metrics-exporter", "stdout", "metrics exporter: stdout, otlp-grpc, otlp-http")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP collector endpoint for otlp-grpc/otlp-http exporters")
	otlpInsecure := flag.Bool("otlp-insecure", false, "disable TLS for the OTLP exporter")

	tracingEnabled := flag.Bool("tracing", false, "enable OpenTelemetry tracing")
	tracingExporter := flag.String("tracing-exporter", "stdout", "tracing exporter: stdout, otlp-grpc, otlp-http")
	flag.Parse()

	if !*httpMode && *workerCmd == "" {
		fmt.Fprintln(os.Stderr, "Error: -worker-cmd is required unless -http-mode is set")
		os.Exit(1)
	}

	env := hostconfig.FromOS(os.Environ())
	tree, err := hostconfig.LoadTree(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	options := hostconfig.Resolve(env, tree)

	ctx := context.Background()

	metrics, err := obsmetrics.New(ctx, obsmetrics.Config{
		Enabled:      *metricsEnabled,
		ServiceName:  "dynamicconcurrency-host",
		ExporterType: obsmetrics.ExporterType(*metricsExporter),
		OTLPEndpoint: *otlpEndpoint,
		OTLPInsecure: *otlpInsecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting metrics: %v\n", err)
		os.Exit(1)
	}
	defer metrics.Shutdown(context.Background())

	tracer, err := obstracing.New(ctx, obstracing.Config{
		Enabled:      *tracingEnabled,
		ServiceName:  "dynamicconcurrency-host",
		ExporterType: obstracing.ExporterType(*tracingExporter),
		OTLPEndpoint: *otlpEndpoint,
		OTLPInsecure: *otlpInsecure,
		SampleRate:   1.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting tracing: %v\n", err)
		os.Exit(1)
	}
	defer tracer.Shutdown(context.Background())

	logger := obslog.New()

	var concurrencyDispatcher concurrency.Dispatcher
	var dispatcher *dispatch.Dispatcher
	if *httpMode {
		concurrencyDispatcher = dispatch.NewHTTPDispatcher()
	} else {
		args := splitNonEmpty(*workerArgs)
		dispatcher = dispatch.NewDispatcher(options, &dispatch.ExecLauncher{Command: *workerCmd, Args: args})
		dispatcher.Observe(metrics, tracer)
		concurrencyDispatcher = dispatcher
	}

	manager := concurrency.NewManager(options, concurrencyDispatcher, logger).Observe(metrics, tracer)
	if err := manager.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting concurrency manager: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("dynamicconcurrency host running")
	fmt.Printf("dynamic concurrency enabled: %v\n", options.Enabled)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	manager.Stop()
	manager.Dispose()

	if dispatcher != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping workers: %v\n", err)
		}
	}

	fmt.Println("host stopped")
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
