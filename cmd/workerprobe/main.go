// Command workerprobe starts a standalone HTTP server implementing the
// worker side of the status probe (spec.md §6), suitable for launching as
// the out-of-process worker in a dynamicconcurrency host. Grounded on the
// teacher's cmd/mockserver/main.go: flag parsing, a one-line startup banner,
// and signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/functionshost/dynamicconcurrency/internal/rpcworker"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:0", "status probe listen address")
	workerID := flag.String("worker-id", "", "worker id assigned by the host dispatcher")
	warmup := flag.Duration("warmup", 0, "duration after start during which is_ready reports false")
	latency := flag.Duration("latency", 0, "artificial delay added before every status response")
	flag.Parse()

	srv := rpcworker.NewServer(rpcworker.Behavior{
		WarmupDelay: *warmup,
		Latency:     *latency,
	})

	if err := srv.Start(*listen); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting worker probe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("worker %s: status probe listening on %s\n", *workerID, srv.Addr())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}
	fmt.Println("worker probe stopped")
}
