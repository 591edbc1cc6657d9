package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/functionshost/dynamicconcurrency/internal/concurrency"
	"github.com/functionshost/dynamicconcurrency/internal/rpcworker"
)

// fakeHandle implements ProcessHandle for an in-process rpcworker.Server,
// standing in for a launched worker process in tests.
type fakeHandle struct {
	srv *rpcworker.Server
}

func (h *fakeHandle) Stop(ctx context.Context) error {
	return h.srv.Stop(ctx)
}

// inProcessLauncher starts a real rpcworker.Server bound to addr instead of
// exec'ing a binary, so dispatcher tests exercise the same dial-and-monitor
// wiring as production without spawning processes.
type inProcessLauncher struct {
	behavior rpcworker.Behavior
}

func (l *inProcessLauncher) Launch(ctx context.Context, workerID string, addr string) (ProcessHandle, error) {
	srv := rpcworker.NewServer(l.behavior)
	if err := srv.Start(addr); err != nil {
		return nil, err
	}
	return &fakeHandle{srv: srv}, nil
}

func testOptions() concurrency.Options {
	opts := concurrency.DefaultOptions()
	opts.Enabled = true
	opts.CheckInterval = 20 * time.Millisecond
	return opts
}

func TestDispatcher_StartWorkerChannel_AddsWorker(t *testing.T) {
	d := NewDispatcher(testOptions(), &inProcessLauncher{})
	defer d.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.StartWorkerChannel(ctx); err != nil {
		t.Fatalf("StartWorkerChannel: %v", err)
	}
	if got := d.WorkerCount(); got != 1 {
		t.Fatalf("WorkerCount = %d, want 1", got)
	}

	statuses, err := d.WorkerStatuses(ctx)
	if err != nil {
		t.Fatalf("WorkerStatuses: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("len(statuses) = %d, want 1", len(statuses))
	}
}

func TestDispatcher_WorkerStatuses_BecomesReadyAfterProbe(t *testing.T) {
	d := NewDispatcher(testOptions(), &inProcessLauncher{})
	defer d.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.StartWorkerChannel(ctx); err != nil {
		t.Fatalf("StartWorkerChannel: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statuses, err := d.WorkerStatuses(ctx)
		if err != nil {
			t.Fatalf("WorkerStatuses: %v", err)
		}
		for _, view := range statuses {
			if view.IsReady && len(view.History) > 0 {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("worker never reported ready with a non-empty history")
}

func TestDispatcher_StartWorkerChannel_LaunchFailurePropagates(t *testing.T) {
	d := NewDispatcher(testOptions(), &failingLauncher{})
	defer d.Close(context.Background())

	if err := d.StartWorkerChannel(context.Background()); err == nil {
		t.Fatal("expected error when launcher fails")
	}
	if got := d.WorkerCount(); got != 0 {
		t.Fatalf("WorkerCount = %d, want 0 after failed launch", got)
	}
}

func TestDispatcher_StartWorkerChannel_AfterClose(t *testing.T) {
	d := NewDispatcher(testOptions(), &inProcessLauncher{})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.StartWorkerChannel(context.Background()); err != ErrDispatcherClosed {
		t.Fatalf("StartWorkerChannel after Close = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcher_Close_StopsMonitorsAndProcesses(t *testing.T) {
	d := NewDispatcher(testOptions(), &inProcessLauncher{})
	ctx := context.Background()
	if err := d.StartWorkerChannel(ctx); err != nil {
		t.Fatalf("StartWorkerChannel: %v", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := d.WorkerCount(); got != 0 {
		t.Fatalf("WorkerCount after Close = %d, want 0", got)
	}
}

type failingLauncher struct{}

func (failingLauncher) Launch(ctx context.Context, workerID string, addr string) (ProcessHandle, error) {
	return nil, context.DeadlineExceeded
}

func TestHTTPDispatcher_RefusesToScale(t *testing.T) {
	d := NewHTTPDispatcher()
	if d.SupportsDynamicConcurrency() {
		t.Fatal("HTTPDispatcher must not support dynamic concurrency")
	}
	if err := d.StartWorkerChannel(context.Background()); err == nil {
		t.Fatal("expected StartWorkerChannel to fail on HTTPDispatcher")
	}
}
