// Package health probes transcription backends for readiness.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// DefaultTimeout bounds one probe when the caller's context has no deadline.
const DefaultTimeout = 2 * time.Second

// ErrNotReady marks a probe that reached the target but got a negative answer.
var ErrNotReady = errors.New("backend not ready")

// Result describes one successful probe.
type Result struct {
	Target  string
	Status  string
	Latency time.Duration
}

// HTTP issues GET url and treats any 2xx as ready.
func HTTP(ctx context.Context, client *http.Client, url string) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, errors.New("health url is empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build health request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: HTTP %d from %s", ErrNotReady, resp.StatusCode, url)
	}
	return Result{Target: url, Status: resp.Status, Latency: time.Since(started)}, nil
}

// GRPC dials target and runs the standard grpc.health.v1 Check for service.
// An empty service asks about the server as a whole.
func GRPC(ctx context.Context, target, service string) (Result, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Result{}, errors.New("grpc health target is empty")
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	started := time.Now()
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Result{}, fmt.Errorf("dial grpc %q: %w", target, err)
	}
	defer conn.Close()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return Result{}, fmt.Errorf("wait for grpc readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return Result{}, fmt.Errorf("grpc health check: %w", err)
	}

	status := describe(resp)
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return Result{}, fmt.Errorf("%w: %s reported %s", ErrNotReady, target, status)
	}
	return Result{Target: target, Status: status, Latency: time.Since(started)}, nil
}

// describe renders the response as compact JSON, e.g. {"status":"SERVING"}.
func describe(resp *healthpb.HealthCheckResponse) string {
	raw, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(resp)
	if err != nil {
		return resp.GetStatus().String()
	}
	return strings.Join(strings.Fields(string(raw)), "")
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
