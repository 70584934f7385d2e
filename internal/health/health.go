// Package health probes the interview backend's gRPC health service.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Result is the outcome of one health check.
type Result struct {
	Endpoint string
	Service  string
	Status   healthpb.HealthCheckResponse_ServingStatus
	Raw      string
	Latency  time.Duration
}

// Serving reports whether the backend declared itself SERVING.
func (r Result) Serving() bool {
	return r.Status == healthpb.HealthCheckResponse_SERVING
}

// Check dials endpoint, waits for the connection to become ready within
// timeout, and calls grpc.health.v1.Health/Check for service.
func Check(ctx context.Context, endpoint string, service string, timeout time.Duration) (Result, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{}, errors.New("health endpoint is empty")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return Result{}, fmt.Errorf("dial health grpc %q: %w", endpoint, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return Result{}, fmt.Errorf("wait for health grpc readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return Result{}, fmt.Errorf("health check %q: %w", endpoint, err)
	}

	raw, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(resp)
	if err != nil {
		return Result{}, fmt.Errorf("encode health response: %w", err)
	}

	return Result{
		Endpoint: endpoint,
		Service:  service,
		Status:   resp.GetStatus(),
		Raw:      string(raw),
		Latency:  time.Since(started),
	}, nil
}

// waitForReady blocks until the connection is Ready or ctx ends.
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
