package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hyprpal/clusterdock/internal/control"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/metrics"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running clusterdock daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// State mirrors the engine state returned by the daemon.
	State = engine.State
	// InspectorState captures the daemon's inspector payload.
	InspectorState = control.InspectorSnapshot
	// SolveParams are the inputs of a stateless solve.
	SolveParams = control.SolveParams
	// SolveResult carries the solver output.
	SolveResult = control.SolveResult
	// ReconcileResult reports the outcome of an immediate reflow.
	ReconcileResult = control.ReconcileResult
	// MetricsSnapshot mirrors the telemetry counters.
	MetricsSnapshot = metrics.Snapshot
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// State retrieves the daemon's current position, metrics and drag state.
func (c *Client) State(ctx context.Context) (State, error) {
	var st State
	if err := c.do(ctx, control.Request{Action: control.ActionStateGet}, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Inspect retrieves the state together with the correction history.
func (c *Client) Inspect(ctx context.Context) (InspectorState, error) {
	var snapshot InspectorState
	if err := c.do(ctx, control.Request{Action: control.ActionInspect}, &snapshot); err != nil {
		return InspectorState{}, err
	}
	return snapshot, nil
}

// Reconcile asks the daemon to re-validate the position immediately.
func (c *Client) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	if err := c.do(ctx, control.Request{Action: control.ActionReconcile}, &result); err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}

// Solve runs the daemon's solver without moving the cluster.
func (c *Client) Solve(ctx context.Context, params SolveParams) (SolveResult, error) {
	payload := map[string]any{"raw": params.Raw}
	if params.Mode != "" {
		payload["mode"] = params.Mode
	}
	if params.Variant != "" {
		payload["variant"] = params.Variant
	}
	if params.Metrics != nil {
		payload["metrics"] = params.Metrics
	}
	var result SolveResult
	if err := c.do(ctx, control.Request{Action: control.ActionSolve, Params: payload}, &result); err != nil {
		return SolveResult{}, err
	}
	return result, nil
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

// Metrics retrieves the telemetry counters.
func (c *Client) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	var snapshot MetricsSnapshot
	if err := c.do(ctx, control.Request{Action: control.ActionMetricsGet}, &snapshot); err != nil {
		return MetricsSnapshot{}, err
	}
	return snapshot, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp struct {
		Status string          `json:"status"`
		Error  string          `json:"error"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
