package control

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// SocketEnv overrides the control socket location.
	SocketEnv = "CLUSTERDOCK_CONTROL_SOCKET"

	// Action names supported by the control protocol.
	ActionStateGet   = "state.get"
	ActionInspect    = "inspect"
	ActionReconcile  = "reconcile"
	ActionSolve      = "solve"
	ActionReload     = "reload"
	ActionMetricsGet = "metrics.get"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// SolveParams are the inputs of a stateless solve. Variant and Metrics fall
// back to the daemon's live values when omitted.
type SolveParams struct {
	Raw     float64         `json:"raw"`
	Mode    string          `json:"mode,omitempty"`
	Variant string          `json:"variant,omitempty"`
	Metrics *layout.Metrics `json:"metrics,omitempty"`
}

// SolveResult carries the solver output.
type SolveResult struct {
	Position float64          `json:"position"`
	OK       bool             `json:"ok"`
	Variant  string           `json:"variant"`
	Mode     string           `json:"mode"`
	Metrics  layout.Metrics   `json:"metrics"`
	DeadZone *layout.DeadZone `json:"deadZone,omitempty"`
}

// ReconcileResult reports the outcome of an immediate reflow.
type ReconcileResult struct {
	Position float64 `json:"position"`
	Changed  bool    `json:"changed"`
}

// InspectorSnapshot bundles the engine state with its correction history.
type InspectorSnapshot struct {
	State   engine.State        `json:"state"`
	History []engine.Correction `json:"history,omitempty"`
}

// DefaultSocketPath returns the expected location of the clusterdock control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv(SocketEnv); env != "" {
		return env, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	base := runtimeDir
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "clusterdock", SocketFileName), nil
}
