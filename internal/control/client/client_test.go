package client

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyprpal/clusterdock/internal/control"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/metrics"
	"github.com/hyprpal/clusterdock/internal/util"
)

func startTestServer(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "socket")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handler(conn)
	}()
	return path
}

// expectAction decodes the request and fails the test on an unexpected action.
func expectAction(t *testing.T, conn net.Conn, action string) (control.Request, bool) {
	var req control.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		t.Errorf("decode request: %v", err)
		return req, false
	}
	if req.Action != action {
		t.Errorf("unexpected action %q", req.Action)
		return req, false
	}
	return req, true
}

func TestSolveSendsParams(t *testing.T) {
	path := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		req, ok := expectAction(t, conn, control.ActionSolve)
		if !ok {
			return
		}
		if req.Params["raw"] != 300.0 || req.Params["mode"] != "corrective" {
			t.Errorf("unexpected params: %#v", req.Params)
			return
		}
		m, _ := req.Params["metrics"].(map[string]any)
		if m["containerWidth"] != 1000.0 {
			t.Errorf("expected metrics in params, got %#v", req.Params["metrics"])
			return
		}
		resp := control.Response{Status: control.StatusOK, Data: control.SolveResult{Position: 300, OK: true, Mode: "corrective"}}
		_ = json.NewEncoder(conn).Encode(resp)
	})
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	result, err := cli.Solve(context.Background(), SolveParams{
		Raw:     300,
		Mode:    "corrective",
		Metrics: &layout.Metrics{ContainerWidth: 1000, ClusterWidth: 200},
	})
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if !result.OK || result.Position != 300 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestMetricsSuccess(t *testing.T) {
	path := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, ok := expectAction(t, conn, control.ActionMetricsGet); !ok {
			return
		}
		resp := control.Response{Status: control.StatusOK, Data: metrics.Snapshot{
			Enabled: true,
			Totals:  metrics.Totals{Solved: 4, Corrected: 2},
			Paths:   []metrics.PathMetrics{{Path: metrics.PathDrag, Variant: "bounded", Solved: 4, Corrected: 2}},
		}}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	})
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	snapshot, err := cli.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics returned error: %v", err)
	}
	if !snapshot.Enabled || snapshot.Totals.Solved != 4 || snapshot.Totals.Corrected != 2 {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
	if len(snapshot.Paths) != 1 || snapshot.Paths[0].Path != metrics.PathDrag {
		t.Fatalf("unexpected paths: %#v", snapshot.Paths)
	}
}

func TestServerErrorIsReturned(t *testing.T) {
	path := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, ok := expectAction(t, conn, control.ActionReload); !ok {
			return
		}
		_ = json.NewEncoder(conn).Encode(control.Response{Status: control.StatusError, Error: "playground.clusterWidth: must be positive"})
	})
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	err = cli.Reload(context.Background())
	if err == nil || err.Error() != "playground.clusterWidth: must be positive" {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestEmptyErrorStatus(t *testing.T) {
	path := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, ok := expectAction(t, conn, control.ActionStateGet); !ok {
			return
		}
		_ = json.NewEncoder(conn).Encode(control.Response{Status: control.StatusError})
	})
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := cli.State(context.Background()); err == nil || err.Error() != "unknown control error" {
		t.Fatalf("expected generic error, got %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	cli, err := New(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := cli.State(ctx); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv(control.SocketEnv, "/tmp/custom.sock")
	cli, err := New("")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if cli.socketPath != "/tmp/custom.sock" {
		t.Fatalf("expected env socket path, got %s", cli.socketPath)
	}
}

func TestAgainstLiveServer(t *testing.T) {
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	host := engine.NewMemoryHost(layout.Metrics{ContainerWidth: 1000, ClusterWidth: 300, ReservedZoneWidth: 200}, 700)
	eng := engine.New(host, logger, metrics.NewCollector(false), engine.Options{})
	defer eng.Close()

	path := filepath.Join(t.TempDir(), "control.sock")
	srv := control.NewServerAt(path, eng, logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	var st State
	deadline := time.Now().Add(time.Second)
	for {
		st, err = cli.State(context.Background())
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st.Position != 700 || st.Valid {
		t.Fatalf("expected overflowing position 700, got %+v", st)
	}

	result, err := cli.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !result.Changed || result.Position != 670 {
		t.Fatalf("unexpected reconcile result %+v", result)
	}
	inspect, err := cli.Inspect(context.Background())
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if inspect.State.Position != 670 || len(inspect.History) != 1 {
		t.Fatalf("unexpected inspector payload %+v", inspect)
	}
}
