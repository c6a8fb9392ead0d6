package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyprpal/clusterdock/internal/control/client"
	"github.com/hyprpal/clusterdock/internal/drag"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/metrics"
)

type stubInspector struct {
	snapshot client.InspectorState
	err      error
	calls    int
}

func (s *stubInspector) Inspect(context.Context) (client.InspectorState, error) {
	s.calls++
	return s.snapshot, s.err
}

func sampleSnapshot() client.InspectorState {
	zone := layout.DeadZone{Start: 280, End: 660}
	return client.InspectorState{
		State: engine.State{
			Variant:     "bounded",
			Position:    700,
			Metrics:     layout.Metrics{ContainerWidth: 1000, ClusterWidth: 300, ReservedZoneWidth: 200},
			DeadZone:    &zone,
			Indicator:   layout.Indicator{Start: 280, Width: 380, Visible: true},
			Dragging:    true,
			Session:     &drag.Session{ID: "0123456789abcdef", Moves: 3, GrabOffset: 12},
			SettleDelay: 50 * time.Millisecond,
		},
		History: []engine.Correction{
			{Path: metrics.PathDrag, Variant: "bounded", Session: "0123456789abcdef", From: 50, To: 80},
			{Path: metrics.PathReflow, Variant: "bounded", Trigger: "container-resized", From: 700, To: 670},
		},
	}
}

func TestDashboardRendersStateAndHistory(t *testing.T) {
	out := Dashboard(sampleSnapshot())
	for _, want := range []string{
		"INVALID",
		"280.0-660.0",
		"shown",
		"session 01234567, 3 move(s)",
		"Menus open:",
		"container-resized",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in dashboard:\n%s", want, out)
		}
	}
	// newest correction is listed first
	if strings.Index(out, "container-resized") > strings.Index(out, "drag ") {
		t.Fatalf("expected newest correction first:\n%s", out)
	}
}

func TestDashboardEmptyHistory(t *testing.T) {
	snap := sampleSnapshot()
	snap.History = nil
	snap.State.Metrics.ContainerWidth = 0
	out := Dashboard(snap)
	if !strings.Contains(out, "(none)") || !strings.Contains(out, "(unmeasured)") {
		t.Fatalf("unexpected dashboard:\n%s", out)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	stub := &stubInspector{err: errors.New("dial control socket: no such file")}
	var buf bytes.Buffer
	r := New(stub, &buf)
	r.Refresh = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if stub.calls == 0 || !strings.Contains(buf.String(), "error: dial control socket") {
		t.Fatalf("expected rendered error, got %q", buf.String())
	}
}

func TestRunRequiresClient(t *testing.T) {
	if err := (&Renderer{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error without client")
	}
}
