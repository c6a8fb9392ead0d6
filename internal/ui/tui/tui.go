package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hyprpal/clusterdock/internal/control/client"
	"github.com/hyprpal/clusterdock/internal/engine"
)

const (
	defaultRefresh = 500 * time.Millisecond
	historyRows    = 12
	sessionIDWidth = 8
)

// Inspector is the subset of the control client the dashboard polls.
type Inspector interface {
	Inspect(ctx context.Context) (client.InspectorState, error)
}

// Renderer periodically polls the daemon and renders a textual dashboard.
type Renderer struct {
	Client  Inspector
	Writer  io.Writer
	Refresh time.Duration
}

// New returns a renderer configured with sensible defaults.
func New(cli Inspector, w io.Writer) *Renderer {
	return &Renderer{Client: cli, Writer: w, Refresh: defaultRefresh}
}

// Run starts the render loop until the context is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	if r.Client == nil {
		return fmt.Errorf("tui renderer requires a control client")
	}

	refresh := r.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	fmt.Fprint(r.Writer, "\033[?25l")
	defer fmt.Fprint(r.Writer, "\033[?25h")

	r.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.render(ctx)
		}
	}
}

func (r *Renderer) render(ctx context.Context) {
	var buf bytes.Buffer
	buf.WriteString("\033[H\033[2J")
	buf.WriteString("clusterdock inspector (Ctrl+C to exit)\n")
	buf.WriteString(time.Now().Format(time.RFC1123))
	buf.WriteString("\n\n")

	snapshot, err := r.Client.Inspect(ctx)
	if err != nil {
		buf.WriteString(fmt.Sprintf("error: %v\n", err))
		fmt.Fprint(r.Writer, buf.String())
		return
	}
	buf.WriteString(Dashboard(snapshot))
	fmt.Fprint(r.Writer, buf.String())
}

// Dashboard renders an inspector snapshot as plain text.
func Dashboard(snapshot client.InspectorState) string {
	var b strings.Builder
	b.WriteString(renderState(snapshot.State))
	b.WriteString(renderHistory(snapshot.History))
	return b.String()
}

func renderState(st engine.State) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Variant:\t%s\n", st.Variant)
	fmt.Fprintf(tw, "Position:\t%.1f\t%s\n", st.Position, validity(st))
	fmt.Fprintf(tw, "Container:\t%s\n", formatWidth(st.Metrics.ContainerWidth))
	fmt.Fprintf(tw, "Cluster:\t%s\n", formatWidth(st.Metrics.ClusterWidth))
	fmt.Fprintf(tw, "Reserved zone:\t%s\n", formatWidth(st.Metrics.ReservedZoneWidth))
	if st.DeadZone != nil {
		highlight := "hidden"
		if st.Indicator.Visible {
			highlight = "shown"
		}
		fmt.Fprintf(tw, "Dead zone:\t%.1f-%.1f\t%s\n", st.DeadZone.Start, st.DeadZone.End, highlight)
	}
	menus := "right"
	if st.NearRightEdge {
		menus = "left"
	}
	fmt.Fprintf(tw, "Menus open:\t%s\n", menus)
	fmt.Fprintf(tw, "Drag:\t%s\n", formatSession(st))
	reflow := "idle"
	if st.ReflowPending {
		reflow = "pending"
	}
	fmt.Fprintf(tw, "Reflow:\t%s\t(settle %s)\n", reflow, st.SettleDelay)
	tw.Flush()
	b.WriteByte('\n')
	return b.String()
}

func renderHistory(history []engine.Correction) string {
	var b strings.Builder
	b.WriteString("Corrections:\n")
	if len(history) == 0 {
		b.WriteString("  (none)\n\n")
		return b.String()
	}
	// newest first, capped
	rows := make([]engine.Correction, 0, historyRows)
	for i := len(history) - 1; i >= 0 && len(rows) < historyRows; i-- {
		rows = append(rows, history[i])
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tPath\tVariant\tFrom\tTo\tCause")
	for _, c := range rows {
		cause := c.Trigger
		if cause == "" && c.Session != "" {
			cause = "session " + truncate(c.Session, sessionIDWidth)
		}
		if cause == "" {
			cause = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\t%s\n", c.Timestamp.Format("15:04:05.000"), c.Path, c.Variant, c.From, c.To, cause)
	}
	tw.Flush()
	if hidden := len(history) - len(rows); hidden > 0 {
		fmt.Fprintf(&b, "  ... %d older\n", hidden)
	}
	b.WriteByte('\n')
	return b.String()
}

func validity(st engine.State) string {
	if st.Valid {
		return "valid"
	}
	return "INVALID"
}

func formatWidth(px float64) string {
	if px <= 0 {
		return "(unmeasured)"
	}
	return fmt.Sprintf("%.0fpx", px)
}

func formatSession(st engine.State) string {
	if !st.Dragging || st.Session == nil {
		return "idle"
	}
	return fmt.Sprintf("session %s, %d move(s), grab offset %.1f", truncate(st.Session.ID, sessionIDWidth), st.Session.Moves, st.Session.GrabOffset)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
