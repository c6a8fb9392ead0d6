package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/metrics"
	"github.com/hyprpal/clusterdock/internal/util"
)

// 127 columns leave 125 cells inside the border: 1000px at 8px per cell.
var sized = tea.WindowSizeMsg{Width: 127, Height: 12}

func newPlayground(t *testing.T, position float64) (*Playground, *engine.Engine, *engine.MemoryHost) {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	host := engine.NewMemoryHost(layout.Metrics{ClusterWidth: 200, ReservedZoneWidth: 200}, position)
	eng := engine.New(host, logger, metrics.NewCollector(true), engine.Options{
		Variant:     layout.Bounded,
		SettleDelay: time.Hour,
	})
	t.Cleanup(eng.Close)
	pg := NewPlayground(eng, host, logger, PlaygroundOptions{CellWidthPx: 8, SubControlWidth: 60})
	pg.Update(sized)
	eng.FlushReflow()
	return pg, eng, host
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(x int, action tea.MouseAction, button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: trackRow, Action: action, Button: button}
}

func TestWindowSizeSetsContainer(t *testing.T) {
	_, _, host := newPlayground(t, 50)
	assert.Equal(t, 1000.0, host.Metrics().ContainerWidth)
	assert.Equal(t, 50.0, host.Position())
}

func TestMouseDragAvoidsDeadZone(t *testing.T) {
	pg, eng, host := newPlayground(t, 50)

	pg.Update(mouse(10, tea.MouseActionPress, tea.MouseButtonLeft))
	require.True(t, eng.Dragging())
	assert.True(t, eng.State().Indicator.Visible)

	pg.Update(mouse(40, tea.MouseActionMotion, tea.MouseButtonLeft))
	assert.Equal(t, 80.0, host.Position())

	pg.Update(mouse(40, tea.MouseActionRelease, tea.MouseButtonLeft))
	assert.False(t, eng.Dragging())
	assert.Equal(t, 80.0, host.Position())
	assert.Equal(t, []bool{true, false}, host.Toggles())
}

func TestPressOutsideClusterDoesNotDrag(t *testing.T) {
	pg, eng, _ := newPlayground(t, 50)
	pg.Update(mouse(100, tea.MouseActionPress, tea.MouseButtonLeft))
	assert.False(t, eng.Dragging())

	miss := mouse(10, tea.MouseActionPress, tea.MouseButtonLeft)
	miss.Y = trackRow + 1
	pg.Update(miss)
	assert.False(t, eng.Dragging())
}

func TestRightClickDrops(t *testing.T) {
	pg, _, host := newPlayground(t, 50)
	pg.Update(mouse(78, tea.MouseActionPress, tea.MouseButtonRight))
	assert.Equal(t, 660.0, host.Position())
	assert.Contains(t, pg.status, "dropped at 660px")
}

func TestSubControlGrowthReflows(t *testing.T) {
	pg, eng, host := newPlayground(t, 720)

	pg.Update(key("s"))
	assert.Equal(t, 260.0, host.Metrics().ClusterWidth)
	require.True(t, eng.FlushReflow())
	assert.Equal(t, 710.0, host.Position())

	history := eng.History()
	require.NotEmpty(t, history)
	assert.Equal(t, "cluster-resized", history[len(history)-1].Trigger)

	// wraps back to the bare cluster
	for i := 0; i < maxSubControls; i++ {
		pg.Update(key("s"))
	}
	assert.Equal(t, 200.0, host.Metrics().ClusterWidth)
}

func TestKeysAdjustReservedZoneAndVariant(t *testing.T) {
	pg, eng, host := newPlayground(t, 50)

	pg.Update(key("["))
	assert.Equal(t, 160.0, host.Metrics().ReservedZoneWidth)
	pg.Update(key("]"))
	pg.Update(key("]"))
	assert.Equal(t, 240.0, host.Metrics().ReservedZoneWidth)

	pg.Update(key("v"))
	assert.Equal(t, layout.Free, eng.Variant())
	pg.Update(key("v"))
	assert.Equal(t, layout.Bounded, eng.Variant())
}

func TestReconcileKey(t *testing.T) {
	pg, _, host := newPlayground(t, 50)
	host.SetPosition(900)
	pg.Update(key("r"))
	assert.Equal(t, 770.0, host.Position())
	assert.Equal(t, "reconciled to 770px", pg.status)
}

func TestQuitEndsDrag(t *testing.T) {
	pg, eng, _ := newPlayground(t, 50)
	pg.Update(mouse(10, tea.MouseActionPress, tea.MouseButtonLeft))
	require.True(t, eng.Dragging())

	_, cmd := pg.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, eng.Dragging())
}

func TestViewShowsState(t *testing.T) {
	pg, _, _ := newPlayground(t, 50)
	view := pg.View()
	assert.Contains(t, view, "variant bounded")
	assert.Contains(t, view, "position 50px")
	assert.Contains(t, view, "menus open right")
	assert.Contains(t, view, "controls")

	// corrected to 770 by the initial reflow, 30px from the edge
	near, _, _ := newPlayground(t, 780)
	assert.Contains(t, near.View(), "menus open left")
}
