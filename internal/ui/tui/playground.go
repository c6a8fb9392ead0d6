package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyprpal/clusterdock/internal/drag"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/reflow"
	"github.com/hyprpal/clusterdock/internal/util"
)

const (
	// trackRow is the terminal row holding the toolbar track.
	trackRow = 3
	// trackLeftCol is the first column inside the track border.
	trackLeftCol = 1

	maxSubControls    = 3
	reservedZoneStep  = 40
	minReservedZonePx = 0
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	trackStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
	clusterStyle  = lipgloss.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("230"))
	draggingStyle = lipgloss.NewStyle().Background(lipgloss.Color("205")).Foreground(lipgloss.Color("230"))
	reservedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("250"))
	zoneStyle     = lipgloss.NewStyle().Background(lipgloss.Color("52"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// refreshMsg asks the program to redraw after the host changed off the UI loop.
type refreshMsg struct{}

// PlaygroundOptions sizes the simulated toolbar.
type PlaygroundOptions struct {
	CellWidthPx     float64
	ClusterWidth    float64
	SubControlWidth float64
}

// Playground is a terminal host for the engine: a one-row toolbar whose
// cluster is dragged with the mouse. Terminal cells map to CellWidthPx pixels.
type Playground struct {
	eng    *engine.Engine
	host   *engine.MemoryHost
	logger *util.Logger
	opts   PlaygroundOptions

	subControls int
	cols        int
	rows        int
	status      string
}

// NewPlayground wires a playground to eng, which must be backed by host.
func NewPlayground(eng *engine.Engine, host *engine.MemoryHost, logger *util.Logger, opts PlaygroundOptions) *Playground {
	if opts.CellWidthPx <= 0 {
		opts.CellWidthPx = 8
	}
	if opts.ClusterWidth <= 0 {
		opts.ClusterWidth = host.Metrics().ClusterWidth
	}
	return &Playground{eng: eng, host: host, logger: logger, opts: opts}
}

// RunPlayground runs the playground until the user quits or ctx is cancelled.
func RunPlayground(ctx context.Context, pg *Playground) error {
	p := tea.NewProgram(pg,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	// reflows land on a timer goroutine; Send blocks until the loop reads it
	pg.host.OnChange(func() { go p.Send(refreshMsg{}) })
	defer pg.host.OnChange(nil)

	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Playground) Init() tea.Cmd {
	return nil
}

func (m *Playground) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case refreshMsg:
	}
	return m, nil
}

func (m *Playground) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if m.eng.Dragging() {
			m.eng.EndDrag()
		}
		return tea.Quit
	case "s":
		m.subControls = (m.subControls + 1) % (maxSubControls + 1)
		metrics := m.host.Metrics()
		metrics.ClusterWidth = m.opts.ClusterWidth + float64(m.subControls)*m.opts.SubControlWidth
		m.host.SetMetrics(metrics)
		m.eng.NotifyResize(reflow.TriggerClusterResized)
		m.status = fmt.Sprintf("%d sub-control(s) open", m.subControls)
	case "[", "]":
		metrics := m.host.Metrics()
		step := float64(reservedZoneStep)
		if msg.String() == "[" {
			step = -step
		}
		metrics.ReservedZoneWidth = math.Max(minReservedZonePx, metrics.ReservedZoneWidth+step)
		m.host.SetMetrics(metrics)
		m.eng.NotifyResize(reflow.TriggerReservedZoneResized)
		m.status = fmt.Sprintf("reserved zone %.0fpx", metrics.ReservedZoneWidth)
	case "v":
		next := layout.Free
		if m.eng.Variant() == layout.Free {
			next = layout.Bounded
		}
		m.eng.SetVariant(next)
		m.status = "variant " + next.String()
	case "r":
		if pos, changed := m.eng.Reconcile(); changed {
			m.status = fmt.Sprintf("reconciled to %.0fpx", pos)
		} else {
			m.status = "position already valid"
		}
	}
	return nil
}

func (m *Playground) handleMouse(msg tea.MouseMsg) {
	pointerX := float64(msg.X) * m.opts.CellWidthPx
	containerLeft := float64(trackLeftCol) * m.opts.CellWidthPx

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Y != trackRow {
			return
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			pos := m.host.Position()
			width := m.host.Metrics().ClusterWidth
			local := pointerX - containerLeft
			if local < pos || local > pos+width {
				return
			}
			s := m.eng.BeginDrag(drag.Point{X: pointerX, Y: float64(msg.Y)}, containerLeft+pos)
			m.status = "dragging " + shortID(s.ID)
		case tea.MouseButtonRight:
			if pos, ok := m.eng.Drop(pointerX, containerLeft); ok {
				m.status = fmt.Sprintf("dropped at %.0fpx", pos)
			}
		}
	case tea.MouseActionMotion:
		if m.eng.Dragging() {
			m.eng.DragMove(pointerX, containerLeft)
		}
	case tea.MouseActionRelease:
		if m.eng.Dragging() {
			pos, settled := m.eng.EndDrag()
			if settled {
				m.status = fmt.Sprintf("settled at %.0fpx", pos)
			} else {
				m.status = "released"
			}
		}
	}
}

// resize maps the terminal width onto the container, minus the track border.
func (m *Playground) resize(cols, rows int) {
	m.cols, m.rows = cols, rows
	inner := cols - 2*trackLeftCol
	if inner < 0 {
		inner = 0
	}
	metrics := m.host.Metrics()
	metrics.ContainerWidth = float64(inner) * m.opts.CellWidthPx
	m.host.SetMetrics(metrics)
	m.logger.Debugf("playground resized to %d columns (%.0fpx)", inner, metrics.ContainerWidth)
	m.eng.NotifyResize(reflow.TriggerContainerResized)
}

func (m *Playground) View() string {
	st := m.eng.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("clusterdock playground"))
	b.WriteString("  ")
	menus := "right"
	if st.NearRightEdge {
		menus = "left"
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("variant %s | position %.0fpx | menus open %s", st.Variant, st.Position, menus)))
	b.WriteString("\n")
	if !st.Valid {
		b.WriteString(warnStyle.Render("position violates layout invariants"))
	}
	b.WriteString("\n")

	b.WriteString(trackStyle.Render(m.renderTrack(st)))
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("drag cluster with left button  right-click drops  s sub-controls  [ ] reserved zone  v variant  r reconcile  q quit"))
	return b.String()
}

func (m *Playground) renderTrack(st engine.State) string {
	cells := int(st.Metrics.ContainerWidth / m.opts.CellWidthPx)
	if cells <= 0 {
		return ""
	}
	toCell := func(px float64) int {
		c := int(math.Round(px / m.opts.CellWidthPx))
		if c < 0 {
			return 0
		}
		if c > cells {
			return cells
		}
		return c
	}

	kinds := make([]byte, cells)
	for i := range kinds {
		kinds[i] = ' '
	}
	mark := func(from, to int, kind byte) {
		for i := from; i < to && i < cells; i++ {
			if i >= 0 {
				kinds[i] = kind
			}
		}
	}
	if st.Indicator.Visible {
		mark(toCell(st.Indicator.Start), toCell(st.Indicator.Start+st.Indicator.Width), 'z')
	}
	c, r := st.Metrics.ContainerWidth, st.Metrics.ReservedZoneWidth
	mark(toCell((c-r)/2), toCell((c+r)/2), 'r')
	mark(toCell(st.Position), toCell(st.Position+st.Metrics.ClusterWidth), 'c')

	cluster := clusterStyle
	if st.Dragging {
		cluster = draggingStyle
	}
	var b strings.Builder
	for i := 0; i < cells; {
		j := i
		for j < cells && kinds[j] == kinds[i] {
			j++
		}
		span := strings.Repeat(" ", j-i)
		switch kinds[i] {
		case 'z':
			b.WriteString(zoneStyle.Render(span))
		case 'r':
			b.WriteString(reservedStyle.Render(span))
		case 'c':
			b.WriteString(cluster.Render(label(span, "⣿ controls")))
		default:
			b.WriteString(span)
		}
		i = j
	}
	return b.String()
}

// label centres text inside span when it fits.
func label(span, text string) string {
	w := len(span)
	n := len([]rune(text))
	if n > w {
		return span
	}
	left := (w - n) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", w-n-left)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
