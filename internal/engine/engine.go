package engine

import (
	"sync"
	"time"

	"github.com/hyprpal/clusterdock/internal/drag"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/metrics"
	"github.com/hyprpal/clusterdock/internal/reflow"
	"github.com/hyprpal/clusterdock/internal/util"
)

// Options configures a new engine.
type Options struct {
	Params      layout.Params
	Variant     layout.Variant
	SettleDelay time.Duration
}

// Engine ties the solver, the drag controller, and the reflow reconciler to a
// host. Host callbacks run after the engine lock is released, in order.
type Engine struct {
	host      Host
	logger    *util.Logger
	collector *metrics.Collector

	mu        sync.Mutex
	params    layout.Params
	variant   layout.Variant
	drag      *drag.Controller
	reflow    *reflow.Reconciler
	session   *drag.Session
	dragFrom  float64
	dropHover bool
	outbox    []notification
	history   *correctionLog
}

type notification struct {
	dragging bool
	toggle   bool
	position float64
}

// State is a point-in-time view of the engine and its host.
type State struct {
	Variant       string           `json:"variant"`
	Params        layout.Params    `json:"params"`
	Position      float64          `json:"position"`
	Metrics       layout.Metrics   `json:"metrics"`
	DeadZone      *layout.DeadZone `json:"deadZone,omitempty"`
	Indicator     layout.Indicator `json:"indicator"`
	Valid         bool             `json:"valid"`
	NearRightEdge bool             `json:"nearRightEdge"`
	Dragging      bool             `json:"dragging"`
	Session       *drag.Session    `json:"session,omitempty"`
	ReflowPending bool             `json:"reflowPending"`
	SettleDelay   time.Duration    `json:"settleDelay"`
}

// New creates an engine for host. If host also implements drag.PointerCapture,
// it is captured for the lifetime of every drag session.
func New(host Host, logger *util.Logger, collector *metrics.Collector, opts Options) *Engine {
	if opts.Params == (layout.Params{}) {
		opts.Params = layout.DefaultParams()
	}
	e := &Engine{
		host:      host,
		logger:    logger,
		collector: collector,
		params:    opts.Params,
		variant:   opts.Variant,
		history:   newCorrectionLog(0),
	}
	var capture drag.PointerCapture
	if c, ok := host.(drag.PointerCapture); ok {
		capture = c
	}
	e.drag = drag.NewController(opts.Params, logger, drag.Callbacks{
		PositionChanged: func(p float64) {
			e.outbox = append(e.outbox, notification{position: p})
		},
		DraggingChanged: func(d bool) {
			e.outbox = append(e.outbox, notification{toggle: true, dragging: d})
		},
	}, capture)
	e.reflow = reflow.New(opts.SettleDelay, logger, e.runReflow)
	return e
}

// Variant returns the active layout variant.
func (e *Engine) Variant() layout.Variant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variant
}

// SetVariant switches the layout variant and re-validates the position.
func (e *Engine) SetVariant(v layout.Variant) {
	e.mu.Lock()
	changed := e.variant != v
	e.variant = v
	e.mu.Unlock()
	if changed {
		e.logger.Infof("variant set to %s", v)
		e.NotifyResize(reflow.TriggerManual)
	}
}

// Params returns the solver geometry.
func (e *Engine) Params() layout.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetParams replaces the solver geometry and re-validates the position.
func (e *Engine) SetParams(p layout.Params) {
	e.mu.Lock()
	changed := e.params != p
	e.params = p
	e.drag.SetParams(p)
	e.mu.Unlock()
	if changed {
		e.NotifyResize(reflow.TriggerManual)
	}
}

// SetSettleDelay changes the reflow debounce window.
func (e *Engine) SetSettleDelay(d time.Duration) {
	e.reflow.SetDelay(d)
}

// Solve runs the solver against the host's live metrics without side effects.
func (e *Engine) Solve(raw float64, mode layout.Mode) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Solve(raw, e.host.Metrics(), e.variant, mode)
}

// BeginDrag opens a drag session. Any pending reflow is cancelled first so the
// two correction paths never act on the same tick.
func (e *Engine) BeginDrag(pointer drag.Point, clusterLeftEdgeX float64) *drag.Session {
	e.mu.Lock()
	e.reflow.Suspend()
	s := e.drag.Start(pointer, clusterLeftEdgeX)
	e.session = s
	e.dragFrom = e.host.Position()
	e.drainAndUnlock()
	return s
}

// DragMove feeds a pointer move into the live session.
func (e *Engine) DragMove(pointerX, containerLeftEdgeX float64) (float64, bool) {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		return 0, false
	}
	variant := e.variant.String()
	pos, ok := e.drag.Move(s, pointerX, containerLeftEdgeX, e.host.Metrics(), e.variant)
	e.collector.RecordSolved(metrics.PathDrag, variant)
	switch {
	case !ok:
		e.collector.RecordRejected(metrics.PathDrag, variant)
	case pos != pointerX-containerLeftEdgeX-s.GrabOffset:
		// only moves the solver had to snap or push count as corrections
		e.collector.RecordCorrected(metrics.PathDrag, variant)
	}
	e.drainAndUnlock()
	return pos, ok
}

// EndDrag closes the live session, runs the settle pass, and replays any
// reflow trigger dropped while dragging.
func (e *Engine) EndDrag() (float64, bool) {
	e.mu.Lock()
	s := e.session
	if s == nil {
		e.mu.Unlock()
		return 0, false
	}
	e.session = nil
	current := e.host.Position()
	pos, changed := e.drag.End(s, current, e.host.Metrics(), e.variant)
	variant := e.variant.String()
	if e.variant == layout.Bounded {
		e.collector.RecordSolved(metrics.PathSettle, variant)
	}
	if changed {
		e.collector.RecordCorrected(metrics.PathSettle, variant)
		e.history.record(Correction{
			Timestamp: time.Now(),
			Path:      metrics.PathSettle,
			Variant:   variant,
			Session:   s.ID,
			From:      current,
			To:        pos,
		})
	}
	if pos != e.dragFrom {
		e.history.record(Correction{
			Timestamp: time.Now(),
			Path:      metrics.PathDrag,
			Variant:   variant,
			Session:   s.ID,
			From:      e.dragFrom,
			To:        pos,
		})
	}
	missed, replay := e.reflow.Resume()
	e.drainAndUnlock()
	if replay {
		e.logger.Debugf("replaying reflow trigger %s dropped during drag", missed)
		e.reflow.Schedule(missed)
	}
	return pos, changed
}

// Dragging reports whether a drag session is live.
func (e *Engine) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// SetDropHover records whether a drop is hovering the container, which shows
// the dead-zone indicator.
func (e *Engine) SetDropHover(hover bool) {
	e.mu.Lock()
	e.dropHover = hover
	e.mu.Unlock()
}

// Drop places the cluster at the release coordinate of a drop target.
func (e *Engine) Drop(pointerX, containerLeftEdgeX float64) (float64, bool) {
	e.mu.Lock()
	e.dropHover = false
	from := e.host.Position()
	variant := e.variant.String()
	pos, ok := e.drag.Drop(pointerX, containerLeftEdgeX, e.host.Metrics(), e.variant)
	e.collector.RecordSolved(metrics.PathDrop, variant)
	if ok {
		e.collector.RecordCorrected(metrics.PathDrop, variant)
		e.history.record(Correction{
			Timestamp: time.Now(),
			Path:      metrics.PathDrop,
			Variant:   variant,
			From:      from,
			To:        pos,
		})
	} else {
		e.collector.RecordRejected(metrics.PathDrop, variant)
	}
	e.drainAndUnlock()
	return pos, ok
}

// NotifyResize schedules a debounced reflow. It is a no-op while dragging.
func (e *Engine) NotifyResize(trigger reflow.Trigger) bool {
	return e.reflow.Schedule(trigger)
}

// FlushReflow runs a pending debounced reflow immediately.
func (e *Engine) FlushReflow() bool {
	return e.reflow.Flush()
}

// Reconcile re-validates the position immediately. It is a no-op while
// dragging.
func (e *Engine) Reconcile() (float64, bool) {
	return e.reconcile(reflow.TriggerManual)
}

func (e *Engine) runReflow(trigger reflow.Trigger) {
	e.reconcile(trigger)
}

func (e *Engine) reconcile(trigger reflow.Trigger) (float64, bool) {
	e.mu.Lock()
	current := e.host.Position()
	variant := e.variant.String()
	if e.session != nil {
		e.collector.RecordRejected(metrics.PathReflow, variant)
		e.mu.Unlock()
		e.logger.Debugf("reflow %s skipped during drag", trigger)
		return current, false
	}
	e.collector.RecordSolved(metrics.PathReflow, variant)
	next, changed := reflow.Reconcile(e.params, current, e.host.Metrics(), e.variant)
	if changed {
		e.collector.RecordCorrected(metrics.PathReflow, variant)
		e.history.record(Correction{
			Timestamp: time.Now(),
			Path:      metrics.PathReflow,
			Variant:   variant,
			Trigger:   string(trigger),
			From:      current,
			To:        next,
		})
		e.outbox = append(e.outbox, notification{position: next})
		e.logger.Infof("reflow (%s) corrected position %.1f -> %.1f", trigger, current, next)
	}
	e.drainAndUnlock()
	return next, changed
}

// drainAndUnlock releases the lock and delivers queued host notifications.
func (e *Engine) drainAndUnlock() {
	pending := e.outbox
	e.outbox = nil
	e.mu.Unlock()
	for _, n := range pending {
		if n.toggle {
			e.host.DraggingChanged(n.dragging)
			continue
		}
		e.host.PositionChanged(n.position)
	}
}

// State returns a snapshot of the engine and host.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.host.Metrics()
	pos := e.host.Position()
	st := State{
		Variant:       e.variant.String(),
		Params:        e.params,
		Position:      pos,
		Metrics:       m,
		Indicator:     e.params.Indicator(m, e.variant, e.session != nil || e.dropHover),
		Valid:         e.params.Valid(pos, m, e.variant),
		NearRightEdge: e.params.NearRightEdge(pos, m),
		Dragging:      e.session != nil,
		ReflowPending: e.reflow.Pending(),
		SettleDelay:   e.reflow.Delay(),
	}
	if e.variant == layout.Bounded {
		zone := e.params.DeadZone(m)
		st.DeadZone = &zone
	}
	if e.session != nil {
		clone := *e.session
		st.Session = &clone
	}
	return st
}

// History returns the recorded corrections, oldest first.
func (e *Engine) History() []Correction {
	return e.history.snapshot()
}

// Telemetry returns the collector snapshot.
func (e *Engine) Telemetry() metrics.Snapshot {
	return e.collector.Snapshot()
}

// Close cancels any pending reflow and rejects further triggers.
func (e *Engine) Close() {
	e.reflow.Close()
}
