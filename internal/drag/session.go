// Package drag implements the pointer-driven session lifecycle that moves the
// floating cluster. Hosts route their native pointer events into Start, Move,
// End, and Drop; the controller never subscribes to events on its own.
package drag

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/util"
)

// Point is a pointer coordinate in logical pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Session captures the transient state of one drag gesture.
type Session struct {
	ID           string    `json:"id"`
	Active       bool      `json:"active"`
	PointerStart Point     `json:"pointerStart"`
	GrabOffset   float64   `json:"grabOffset"`
	StartedAt    time.Time `json:"startedAt"`
	Moves        int       `json:"moves"`

	last    float64
	hasLast bool
	log     *util.Logger
}

// LastPosition returns the most recent position emitted for the session.
func (s *Session) LastPosition() (float64, bool) {
	if s == nil {
		return 0, false
	}
	return s.last, s.hasLast
}

// PointerCapture is implemented by hosts that need to register global pointer
// listeners for the lifetime of a session.
type PointerCapture interface {
	Capture()
	Release()
}

// Callbacks are the collaborator notifications fired by the controller.
type Callbacks struct {
	PositionChanged func(position float64)
	DraggingChanged func(dragging bool)
}

// Controller drives drag sessions through the solver. It is not safe for
// concurrent use; callers serialize access.
type Controller struct {
	params    layout.Params
	logger    *util.Logger
	callbacks Callbacks
	capture   PointerCapture

	active *Session

	newID func() string
	now   func() time.Time
}

// NewController creates a controller using params for every solve.
func NewController(params layout.Params, logger *util.Logger, callbacks Callbacks, capture PointerCapture) *Controller {
	return &Controller{
		params:    params,
		logger:    logger,
		callbacks: callbacks,
		capture:   capture,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// SetParams replaces the solver geometry for subsequent moves.
func (c *Controller) SetParams(params layout.Params) {
	c.params = params
}

// Active returns the live session, if any.
func (c *Controller) Active() *Session {
	return c.active
}

// Dragging reports whether a session is live.
func (c *Controller) Dragging() bool {
	return c.active != nil && c.active.Active
}

// Start opens a session for a pointer-down on the grab handle. The grab offset
// keeps the cluster from jumping under the pointer.
func (c *Controller) Start(pointer Point, clusterLeftEdgeX float64) *Session {
	if c.Dragging() {
		stale := c.active
		stale.log.Warnf("drag still active at new pointer-down; ending it")
		c.finish(stale)
	}
	offset := pointer.X - clusterLeftEdgeX
	if !layout.Finite(offset) {
		offset = 0
	}
	id := c.newID()
	s := &Session{
		ID:           id,
		Active:       true,
		PointerStart: pointer,
		GrabOffset:   offset,
		StartedAt:    c.now(),
		log:          c.logger.With("session", id),
	}
	c.active = s
	if c.capture != nil {
		c.capture.Capture()
	}
	s.log.Debugf("drag started at (%.1f, %.1f) grab offset %.1f", pointer.X, pointer.Y, offset)
	c.notifyDragging(true)
	return s
}

// Move solves the pointer-implied position and forwards it. The boolean is
// false when the session is inactive or the result is unusable; in the latter
// case the last forwarded position is returned unchanged.
func (c *Controller) Move(s *Session, pointerX, containerLeftEdgeX float64, m layout.Metrics, v layout.Variant) (float64, bool) {
	if s == nil || !s.Active {
		return 0, false
	}
	raw := pointerX - containerLeftEdgeX - s.GrabOffset
	pos, ok := c.params.Solve(raw, m, v, layout.Continuous)
	if !ok {
		s.log.Debugf("discarded non-finite move (raw %v)", raw)
		last, _ := s.LastPosition()
		return last, false
	}
	s.Moves++
	s.last = pos
	s.hasLast = true
	s.log.Tracef("move raw=%.1f -> %.1f", raw, pos)
	c.notifyPosition(pos)
	return pos, true
}

// End closes the session. For the Bounded variant the resting position gets
// the settle pass, which is stronger than resize correction because a drag can
// leave the cluster straddling the dead zone. The boolean reports whether a new
// position was forwarded.
func (c *Controller) End(s *Session, current float64, m layout.Metrics, v layout.Variant) (float64, bool) {
	if s == nil || !s.Active {
		return current, false
	}
	c.finish(s)
	if v != layout.Bounded {
		return current, false
	}
	next, ok := c.params.Settle(current, m)
	if !ok || next == current {
		return current, false
	}
	s.log.Debugf("settled %.1f -> %.1f", current, next)
	c.notifyPosition(next)
	return next, true
}

// Drop handles a release over the container-wide drop target. The release
// coordinate is solved once, exactly as a move would be.
func (c *Controller) Drop(pointerX, containerLeftEdgeX float64, m layout.Metrics, v layout.Variant) (float64, bool) {
	raw := pointerX - containerLeftEdgeX
	pos, ok := c.params.Solve(raw, m, v, layout.Continuous)
	if !ok {
		c.logger.Debugf("drop discarded: non-finite raw %v", raw)
		return 0, false
	}
	c.logger.Debugf("drop raw=%.1f -> %.1f", raw, pos)
	c.notifyPosition(pos)
	return pos, true
}

func (c *Controller) finish(s *Session) {
	s.Active = false
	if c.active == s {
		c.active = nil
	}
	if c.capture != nil {
		c.capture.Release()
	}
	s.log.Debugf("drag ended after %d moves", s.Moves)
	c.notifyDragging(false)
}

func (c *Controller) notifyPosition(pos float64) {
	if c.callbacks.PositionChanged != nil {
		c.callbacks.PositionChanged(pos)
	}
}

func (c *Controller) notifyDragging(dragging bool) {
	if c.callbacks.DraggingChanged != nil {
		c.callbacks.DraggingChanged(dragging)
	}
}
