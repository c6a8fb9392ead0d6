package reflow

import (
	"sync"
	"time"

	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/util"
)

// DefaultSettleDelay lets layout finish reflowing before metrics are read.
const DefaultSettleDelay = 50 * time.Millisecond

// Trigger names why a reflow was requested.
type Trigger string

const (
	TriggerClusterResized      Trigger = "cluster-resized"
	TriggerContainerResized    Trigger = "container-resized"
	TriggerReservedZoneResized Trigger = "reserved-zone-resized"
	TriggerManual              Trigger = "manual"
)

// Reconcile re-validates the current position against the corrective bounds.
// The boolean reports whether the position needs to change.
func Reconcile(params layout.Params, current float64, m layout.Metrics, v layout.Variant) (float64, bool) {
	next, ok := params.Solve(current, m, v, layout.Corrective)
	if !ok || next == current {
		return current, false
	}
	return next, true
}

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Reconciler debounces reflow triggers. While suspended, triggers are dropped
// and any pending run is cancelled.
type Reconciler struct {
	logger *util.Logger
	run    func(Trigger)

	mu         sync.Mutex
	delay      time.Duration
	pending    timer
	queued     Trigger
	generation uint64
	suspended  bool
	closed     bool
	missed     Trigger

	after afterFunc
}

// New creates a reconciler that calls run once the settle delay elapses
// without a newer trigger.
func New(delay time.Duration, logger *util.Logger, run func(Trigger)) *Reconciler {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Reconciler{
		logger: logger,
		run:    run,
		delay:  delay,
		after:  realAfterFunc,
	}
}

// SetDelay changes the settle delay for subsequent triggers.
func (r *Reconciler) SetDelay(delay time.Duration) {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	r.mu.Lock()
	r.delay = delay
	r.mu.Unlock()
}

// Delay returns the configured settle delay.
func (r *Reconciler) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// Schedule arms the debounce timer, replacing any pending one. It reports
// whether the trigger was accepted.
func (r *Reconciler) Schedule(trigger Trigger) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suspended || r.closed {
		if r.suspended {
			r.missed = trigger
		}
		r.logger.Tracef("reflow %s ignored (suspended=%t)", trigger, r.suspended)
		return false
	}
	r.stopLocked()
	gen := r.generation
	r.queued = trigger
	r.pending = r.after(r.delay, func() { r.fire(gen, trigger) })
	return true
}

func (r *Reconciler) fire(gen uint64, trigger Trigger) {
	r.mu.Lock()
	if gen != r.generation || r.suspended || r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = nil
	r.queued = ""
	r.generation++
	r.mu.Unlock()
	r.logger.Debugf("reflow settled (%s)", trigger)
	if r.run != nil {
		r.run(trigger)
	}
}

// Cancel drops a pending run. It reports whether one was pending.
func (r *Reconciler) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Reconciler) stopLocked() bool {
	r.generation++
	if r.pending == nil {
		return false
	}
	r.pending.Stop()
	r.pending = nil
	r.queued = ""
	return true
}

// Flush runs a pending trigger now instead of waiting for the timer. It
// reports whether one was pending.
func (r *Reconciler) Flush() bool {
	r.mu.Lock()
	if r.pending == nil || r.suspended || r.closed {
		r.mu.Unlock()
		return false
	}
	trigger := r.queued
	r.stopLocked()
	r.mu.Unlock()
	r.logger.Debugf("reflow flushed (%s)", trigger)
	if r.run != nil {
		r.run(trigger)
	}
	return true
}

// Suspend cancels any pending run and drops triggers until Resume.
func (r *Reconciler) Suspend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspended = true
	queued := r.queued
	cancelled := r.stopLocked()
	if cancelled {
		r.missed = queued
		r.logger.Debugf("pending reflow (%s) cancelled by suspension", queued)
	}
	return cancelled
}

// Resume accepts triggers again. It returns the last trigger dropped while
// suspended so the caller can replay it.
func (r *Reconciler) Resume() (Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspended = false
	missed := r.missed
	r.missed = ""
	return missed, missed != ""
}

// Suspended reports whether triggers are currently dropped.
func (r *Reconciler) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

// Pending reports whether a run is armed.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Close cancels any pending run and rejects further triggers.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.stopLocked()
	r.mu.Unlock()
}
