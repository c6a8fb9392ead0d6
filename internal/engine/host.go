package engine

import (
	"sync"

	"github.com/hyprpal/clusterdock/internal/layout"
)

// Host owns the cluster position and measures the live layout. The engine
// calls Metrics and Position while holding its lock, so implementations must
// not call back into the engine from those methods.
type Host interface {
	Metrics() layout.Metrics
	Position() float64
	PositionChanged(position float64)
	DraggingChanged(dragging bool)
}

// MemoryHost is a concurrency-safe host that keeps its state in memory. It
// backs headless use, trace replay, and the terminal playground.
type MemoryHost struct {
	mu        sync.Mutex
	metrics   layout.Metrics
	position  float64
	dragging  bool
	captured  bool
	positions []float64
	toggles   []bool
	onChange  func()
}

// NewMemoryHost creates a host with the given layout and starting position.
func NewMemoryHost(m layout.Metrics, position float64) *MemoryHost {
	return &MemoryHost{metrics: m, position: position}
}

// OnChange registers fn to run after every position or dragging change.
func (h *MemoryHost) OnChange(fn func()) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

func (h *MemoryHost) Metrics() layout.Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// SetMetrics replaces the measured layout.
func (h *MemoryHost) SetMetrics(m layout.Metrics) {
	h.mu.Lock()
	h.metrics = m
	h.mu.Unlock()
}

func (h *MemoryHost) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// SetPosition overwrites the position without recording a change.
func (h *MemoryHost) SetPosition(p float64) {
	h.mu.Lock()
	h.position = p
	h.mu.Unlock()
}

func (h *MemoryHost) PositionChanged(p float64) {
	h.mu.Lock()
	h.position = p
	h.positions = append(h.positions, p)
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *MemoryHost) DraggingChanged(dragging bool) {
	h.mu.Lock()
	h.dragging = dragging
	h.toggles = append(h.toggles, dragging)
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Dragging reports the last dragging state received.
func (h *MemoryHost) Dragging() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dragging
}

// Capture records that global pointer listeners are registered.
func (h *MemoryHost) Capture() {
	h.mu.Lock()
	h.captured = true
	h.mu.Unlock()
}

// Release records that global pointer listeners are removed.
func (h *MemoryHost) Release() {
	h.mu.Lock()
	h.captured = false
	h.mu.Unlock()
}

// Captured reports whether pointer listeners are registered.
func (h *MemoryHost) Captured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.captured
}

// Changes returns every position received, oldest first.
func (h *MemoryHost) Changes() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.positions...)
}

// Toggles returns every dragging notification received, oldest first.
func (h *MemoryHost) Toggles() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.toggles...)
}
