package metrics

import (
	"sort"
	"sync"
	"time"
)

// Path names the code path that produced a position.
type Path string

const (
	PathDrag   Path = "drag"
	PathDrop   Path = "drop"
	PathSettle Path = "settle"
	PathReflow Path = "reflow"
)

// Collector aggregates anonymous telemetry counters for positioning paths.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	paths   map[string]*PathMetrics
}

// PathMetrics captures per-path counters tracked by the collector.
type PathMetrics struct {
	Path          Path      `json:"path"`
	Variant       string    `json:"variant"`
	Solved        uint64    `json:"solved"`
	Corrected     uint64    `json:"corrected"`
	Rejected      uint64    `json:"rejected"`
	LastSolved    time.Time `json:"lastSolved,omitempty"`
	LastCorrected time.Time `json:"lastCorrected,omitempty"`
	LastRejected  time.Time `json:"lastRejected,omitempty"`
}

// Totals aggregates counters across all paths in a snapshot.
type Totals struct {
	Solved    uint64 `json:"solved"`
	Corrected uint64 `json:"corrected"`
	Rejected  uint64 `json:"rejected"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool          `json:"enabled"`
	Started time.Time     `json:"started,omitempty"`
	Totals  Totals        `json:"totals"`
	Paths   []PathMetrics `json:"paths,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether telemetry collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles telemetry collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.paths = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.paths = make(map[string]*PathMetrics)
}

// RecordSolved counts a solver invocation on path.
func (c *Collector) RecordSolved(path Path, variant string) {
	c.update(path, variant, func(m *PathMetrics, now time.Time) {
		m.Solved++
		m.LastSolved = now
	})
}

// RecordCorrected counts a position change forwarded to the host.
func (c *Collector) RecordCorrected(path Path, variant string) {
	c.update(path, variant, func(m *PathMetrics, now time.Time) {
		m.Corrected++
		m.LastCorrected = now
	})
}

// RecordRejected counts a result discarded as non-finite or suspended.
func (c *Collector) RecordRejected(path Path, variant string) {
	c.update(path, variant, func(m *PathMetrics, now time.Time) {
		m.Rejected++
		m.LastRejected = now
	})
}

func (c *Collector) update(path Path, variant string, mutate func(*PathMetrics, time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.paths == nil {
		c.paths = make(map[string]*PathMetrics)
	}
	key := string(path) + ":" + variant
	m, exists := c.paths[key]
	if !exists {
		m = &PathMetrics{Path: path, Variant: variant}
		c.paths[key] = m
	}
	mutate(m, now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.paths) == 0 {
		return snap
	}
	snap.Paths = make([]PathMetrics, 0, len(c.paths))
	for _, m := range c.paths {
		if m == nil {
			continue
		}
		clone := *m
		snap.Paths = append(snap.Paths, clone)
		snap.Totals.Solved += clone.Solved
		snap.Totals.Corrected += clone.Corrected
		snap.Totals.Rejected += clone.Rejected
	}
	sort.Slice(snap.Paths, func(i, j int) bool {
		if snap.Paths[i].Path == snap.Paths[j].Path {
			return snap.Paths[i].Variant < snap.Paths[j].Variant
		}
		return snap.Paths[i].Path < snap.Paths[j].Path
	})
	return snap
}
