package layout

import (
	"fmt"
	"math"
	"strings"
)

// Variant selects the positioning policy for the floating cluster.
type Variant int

const (
	// Bounded keeps the cluster clear of the reserved zone and snaps it to edges.
	Bounded Variant = iota
	// Free only clamps the cluster to the container with asymmetric padding.
	Free
)

func (v Variant) String() string {
	switch v {
	case Bounded:
		return "bounded"
	case Free:
		return "free"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant accepts the canonical names as well as the timeline/freeMove aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bounded", "timeline":
		return Bounded, nil
	case "free", "freemove":
		return Free, nil
	default:
		return Bounded, fmt.Errorf("unknown variant %q", s)
	}
}

// Mode distinguishes gesture-time solving from resize-time correction.
type Mode int

const (
	// Continuous applies full snap-and-avoid logic.
	Continuous Mode = iota
	// Corrective only repairs growth-induced violations of the current position.
	Corrective
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case Corrective:
		return "corrective"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name, defaulting to Continuous for the empty string.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continuous":
		return Continuous, nil
	case "corrective":
		return Corrective, nil
	default:
		return Continuous, fmt.Errorf("unknown mode %q", s)
	}
}

// Metrics are the live measurements of the container, the cluster and the
// reserved zone in logical pixels.
type Metrics struct {
	ContainerWidth    float64 `json:"containerWidth" yaml:"containerWidth"`
	ClusterWidth      float64 `json:"clusterWidth" yaml:"clusterWidth"`
	ReservedZoneWidth float64 `json:"reservedZoneWidth" yaml:"reservedZoneWidth"`
}

// Sanitize replaces unmeasured, negative, or non-finite widths with zero.
func (m Metrics) Sanitize() Metrics {
	return Metrics{
		ContainerWidth:    nonNegative(m.ContainerWidth),
		ClusterWidth:      nonNegative(m.ClusterWidth),
		ReservedZoneWidth: nonNegative(m.ReservedZoneWidth),
	}
}

// Measured reports whether the container has a usable width.
func (m Metrics) Measured() bool {
	return m.Sanitize().ContainerWidth > 0
}

// DeadZone is the span around the reserved zone the cluster must not overlap.
type DeadZone struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Midpoint returns the centre used to pick a side when pushing out of the zone.
func (d DeadZone) Midpoint() float64 {
	return (d.Start + d.End) / 2
}

// Width returns the span of the zone.
func (d DeadZone) Width() float64 {
	return d.End - d.Start
}

// Overlaps reports whether [pos, pos+width] intersects the open interval
// (Start, End) by more than the comparison tolerance.
func (d DeadZone) Overlaps(pos, width float64) bool {
	return pos+width > d.Start+tolerance && pos < d.End-tolerance
}

// tolerance absorbs rounding in sums of fractional widths, so a position the
// solver derived from an edge compares as sitting exactly on it.
const tolerance = 1e-6

// Params holds the geometry constants of the solver.
type Params struct {
	SnapThreshold       float64 `json:"snapThreshold"`
	EdgeInset           float64 `json:"edgeInset"`
	RightBuffer         float64 `json:"rightBuffer"`
	LeftPadding         float64 `json:"leftPadding"`
	DeadZoneLeftMargin  float64 `json:"deadZoneLeftMargin"`
	DeadZoneRightMargin float64 `json:"deadZoneRightMargin"`
	MenuFlipDistance    float64 `json:"menuFlipDistance"`
}

// DefaultParams returns the stock toolbar geometry. The dead zone margins are
// asymmetric because the reserved zone's footprint is wider on its left side.
func DefaultParams() Params {
	return Params{
		SnapThreshold:       30,
		EdgeInset:           10,
		RightBuffer:         30,
		LeftPadding:         -20,
		DeadZoneLeftMargin:  120,
		DeadZoneRightMargin: 60,
		MenuFlipDistance:    90,
	}
}

// DeadZone derives the dead zone for the given metrics.
func (p Params) DeadZone(m Metrics) DeadZone {
	m = m.Sanitize()
	return DeadZone{
		Start: (m.ContainerWidth-m.ReservedZoneWidth)/2 - p.DeadZoneLeftMargin,
		End:   (m.ContainerWidth+m.ReservedZoneWidth)/2 + p.DeadZoneRightMargin,
	}
}

// Solve maps a candidate position onto a valid one using the default params.
func Solve(raw float64, m Metrics, v Variant, mode Mode) (float64, bool) {
	return DefaultParams().Solve(raw, m, v, mode)
}

// Solve maps a candidate position onto a valid one. The boolean is false when
// the result is not finite, in which case callers keep their previous position.
func (p Params) Solve(raw float64, m Metrics, v Variant, mode Mode) (float64, bool) {
	m = m.Sanitize()
	if !Finite(raw) {
		return 0, false
	}
	if m.ContainerWidth == 0 {
		return 0, true
	}
	var pos float64
	switch {
	case v == Free && mode == Corrective:
		pos = p.correctFree(raw, m)
	case v == Free:
		pos = p.clampFree(raw, m)
	case mode == Corrective:
		pos = p.correctBounded(raw, m)
	default:
		pos = p.solveBounded(raw, m)
	}
	if !Finite(pos) {
		return 0, false
	}
	return pos, true
}

func (p Params) solveBounded(raw float64, m Metrics) float64 {
	w := m.ClusterWidth
	pos := raw
	switch {
	case raw <= p.SnapThreshold:
		pos = p.EdgeInset
	case m.ContainerWidth-(raw+w) <= p.SnapThreshold+tolerance:
		pos = m.ContainerWidth - w - p.RightBuffer
	default:
		zone := p.DeadZone(m)
		if zone.Overlaps(raw, w) {
			// the raw position picks the side so the pointer's intent wins
			if raw < zone.Midpoint() {
				pos = zone.Start - w
				if pos <= p.SnapThreshold {
					pos = p.EdgeInset
				}
			} else {
				pos = zone.End
			}
		}
	}
	return p.clampBounded(pos, m)
}

func (p Params) correctBounded(pos float64, m Metrics) float64 {
	w := m.ClusterWidth
	if pos+w > m.ContainerWidth-p.RightBuffer+tolerance {
		return math.Max(0, m.ContainerWidth-w-p.RightBuffer)
	}
	if p.edgeSnapped(pos, m) {
		return pos
	}
	zone := p.DeadZone(m)
	if pos < zone.Start && pos+w > zone.Start+tolerance {
		return math.Max(0, zone.Start-w)
	}
	return pos
}

// Settle is the stronger drag-end pass for the Bounded variant. A cluster left
// straddling the dead zone is pushed to the side holding its centre.
func (p Params) Settle(pos float64, m Metrics) (float64, bool) {
	m = m.Sanitize()
	if !Finite(pos) {
		return 0, false
	}
	if m.ContainerWidth == 0 {
		return 0, true
	}
	w := m.ClusterWidth
	zone := p.DeadZone(m)
	next := pos
	if !p.edgeSnapped(pos, m) && zone.Overlaps(pos, w) {
		if pos+w/2 < zone.Midpoint() {
			next = zone.Start - w
		} else {
			next = zone.End
		}
	}
	next = p.clampBounded(next, m)
	if !Finite(next) {
		return 0, false
	}
	return next, true
}

func (p Params) clampBounded(pos float64, m Metrics) float64 {
	return math.Max(0, math.Min(pos, m.ContainerWidth-m.ClusterWidth-p.RightBuffer))
}

func (p Params) clampFree(pos float64, m Metrics) float64 {
	return math.Max(p.LeftPadding, math.Min(pos, p.LeftPadding+m.ContainerWidth-m.ClusterWidth))
}

func (p Params) correctFree(pos float64, m Metrics) float64 {
	if pos+m.ClusterWidth > p.LeftPadding+m.ContainerWidth+tolerance {
		return math.Max(p.LeftPadding, p.LeftPadding+m.ContainerWidth-m.ClusterWidth)
	}
	return pos
}

// edgeSnapped reports whether pos sits within the snap threshold of either edge.
func (p Params) edgeSnapped(pos float64, m Metrics) bool {
	return pos <= p.SnapThreshold+tolerance || m.ContainerWidth-(pos+m.ClusterWidth) <= p.SnapThreshold+tolerance
}

// Valid reports whether pos satisfies every invariant of the variant.
func (p Params) Valid(pos float64, m Metrics, v Variant) bool {
	m = m.Sanitize()
	if !Finite(pos) {
		return false
	}
	w := m.ClusterWidth
	if v == Free {
		return pos >= p.LeftPadding-tolerance && pos <= p.LeftPadding+m.ContainerWidth-w+tolerance
	}
	if pos < -tolerance || pos+w > m.ContainerWidth-p.RightBuffer+tolerance {
		return false
	}
	if p.edgeSnapped(pos, m) {
		return true
	}
	return !p.DeadZone(m).Overlaps(pos, w)
}

// NearRightEdge reports whether the cluster sits close enough to the right edge
// that its menus should open leftward.
func (p Params) NearRightEdge(pos float64, m Metrics) bool {
	m = m.Sanitize()
	return m.ContainerWidth-(pos+m.ClusterWidth) <= p.MenuFlipDistance
}

// Indicator describes the dead-zone highlight shown while a gesture is live.
type Indicator struct {
	Start   float64 `json:"start"`
	Width   float64 `json:"width"`
	Visible bool    `json:"visible"`
}

// Indicator returns the dead-zone highlight for the variant. The highlight only
// exists for Bounded and is shown while dragging or while a drop hovers.
func (p Params) Indicator(m Metrics, v Variant, active bool) Indicator {
	if v != Bounded {
		return Indicator{}
	}
	zone := p.DeadZone(m)
	return Indicator{Start: zone.Start, Width: zone.Width(), Visible: active}
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nonNegative(v float64) float64 {
	if !Finite(v) || v < 0 {
		return 0
	}
	return v
}

// ApproximatelyEqual reports whether two positions are almost equal.
func ApproximatelyEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
