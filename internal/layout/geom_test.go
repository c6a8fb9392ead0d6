package layout

import (
	"math"
	"testing"
)

var toolbar = Metrics{ContainerWidth: 1000, ClusterWidth: 200, ReservedZoneWidth: 200}

func mustSolve(t *testing.T, raw float64, m Metrics, v Variant, mode Mode) float64 {
	t.Helper()
	pos, ok := Solve(raw, m, v, mode)
	if !ok {
		t.Fatalf("expected finite result for raw=%v metrics=%+v", raw, m)
	}
	return pos
}

func TestDeadZoneUsesAsymmetricMargins(t *testing.T) {
	zone := DefaultParams().DeadZone(toolbar)
	if zone.Start != 280 || zone.End != 660 {
		t.Fatalf("expected dead zone {280 660}, got %+v", zone)
	}
	if zone.Midpoint() != 470 {
		t.Fatalf("expected midpoint 470, got %v", zone.Midpoint())
	}
}

func TestSolveSnapsToLeftInset(t *testing.T) {
	if got := mustSolve(t, 5, toolbar, Bounded, Continuous); got != 10 {
		t.Fatalf("expected left snap to 10, got %v", got)
	}
}

func TestSolveSnapsToRightBuffer(t *testing.T) {
	if got := mustSolve(t, 780, toolbar, Bounded, Continuous); got != 770 {
		t.Fatalf("expected right snap to 770, got %v", got)
	}
}

func TestSolvePushesOutOfDeadZoneByRawSide(t *testing.T) {
	if got := mustSolve(t, 300, toolbar, Bounded, Continuous); got != 80 {
		t.Fatalf("expected push left to 80, got %v", got)
	}
	if got := mustSolve(t, 500, toolbar, Bounded, Continuous); got != 660 {
		t.Fatalf("expected push right to 660, got %v", got)
	}
}

func TestSolveLeftPushNearEdgeResolvesToInset(t *testing.T) {
	m := Metrics{ContainerWidth: 600, ClusterWidth: 200, ReservedZoneWidth: 200}
	// dead zone is {80 460}; a left push would land at -120
	if got := mustSolve(t, 100, m, Bounded, Continuous); got != 10 {
		t.Fatalf("expected inset 10, got %v", got)
	}
}

func TestSolveLeavesClearPositionAlone(t *testing.T) {
	if got := mustSolve(t, 50, toolbar, Bounded, Continuous); got != 50 {
		t.Fatalf("expected 50 to stay, got %v", got)
	}
}

func TestSolveFreeIgnoresReservedZone(t *testing.T) {
	for _, raw := range []float64{-100, -20, 0, 300, 470, 790, 900} {
		a := mustSolve(t, raw, toolbar, Free, Continuous)
		wide := toolbar
		wide.ReservedZoneWidth = 900
		b := mustSolve(t, raw, wide, Free, Continuous)
		if a != b {
			t.Fatalf("free result for raw=%v depends on reserved zone: %v vs %v", raw, a, b)
		}
	}
	if got := mustSolve(t, -100, toolbar, Free, Continuous); got != -20 {
		t.Fatalf("expected clamp to left padding, got %v", got)
	}
	if got := mustSolve(t, 900, toolbar, Free, Continuous); got != 780 {
		t.Fatalf("expected clamp to 780, got %v", got)
	}
}

func TestCorrectiveFixesRightOverflow(t *testing.T) {
	m := toolbar
	m.ClusterWidth = 300
	if got := mustSolve(t, 700, m, Bounded, Corrective); got != 670 {
		t.Fatalf("expected 670, got %v", got)
	}
	m.ClusterWidth = 1200
	if got := mustSolve(t, 50, m, Bounded, Corrective); got != 0 {
		t.Fatalf("expected overflow correction to floor at 0, got %v", got)
	}
}

func TestCorrectiveFixesLeftGrowthIntoDeadZone(t *testing.T) {
	m := toolbar
	m.ClusterWidth = 260
	// 60+260 crosses the dead zone start at 280
	if got := mustSolve(t, 60, m, Bounded, Corrective); got != 20 {
		t.Fatalf("expected 20, got %v", got)
	}
}

func TestCorrectiveIgnoresRightSideOverlap(t *testing.T) {
	// inside the dead zone from the right; continuous mode would push, corrective must not
	if got := mustSolve(t, 500, toolbar, Bounded, Corrective); got != 500 {
		t.Fatalf("expected corrective to leave 500, got %v", got)
	}
}

func TestCorrectiveFree(t *testing.T) {
	m := toolbar
	m.ClusterWidth = 400
	if got := mustSolve(t, 700, m, Free, Corrective); got != 580 {
		t.Fatalf("expected 580, got %v", got)
	}
	if got := mustSolve(t, 100, m, Free, Corrective); got != 100 {
		t.Fatalf("expected 100 to stay, got %v", got)
	}
}

func TestSolveUnmeasuredContainer(t *testing.T) {
	if got := mustSolve(t, 400, Metrics{}, Bounded, Continuous); got != 0 {
		t.Fatalf("expected degenerate 0, got %v", got)
	}
	if got := mustSolve(t, 400, Metrics{}, Free, Continuous); got != 0 {
		t.Fatalf("expected degenerate 0 for free, got %v", got)
	}
	for _, v := range []Variant{Bounded, Free} {
		if got := mustSolve(t, 400, Metrics{ClusterWidth: 200}, v, Corrective); got != 0 {
			t.Fatalf("%s: expected corrective degenerate 0, got %v", v, got)
		}
	}
	if got, _ := DefaultParams().Settle(400, Metrics{ClusterWidth: 200}); got != 0 {
		t.Fatalf("expected settle degenerate 0, got %v", got)
	}
}

func TestSolveRejectsNonFinite(t *testing.T) {
	if _, ok := Solve(math.NaN(), toolbar, Bounded, Continuous); ok {
		t.Fatalf("expected NaN raw to be rejected")
	}
	if _, ok := Solve(math.Inf(1), toolbar, Free, Corrective); ok {
		t.Fatalf("expected +Inf raw to be rejected")
	}
	bad := Metrics{ContainerWidth: math.NaN(), ClusterWidth: math.Inf(1), ReservedZoneWidth: -5}
	if got := bad.Sanitize(); got != (Metrics{}) {
		t.Fatalf("expected sanitized metrics to be zero, got %+v", got)
	}
}

func TestSolveInvariantsAndIdempotence(t *testing.T) {
	p := DefaultParams()
	for _, container := range []float64{300, 640, 1000, 1440} {
		for _, cluster := range []float64{0, 80, 200, 260} {
			if cluster+p.RightBuffer > container {
				continue
			}
			for _, reserved := range []float64{0, 120, 200, 400} {
				m := Metrics{ContainerWidth: container, ClusterWidth: cluster, ReservedZoneWidth: reserved}
				for raw := -200.0; raw <= container+200; raw += 7 {
					first, ok := p.Solve(raw, m, Bounded, Continuous)
					if !ok {
						t.Fatalf("unexpected rejection raw=%v m=%+v", raw, m)
					}
					if !p.Valid(first, m, Bounded) {
						t.Fatalf("invalid result %v for raw=%v m=%+v", first, raw, m)
					}
					second, _ := p.Solve(first, m, Bounded, Continuous)
					if second != first {
						t.Fatalf("not idempotent: raw=%v -> %v -> %v (m=%+v)", raw, first, second, m)
					}
					free, _ := p.Solve(raw, m, Free, Continuous)
					if !p.Valid(free, m, Free) {
						t.Fatalf("invalid free result %v for raw=%v m=%+v", free, raw, m)
					}
				}
			}
		}
	}
}

func TestSolveFractionalMetricsStayValid(t *testing.T) {
	p := DefaultParams()
	cases := []Metrics{
		{ContainerWidth: 193.939, ClusterWidth: 58.358, ReservedZoneWidth: 99.919},
		{ContainerWidth: 1000.3, ClusterWidth: 200.7, ReservedZoneWidth: 199.9},
		{ContainerWidth: 787.55, ClusterWidth: 143.21, ReservedZoneWidth: 61.13},
		{ContainerWidth: 1366.1, ClusterWidth: 311.45, ReservedZoneWidth: 412.6},
		{ContainerWidth: 640.66, ClusterWidth: 0.1, ReservedZoneWidth: 0},
	}
	for _, m := range cases {
		for raw := -150.0; raw <= m.ContainerWidth+150; raw += 0.37 {
			first, ok := p.Solve(raw, m, Bounded, Continuous)
			if !ok {
				t.Fatalf("unexpected rejection raw=%v m=%+v", raw, m)
			}
			if !p.Valid(first, m, Bounded) {
				t.Fatalf("invalid result %v for raw=%v m=%+v", first, raw, m)
			}
			second, _ := p.Solve(first, m, Bounded, Continuous)
			if !ApproximatelyEqual(first, second, 1e-9) {
				t.Fatalf("not idempotent: raw=%v -> %v -> %v (m=%+v)", raw, first, second, m)
			}
			settled, _ := p.Settle(first, m)
			if !p.Valid(settled, m, Bounded) {
				t.Fatalf("invalid settle %v from %v m=%+v", settled, first, m)
			}
			corrected, _ := p.Solve(first, m, Bounded, Corrective)
			if corrected != first {
				t.Fatalf("corrective moved valid %v to %v (m=%+v)", first, corrected, m)
			}
			free, _ := p.Solve(raw, m, Free, Continuous)
			if !p.Valid(free, m, Free) {
				t.Fatalf("invalid free result %v for raw=%v m=%+v", free, raw, m)
			}
		}
	}
}

func TestCorrectiveKeepsValidPositions(t *testing.T) {
	p := DefaultParams()
	for _, v := range []Variant{Bounded, Free} {
		for pos := -40.0; pos <= 1040; pos += 5 {
			if !p.Valid(pos, toolbar, v) {
				continue
			}
			got, ok := p.Solve(pos, toolbar, v, Corrective)
			if !ok || got != pos {
				t.Fatalf("%s: expected valid position %v to stay, got %v", v, pos, got)
			}
		}
	}
}

func TestSettlePushesStraddlingClusterByCentre(t *testing.T) {
	p := DefaultParams()
	// centre 350 is left of the midpoint 470
	if got, _ := p.Settle(250, toolbar); got != 80 {
		t.Fatalf("expected settle left to 80, got %v", got)
	}
	// centre 600 is right of the midpoint
	if got, _ := p.Settle(500, toolbar); got != 660 {
		t.Fatalf("expected settle right to 660, got %v", got)
	}
	if got, _ := p.Settle(50, toolbar); got != 50 {
		t.Fatalf("expected clear position to stay, got %v", got)
	}
	if got, _ := p.Settle(10, Metrics{ContainerWidth: 600, ClusterWidth: 200, ReservedZoneWidth: 200}); got != 10 {
		t.Fatalf("expected edge-snapped position to stay, got %v", got)
	}
}

func TestNearRightEdge(t *testing.T) {
	p := DefaultParams()
	if !p.NearRightEdge(720, toolbar) {
		t.Fatalf("expected 720 to be near the right edge")
	}
	if p.NearRightEdge(600, toolbar) {
		t.Fatalf("expected 600 to be clear of the right edge")
	}
}

func TestIndicatorOnlyForBounded(t *testing.T) {
	p := DefaultParams()
	ind := p.Indicator(toolbar, Bounded, true)
	if ind.Start != 280 || ind.Width != 380 || !ind.Visible {
		t.Fatalf("unexpected indicator %+v", ind)
	}
	if got := p.Indicator(toolbar, Free, true); got.Visible || got.Width != 0 {
		t.Fatalf("expected no indicator for free variant, got %+v", got)
	}
}

func TestParseVariantAliases(t *testing.T) {
	tests := map[string]Variant{
		"bounded":  Bounded,
		"timeline": Bounded,
		"Free":     Free,
		"freeMove": Free,
	}
	for input, want := range tests {
		got, err := ParseVariant(input)
		if err != nil || got != want {
			t.Fatalf("ParseVariant(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseVariant("sideways"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestApproximatelyEqualUsesTolerance(t *testing.T) {
	if !ApproximatelyEqual(100, 101, 1) {
		t.Fatalf("expected positions to be approximately equal within tolerance")
	}
	if ApproximatelyEqual(100, 101, 0.5) {
		t.Fatalf("expected positions to differ when tolerance is too small")
	}
}
