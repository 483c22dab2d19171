package risk

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParametricVaR(t *testing.T) {
	// 1M portfolio, 2% vol, 99% confidence, 1 day: 1e6 * 0.02 * 2.326
	if got := ParametricVaR(1_000_000, 0.02, 0.99, 1); !almostEqual(got, 46_520) {
		t.Errorf("expected VaR 46520, got: %v", got)
	}
	// confidence bands select different z-scores
	v95 := ParametricVaR(1_000_000, 0.02, 0.95, 1)
	v90 := ParametricVaR(1_000_000, 0.02, 0.90, 1)
	if !(v90 < v95 && v95 < ParametricVaR(1_000_000, 0.02, 0.99, 1)) {
		t.Error("VaR must grow with confidence")
	}
	// multi-day horizon scales with sqrt(days)
	if got := ParametricVaR(1_000_000, 0.02, 0.99, 4); !almostEqual(got, 93_040) {
		t.Errorf("expected 4-day VaR 93040, got: %v", got)
	}
}

func TestMaxPositionSize(t *testing.T) {
	// 1% of 100k equity = 1000 risk; 10 risk per unit -> 100 units
	if got := MaxPositionSize(100_000, 1, 110, 100); !almostEqual(got, 100) {
		t.Errorf("expected 100 units, got: %v", got)
	}
	// edge case: zero distance to stop means no position
	if got := MaxPositionSize(100_000, 1, 100, 100); got != 0 {
		t.Errorf("expected 0 for zero stop distance, got: %v", got)
	}
}

func TestMarginRequirement(t *testing.T) {
	if got := MarginRequirement(50_000, 10); !almostEqual(got, 5_000) {
		t.Errorf("expected 5000, got: %v", got)
	}
	// edge case: non-positive leverage means fully funded
	if got := MarginRequirement(50_000, 0); !almostEqual(got, 50_000) {
		t.Errorf("expected full notional, got: %v", got)
	}
}

func TestExposurePct(t *testing.T) {
	if got := ExposurePct(25_000, 100_000); !almostEqual(got, 25) {
		t.Errorf("expected 25%%, got: %v", got)
	}
	if got := ExposurePct(25_000, 0); got != 0 {
		t.Errorf("expected 0 for zero equity, got: %v", got)
	}
}
