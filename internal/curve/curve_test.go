package curve

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Total liquidity ---

func TestTotalLiquidity_AtBaseline(t *testing.T) {
	got := TotalLiquidity(BaselineCap)
	if !got.Equal(LiquidityScale) {
		t.Errorf("expected total liquidity %s at baseline, got %s", LiquidityScale, got)
	}
}

func TestTotalLiquidity_ScalesWithSqrt(t *testing.T) {
	// At 4x the baseline cap, liquidity should be exactly 2x L0.
	got := TotalLiquidity(d(400_000))
	want := LiquidityScale.Mul(d(2))
	if !got.Equal(want) {
		t.Errorf("expected %s at 4x baseline, got %s", want, got)
	}
}

// --- Available liquidity ---

func TestAvailableLiquidity_ZeroAtOrBelowBaseline(t *testing.T) {
	caps := []float64{0, 1, 50_000, 99_999.99, 100_000}
	for _, c := range caps {
		got := AvailableLiquidity(d(c))
		if !got.IsZero() {
			t.Errorf("available liquidity at cap %.2f should be zero, got %s", c, got)
		}
	}
}

func TestAvailableLiquidity_AboveBaseline(t *testing.T) {
	// At 400,000: total = 200,000, available = 190,000.
	got := AvailableLiquidity(d(400_000))
	want := d(190_000)
	if !got.Equal(want) {
		t.Errorf("expected available liquidity %s, got %s", want, got)
	}
}

func TestAvailableLiquidity_NeverNegative(t *testing.T) {
	// Just above the baseline, total-initial is positive, but confirm the
	// floor holds across a sweep.
	caps := []float64{100_000.01, 100_001, 110_000, 1_000_000}
	for _, c := range caps {
		if AvailableLiquidity(d(c)).IsNegative() {
			t.Errorf("available liquidity at cap %.2f is negative", c)
		}
	}
}

// --- New market cap ---

func TestNewMarketCap_AlwaysIncreases(t *testing.T) {
	caps := []float64{100_000, 150_000, 500_000, 2_000_000}
	stakes := []float64{0.01, 1, 95, 10_000}
	for _, c := range caps {
		for _, s := range stakes {
			got := NewMarketCap(d(c), d(s))
			if !got.GreaterThan(d(c)) {
				t.Errorf("newMarketCap(%.0f, %.2f) = %s should exceed cap", c, s, got)
			}
		}
	}
}

func TestNewMarketCap_MonotoneInStake(t *testing.T) {
	cap := d(250_000)
	small := NewMarketCap(cap, d(50))
	large := NewMarketCap(cap, d(51))
	if !large.GreaterThan(small) {
		t.Errorf("larger stake should move cap further: small=%s large=%s", small, large)
	}
}

func TestNewMarketCap_AtBaseline(t *testing.T) {
	// sqrt(1) = 1, so the increase is exactly postTax * 20.
	got := NewMarketCap(BaselineCap, d(95))
	want := d(101_900)
	if !got.Equal(want) {
		t.Errorf("expected cap %s, got %s", want, got)
	}
}

func TestNewMarketCap_DiminishingImpact(t *testing.T) {
	// The same stake moves a larger cap by more in absolute terms
	// (increase scales with sqrt(cap)) but less per unit of cap.
	lowCap := d(100_000)
	highCap := d(400_000)

	afterLow := NewMarketCap(lowCap, d(95))
	afterHigh := NewMarketCap(highCap, d(95))

	relLow := afterLow.Sub(lowCap).Div(lowCap)
	relHigh := afterHigh.Sub(highCap).Div(highCap)
	if !relLow.GreaterThan(relHigh) {
		t.Errorf("relative impact should shrink with cap: low=%s high=%s", relLow, relHigh)
	}
}

func TestNewMarketCap_NonPositiveLeavesCap(t *testing.T) {
	for _, s := range []float64{0, -1} {
		if got := NewMarketCap(BaselineCap, d(s)); !got.Equal(BaselineCap) {
			t.Errorf("non-positive stake %.0f should leave cap unchanged, got %s", s, got)
		}
	}
}

// --- Tax split ---

func TestPostTax_Exact(t *testing.T) {
	gross := d(100)
	if !Tax(gross).Equal(d(5)) {
		t.Errorf("expected tax 5 on gross 100, got %s", Tax(gross))
	}
	if !PostTax(gross).Equal(d(95)) {
		t.Errorf("expected net 95 on gross 100, got %s", PostTax(gross))
	}
}

func TestPostTax_SumsToGross(t *testing.T) {
	for _, g := range []float64{0.01, 1, 33.33, 100, 12_345.67} {
		gross := d(g)
		sum := Tax(gross).Add(PostTax(gross))
		if !sum.Equal(gross) {
			t.Errorf("tax + net should equal gross %s, got %s", gross, sum)
		}
	}
}
