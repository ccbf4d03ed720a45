// Package curve implements the square-root bonding curve for binary
// momentum markets.
//
// Each side of an event carries a market capitalization that only moves
// up as bets land on it. The curve provides:
//   - Bounded redistribution: only liquidity above the baseline is
//     eligible for payout to the other side's winners
//   - Diminishing price impact: a buy moves the cap by an amount that
//     scales with sqrt(cap), so early money moves the market more
//   - A fixed platform tax taken off every gross stake
//
// All monetary values use shopspring/decimal — never float64 for money.
// Square roots are taken in float64 and converted back to decimal
// immediately, rounded to CapScale so the compounding point is fixed.
package curve

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	// BaselineCap is the canonical market cap every side starts at.
	BaselineCap = decimal.NewFromInt(100_000)

	// LiquidityScale is the L0 constant in totalLiquidity = L0 * sqrt(cap/C0).
	LiquidityScale = decimal.NewFromInt(100_000)

	// InitialLiquidity is the seed liquidity excluded from redistribution.
	InitialLiquidity = decimal.NewFromInt(10_000)

	// ImpactFactor scales how far one post-tax unit moves the cap.
	ImpactFactor = decimal.NewFromInt(20)

	// TaxRate is the platform tax deducted from every gross stake.
	TaxRate = decimal.NewFromFloat(0.05)

	// CapScale is the number of decimal places caps are rounded to.
	// NewMarketCap rounds half-up at this scale on every call; this is
	// the single rounding point that compounds across simulated buys.
	CapScale int32 = 8
)

// sqrtRatio computes sqrt(cap / BaselineCap) in float64 and returns it
// as a decimal. Caps are non-negative in practice; a negative input
// yields zero rather than NaN.
func sqrtRatio(cap decimal.Decimal) decimal.Decimal {
	ratio := cap.Div(BaselineCap).InexactFloat64()
	if ratio <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(ratio))
}

// TotalLiquidity returns the total bonding-curve liquidity at a cap:
//
//	totalLiquidity(cap) = L0 * sqrt(cap / C0)
func TotalLiquidity(cap decimal.Decimal) decimal.Decimal {
	return LiquidityScale.Mul(sqrtRatio(cap)).Round(CapScale)
}

// AvailableLiquidity returns the portion of a side's liquidity eligible
// for redistribution to the other side's winners. Exactly zero at or
// below the baseline, and never negative.
func AvailableLiquidity(cap decimal.Decimal) decimal.Decimal {
	if cap.LessThanOrEqual(BaselineCap) {
		return decimal.Zero
	}
	avail := TotalLiquidity(cap).Sub(InitialLiquidity)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// NewMarketCap advances a cap by one post-tax buy:
//
//	newCap = cap + postTax * 20 * sqrt(cap / C0)
//
// Price impact per unit shrinks as the cap grows. The result is rounded
// half-up to CapScale. Buys flow through input validation before reaching
// the curve, so postTax is positive here; a non-positive amount leaves
// the cap unchanged.
func NewMarketCap(cap, postTax decimal.Decimal) decimal.Decimal {
	if postTax.LessThanOrEqual(decimal.Zero) {
		return cap
	}
	increase := postTax.Mul(ImpactFactor).Mul(sqrtRatio(cap))
	return cap.Add(increase).Round(CapScale)
}

// Tax returns the platform tax taken from a gross stake.
func Tax(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(TaxRate)
}

// PostTax returns the net stake after the platform tax:
// net = gross * (1 - taxRate), exactly.
func PostTax(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(Tax(gross))
}
