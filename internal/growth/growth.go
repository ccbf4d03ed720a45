// Package growth simulates a side's market-cap trajectory from the
// baseline to its resolution value.
//
// Instead of replaying real bet history, the simulator models the market
// as a stream of fixed-size standardized buys flowing through the bonding
// curve. Each simulated buy (and the user's own) is valued at close as
// postTaxAmount * finalCap / openingCap, so an earlier entry captures more
// of the subsequent growth. The ratio of the user's value-at-close to the
// total across all buys is the user's timing-weighted share of the side.
//
// The simulator is pure and deterministic: no I/O, no shared state, safe
// to invoke concurrently for distinct (event, user) pairs.
package growth

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/curve"
)

var (
	// ErrInvalidInput is returned for a non-positive stake, non-positive
	// entry cap, or final cap below the baseline. Checked before any
	// simulation work.
	ErrInvalidInput = errors.New("growth: stake and entry cap must be positive and final cap at least the baseline")

	// ErrIterationCeiling is returned when the simulation hits MaxIterations
	// before reaching the final cap. The accompanying Result is the
	// best-effort state at the last reached cap; callers should treat the
	// error as a signal of a miscalibrated final cap, not a failure.
	ErrIterationCeiling = errors.New("growth: iteration ceiling reached before final cap")
)

// MaxIterations is the hard ceiling on simulated standard buys. It bounds
// the work of a single simulation regardless of convergence and is
// enforced exactly.
const MaxIterations = 10_000

// DefaultBuySize is the pre-tax size of one standardized buy.
var DefaultBuySize = decimal.NewFromInt(100)

// entryCapScale converts the upstream entry-cap marker (recorded in
// thousands of cap units) to full cap units.
var entryCapScale = decimal.NewFromInt(1000)

// Input describes one simulation run.
type Input struct {
	// FinalCap is the resolution market cap the side is driven toward,
	// in full cap units. Must be at least the baseline.
	FinalCap decimal.Decimal

	// Stake is the user's pre-tax bet amount.
	Stake decimal.Decimal

	// EntryCap is the market-cap marker at the user's bet time, in
	// thousands of cap units (the upstream ledger convention). Scaled to
	// full units internally.
	EntryCap decimal.Decimal

	// BuySize is the pre-tax size of one standard buy. Zero or negative
	// selects DefaultBuySize.
	BuySize decimal.Decimal
}

// BuyRecord is one synthetic standardized buy in the simulation ledger.
type BuyRecord struct {
	OpeningCap    decimal.Decimal `json:"opening_cap"`
	ClosingCap    decimal.Decimal `json:"closing_cap"`
	PostTaxAmount decimal.Decimal `json:"post_tax_amount"`
	ValueAtClose  decimal.Decimal `json:"value_at_close"`
}

// Result is the outcome of one simulation run. The ledger is transient:
// recomputed on demand, never persisted.
type Result struct {
	// TotalValue is the exact sum of every ledger entry's value-at-close,
	// including the user's.
	TotalValue decimal.Decimal `json:"total_value"`

	// Ledger holds the standard buys in execution order.
	Ledger []BuyRecord `json:"ledger"`

	// UserValueAtClose is the user's post-tax stake valued at the final cap.
	UserValueAtClose decimal.Decimal `json:"user_value_at_close"`

	// UserSharePercent = userValueAtClose / totalValue * 100, in (0, 100].
	UserSharePercent decimal.Decimal `json:"user_share_percent"`

	// UserEntryCap is the opening cap the user's buy was valued against,
	// in full cap units.
	UserEntryCap decimal.Decimal `json:"user_entry_cap"`

	// ReachedCap is the last cap the simulation advanced to.
	ReachedCap decimal.Decimal `json:"reached_cap"`

	// Iterations is the number of standard buys executed.
	Iterations int `json:"iterations"`
}

// Simulate replays standardized buys from the baseline cap toward
// in.FinalCap and values the user's stake against the trajectory.
//
// The user's buy is pinned to the first step whose opening cap reaches
// the (scaled) entry cap. If the loop never reaches it, the user is
// valued afterwards against min(entryCap, finalCap), which keeps the
// growth ratio from exceeding finalCap/baseline artificially. Entry caps
// at or below the baseline make the user the first entrant at the
// baseline cap.
//
// On ErrIterationCeiling the returned Result is still populated with the
// state at the last reached cap.
func Simulate(in Input) (Result, error) {
	if in.Stake.LessThanOrEqual(decimal.Zero) ||
		in.EntryCap.LessThanOrEqual(decimal.Zero) ||
		in.FinalCap.LessThan(curve.BaselineCap) {
		return Result{}, ErrInvalidInput
	}

	buySize := in.BuySize
	if buySize.LessThanOrEqual(decimal.Zero) {
		buySize = DefaultBuySize
	}

	postTaxBuy := curve.PostTax(buySize)
	postTaxStake := curve.PostTax(in.Stake)

	// Upstream records the entry marker in thousands; clamp to the
	// baseline so sub-baseline entries behave as the first buy.
	entryCap := in.EntryCap.Mul(entryCapScale)
	if entryCap.LessThan(curve.BaselineCap) {
		entryCap = curve.BaselineCap
	}

	res := Result{ReachedCap: curve.BaselineCap}
	total := decimal.Zero
	userIncluded := false

	current := curve.BaselineCap
	for current.LessThan(in.FinalCap) && res.Iterations < MaxIterations {
		if !userIncluded && entryCap.LessThanOrEqual(current) {
			res.UserValueAtClose = postTaxStake.Mul(in.FinalCap).Div(current)
			res.UserEntryCap = current
			userIncluded = true
		}

		opening := current
		closing := curve.NewMarketCap(opening, postTaxBuy)
		value := postTaxBuy.Mul(in.FinalCap).Div(opening)

		res.Ledger = append(res.Ledger, BuyRecord{
			OpeningCap:    opening,
			ClosingCap:    closing,
			PostTaxAmount: postTaxBuy,
			ValueAtClose:  value,
		})
		total = total.Add(value)

		current = closing
		res.Iterations++
	}
	res.ReachedCap = current

	if !userIncluded {
		// Entry cap beyond the simulated range (or final cap at the
		// baseline exactly): value directly against the floor denominator.
		denom := decimal.Min(entryCap, in.FinalCap)
		res.UserValueAtClose = postTaxStake.Mul(in.FinalCap).Div(denom)
		res.UserEntryCap = denom
	}

	res.TotalValue = total.Add(res.UserValueAtClose)
	res.UserSharePercent = res.UserValueAtClose.Div(res.TotalValue).Mul(decimal.NewFromInt(100))

	if current.LessThan(in.FinalCap) {
		return res, ErrIterationCeiling
	}
	return res, nil
}
