// Package reward apportions the losing side's available liquidity among
// the winning side's bettors.
//
// One user's reward follows from the growth simulator: the user's
// timing-weighted share of the winning side's simulated trajectory,
// converted into dollars against the losing side's available liquidity.
// Batch settlement runs that computation once per qualifying bet over a
// frozen event snapshot and folds the results into per-user payouts.
//
// All monetary values use shopspring/decimal — never float64 for money.
package reward

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/curve"
	"github.com/momentum-markets/engine/internal/growth"
	"github.com/momentum-markets/engine/internal/model"
)

// ErrNoQualifyingParticipants is returned when a settlement batch has no
// winners. Reported, not fatal: the caller decides whether to skip batch
// submission.
var ErrNoQualifyingParticipants = errors.New("reward: no qualifying participants")

// Input describes one user's reward computation.
type Input struct {
	// Stake is the user's pre-tax bet amount on the winning side.
	Stake decimal.Decimal

	// EntryCap is the market-cap marker at bet time, in thousands of cap
	// units, as recorded on the bet.
	EntryCap decimal.Decimal

	// WinningFinalCap is the winning side's frozen resolution cap.
	WinningFinalCap decimal.Decimal

	// LosingFinalCap is the losing side's frozen resolution cap; its
	// available liquidity funds the payouts.
	LosingFinalCap decimal.Decimal

	// BuySize overrides the standard buy size; zero selects the default.
	BuySize decimal.Decimal
}

// Reward is the economic outcome for one user.
type Reward struct {
	TaxPaid          decimal.Decimal `json:"tax_paid"`
	PostTaxStake     decimal.Decimal `json:"post_tax_stake"`
	ValueAtClose     decimal.Decimal `json:"value_at_close"`
	SharePercent     decimal.Decimal `json:"share_percent"`
	TotalValue       decimal.Decimal `json:"total_value"`
	LosingLiquidity  decimal.Decimal `json:"losing_liquidity"`
	DollarShare      decimal.Decimal `json:"dollar_share"`
	EstimatedPayout  decimal.Decimal `json:"estimated_payout"`
	Profit           decimal.Decimal `json:"profit"`
	SimulationCapped bool            `json:"simulation_capped"`
}

// Compute runs the growth simulator against the winning final cap and
// converts the resulting share into dollars from the losing side's
// available liquidity. Deterministic: identical inputs yield identical
// outputs.
//
// estimatedPayout = postTaxStake + dollarShare returns the net stake plus
// winnings; profit is the dollar share in excess of the net stake,
// floored at zero so a winner is never quoted a negative figure. An
// iteration-ceiling hit in the simulator is carried on the Reward as
// SimulationCapped rather than failing the computation.
func Compute(in Input) (Reward, error) {
	sim, err := growth.Simulate(growth.Input{
		FinalCap: in.WinningFinalCap,
		Stake:    in.Stake,
		EntryCap: in.EntryCap,
		BuySize:  in.BuySize,
	})
	capped := errors.Is(err, growth.ErrIterationCeiling)
	if err != nil && !capped {
		return Reward{}, err
	}

	losingLiquidity := curve.AvailableLiquidity(in.LosingFinalCap)
	dollarShare := sim.UserSharePercent.Div(decimal.NewFromInt(100)).Mul(losingLiquidity)
	postTaxStake := curve.PostTax(in.Stake)

	return Reward{
		TaxPaid:          curve.Tax(in.Stake),
		PostTaxStake:     postTaxStake,
		ValueAtClose:     sim.UserValueAtClose,
		SharePercent:     sim.UserSharePercent,
		TotalValue:       sim.TotalValue,
		LosingLiquidity:  losingLiquidity,
		DollarShare:      dollarShare,
		EstimatedPayout:  postTaxStake.Add(dollarShare),
		Profit:           decimal.Max(decimal.Zero, dollarShare.Sub(postTaxStake)),
		SimulationCapped: capped,
	}, nil
}

// Snapshot is the frozen per-event view a settlement pass runs over.
// Both final caps and the bet ledger must come from one consistent read;
// freezing ledger mutation before settlement is the caller's
// responsibility.
type Snapshot struct {
	EventID         string
	WinningSideID   string
	WinningFinalCap decimal.Decimal
	LosingFinalCap  decimal.Decimal
	Bets            []model.Bet
}

// Batch is the settlement output for one event: parallel ordered lists
// of qualifying user identities and payout amounts, ready for atomic
// submission, plus the per-user records behind them.
type Batch struct {
	EventID          string               `json:"event_id"`
	WinningSideID    string               `json:"winning_side_id"`
	LosingLiquidity  decimal.Decimal      `json:"losing_liquidity"`
	Users            []string             `json:"users"`
	Payouts          []decimal.Decimal    `json:"payouts"`
	Records          []model.RewardRecord `json:"records"`
	SimulationCapped bool                 `json:"simulation_capped"`
}

// SettleEvent runs Compute once per qualifying bet and folds the results
// into one payout batch keyed by user identity.
//
// A bet qualifies when it sits on the winning side with a positive gross
// amount; anything else is skipped, never an error. Users keep their
// first-appearance order from the bet ledger, so the output is
// deterministic for a fixed snapshot. Zero winners yields
// ErrNoQualifyingParticipants alongside an empty batch.
func SettleEvent(snap Snapshot) (Batch, error) {
	batch := Batch{
		EventID:         snap.EventID,
		WinningSideID:   snap.WinningSideID,
		LosingLiquidity: curve.AvailableLiquidity(snap.LosingFinalCap),
	}

	type userAgg struct {
		index  int
		share  decimal.Decimal
		payout decimal.Decimal
	}
	agg := make(map[string]*userAgg)
	var order []string

	for _, bet := range snap.Bets {
		if bet.SideID != snap.WinningSideID || bet.GrossAmount.LessThanOrEqual(decimal.Zero) {
			continue // non-qualifying, not an error
		}

		r, err := Compute(Input{
			Stake:           bet.GrossAmount,
			EntryCap:        bet.CapAtBet,
			WinningFinalCap: snap.WinningFinalCap,
			LosingFinalCap:  snap.LosingFinalCap,
		})
		if err != nil {
			return Batch{}, fmt.Errorf("settle event %s bet %s: %w", snap.EventID, bet.ID, err)
		}
		if r.SimulationCapped {
			batch.SimulationCapped = true
		}

		ua, ok := agg[bet.UserID]
		if !ok {
			ua = &userAgg{index: len(order)}
			agg[bet.UserID] = ua
			order = append(order, bet.UserID)
		}
		ua.share = ua.share.Add(r.SharePercent)
		ua.payout = ua.payout.Add(r.EstimatedPayout)
	}

	if len(order) == 0 {
		return batch, ErrNoQualifyingParticipants
	}

	for _, userID := range order {
		ua := agg[userID]
		batch.Users = append(batch.Users, userID)
		batch.Payouts = append(batch.Payouts, ua.payout)
		batch.Records = append(batch.Records, model.RewardRecord{
			UserID:       userID,
			SharePercent: ua.share,
			Payout:       ua.payout,
		})
	}
	return batch, nil
}
