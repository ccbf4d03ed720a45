package reward

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/growth"
	"github.com/momentum-markets/engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func bet(id, userID, sideID string, gross, capAt float64) model.Bet {
	g := d(gross)
	tax := g.Mul(d(0.05))
	return model.Bet{
		ID:          id,
		EventID:     "evt-1",
		SideID:      sideID,
		UserID:      userID,
		GrossAmount: g,
		TaxAmount:   tax,
		NetAmount:   g.Sub(tax),
		CapAtBet:    d(capAt),
		Timestamp:   time.Now().UTC(),
	}
}

// --- Single-user computation ---

func TestCompute_BasicOutcome(t *testing.T) {
	r, err := Compute(Input{
		Stake:           d(100),
		EntryCap:        d(150),
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.TaxPaid.Equal(d(5)) {
		t.Errorf("expected tax 5, got %s", r.TaxPaid)
	}
	if !r.PostTaxStake.Equal(d(95)) {
		t.Errorf("expected post-tax stake 95, got %s", r.PostTaxStake)
	}
	// Losing side at 400,000: available liquidity = 190,000.
	if !r.LosingLiquidity.Equal(d(190_000)) {
		t.Errorf("expected losing liquidity 190000, got %s", r.LosingLiquidity)
	}
	if r.DollarShare.LessThanOrEqual(decimal.Zero) {
		t.Errorf("dollar share should be positive, got %s", r.DollarShare)
	}
	if !r.EstimatedPayout.Equal(r.PostTaxStake.Add(r.DollarShare)) {
		t.Error("payout should equal post-tax stake plus dollar share")
	}
	if !r.Profit.Equal(r.DollarShare.Sub(r.PostTaxStake)) {
		t.Error("profit should equal dollar share minus post-tax stake")
	}
	if r.SimulationCapped {
		t.Error("realistic final cap should not hit the iteration ceiling")
	}
}

func TestCompute_Idempotent(t *testing.T) {
	in := Input{
		Stake:           d(100),
		EntryCap:        d(150),
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(300_000),
	}
	a, errA := Compute(in)
	b, errB := Compute(in)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if !a.SharePercent.Equal(b.SharePercent) ||
		!a.DollarShare.Equal(b.DollarShare) ||
		!a.EstimatedPayout.Equal(b.EstimatedPayout) ||
		!a.Profit.Equal(b.Profit) {
		t.Error("identical inputs must yield identical rewards")
	}
}

func TestCompute_LosingSideAtBaseline(t *testing.T) {
	// Scenario: losing final cap at or below the baseline carries zero
	// available liquidity, so every winner gets exactly the net stake back
	// and profit floors at zero rather than going negative.
	for _, losing := range []float64{100_000, 80_000} {
		r, err := Compute(Input{
			Stake:           d(100),
			EntryCap:        d(150),
			WinningFinalCap: d(500_000),
			LosingFinalCap:  d(losing),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.LosingLiquidity.IsZero() {
			t.Errorf("losing cap %.0f: expected zero liquidity, got %s", losing, r.LosingLiquidity)
		}
		if !r.DollarShare.IsZero() {
			t.Errorf("losing cap %.0f: expected zero dollar share, got %s", losing, r.DollarShare)
		}
		if !r.EstimatedPayout.Equal(d(95)) {
			t.Errorf("losing cap %.0f: expected payout 95, got %s", losing, r.EstimatedPayout)
		}
		if !r.Profit.IsZero() {
			t.Errorf("losing cap %.0f: expected zero profit, got %s", losing, r.Profit)
		}
	}
}

func TestCompute_InvalidInputPropagates(t *testing.T) {
	_, err := Compute(Input{
		Stake:           d(0),
		EntryCap:        d(150),
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(300_000),
	})
	if !errors.Is(err, growth.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompute_IterationCeilingFlagged(t *testing.T) {
	r, err := Compute(Input{
		Stake:           d(100),
		EntryCap:        d(150),
		WinningFinalCap: d(1e18),
		LosingFinalCap:  d(300_000),
	})
	if err != nil {
		t.Fatalf("ceiling hit should be flagged, not failed: %v", err)
	}
	if !r.SimulationCapped {
		t.Error("expected SimulationCapped for an unreachable final cap")
	}
	if r.EstimatedPayout.LessThanOrEqual(decimal.Zero) {
		t.Error("best-effort payout should still be positive")
	}
}

// --- Batch settlement ---

func TestSettleEvent_SplitsLosingPool(t *testing.T) {
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
		Bets: []model.Bet{
			bet("b1", "alice", "side-1", 100, 110),
			bet("b2", "bob", "side-1", 100, 300),
			bet("b3", "carol", "side-2", 100, 120), // losing side, excluded
		},
	}

	batch, err := SettleEvent(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batch.Users) != 2 || len(batch.Payouts) != 2 || len(batch.Records) != 2 {
		t.Fatalf("expected 2 winners, got users=%d payouts=%d records=%d",
			len(batch.Users), len(batch.Payouts), len(batch.Records))
	}
	// First-appearance order from the ledger.
	if batch.Users[0] != "alice" || batch.Users[1] != "bob" {
		t.Errorf("unexpected user order: %v", batch.Users)
	}
	// Alice entered earlier, so her payout should exceed Bob's.
	if !batch.Payouts[0].GreaterThan(batch.Payouts[1]) {
		t.Errorf("earlier entrant should be paid more: alice=%s bob=%s",
			batch.Payouts[0], batch.Payouts[1])
	}
	for i, p := range batch.Payouts {
		if p.LessThanOrEqual(decimal.Zero) {
			t.Errorf("payout %d should be positive, got %s", i, p)
		}
		if !batch.Records[i].Payout.Equal(p) {
			t.Errorf("record %d payout mismatch", i)
		}
	}
	if !batch.LosingLiquidity.Equal(d(190_000)) {
		t.Errorf("expected losing liquidity 190000, got %s", batch.LosingLiquidity)
	}
}

func TestSettleEvent_AggregatesPerUser(t *testing.T) {
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
		Bets: []model.Bet{
			bet("b1", "alice", "side-1", 60, 110),
			bet("b2", "alice", "side-1", 40, 250),
		},
	}

	batch, err := SettleEvent(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Users) != 1 || batch.Users[0] != "alice" {
		t.Fatalf("expected a single aggregated user, got %v", batch.Users)
	}

	// The aggregate must equal the sum of the two bets priced separately.
	r1, _ := Compute(Input{Stake: d(60), EntryCap: d(110), WinningFinalCap: d(500_000), LosingFinalCap: d(400_000)})
	r2, _ := Compute(Input{Stake: d(40), EntryCap: d(250), WinningFinalCap: d(500_000), LosingFinalCap: d(400_000)})
	want := r1.EstimatedPayout.Add(r2.EstimatedPayout)
	if !batch.Payouts[0].Equal(want) {
		t.Errorf("expected aggregated payout %s, got %s", want, batch.Payouts[0])
	}
}

func TestSettleEvent_NoQualifyingParticipants(t *testing.T) {
	// All bets on the losing side.
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
		Bets: []model.Bet{
			bet("b1", "carol", "side-2", 100, 120),
		},
	}
	batch, err := SettleEvent(snap)
	if !errors.Is(err, ErrNoQualifyingParticipants) {
		t.Fatalf("expected ErrNoQualifyingParticipants, got %v", err)
	}
	if len(batch.Users) != 0 || len(batch.Payouts) != 0 {
		t.Error("empty batch expected for zero winners")
	}
}

func TestSettleEvent_EmptyLedger(t *testing.T) {
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
	}
	if _, err := SettleEvent(snap); !errors.Is(err, ErrNoQualifyingParticipants) {
		t.Fatalf("expected ErrNoQualifyingParticipants, got %v", err)
	}
}

func TestSettleEvent_SkipsNonPositiveGross(t *testing.T) {
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
		Bets: []model.Bet{
			bet("b1", "alice", "side-1", 0, 110),
			bet("b2", "bob", "side-1", 100, 110),
		},
	}
	batch, err := SettleEvent(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Users) != 1 || batch.Users[0] != "bob" {
		t.Errorf("zero-gross bet should be skipped, got %v", batch.Users)
	}
}

func TestSettleEvent_Deterministic(t *testing.T) {
	snap := Snapshot{
		EventID:         "evt-1",
		WinningSideID:   "side-1",
		WinningFinalCap: d(500_000),
		LosingFinalCap:  d(400_000),
		Bets: []model.Bet{
			bet("b1", "alice", "side-1", 100, 110),
			bet("b2", "bob", "side-1", 50, 200),
		},
	}
	a, errA := SettleEvent(snap)
	b, errB := SettleEvent(snap)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	for i := range a.Users {
		if a.Users[i] != b.Users[i] || !a.Payouts[i].Equal(b.Payouts[i]) {
			t.Fatal("settlement must be deterministic for a fixed snapshot")
		}
	}
}
