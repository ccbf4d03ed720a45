// Package model defines the core domain types shared across the engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Event is one binary-outcome event with exactly two sides.
type Event struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Sides     []Side    `json:"sides"`
	Status    string    `json:"status" db:"status"` // "open", "resolved"
	WinnerID  string    `json:"winner_side_id,omitempty" db:"winner_side_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Side is one outcome of a binary event with its own bonding-curve state.
// CurrentCap starts at the canonical baseline, only moves up as bets are
// processed, and is frozen into FinalCap at resolution.
type Side struct {
	ID         string          `json:"id" db:"id"`
	EventID    string          `json:"event_id" db:"event_id"`
	Ticker     string          `json:"ticker" db:"ticker"`
	Name       string          `json:"name" db:"name"`
	CurrentCap decimal.Decimal `json:"current_cap" db:"current_cap"`
	FinalCap   decimal.Decimal `json:"final_cap" db:"final_cap"` // zero until resolved
}

// Bet is an immutable record of one processed bet.
// Invariant: NetAmount = GrossAmount * (1 - taxRate) exactly.
type Bet struct {
	ID          string          `json:"id" db:"id"`
	EventID     string          `json:"event_id" db:"event_id"`
	SideID      string          `json:"side_id" db:"side_id"`
	UserID      string          `json:"user_id" db:"user_id"`
	GrossAmount decimal.Decimal `json:"gross_amount" db:"gross_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	NetAmount   decimal.Decimal `json:"net_amount" db:"net_amount"`
	// CapAtBet is the side's market-cap marker when the bet landed, in
	// thousands of cap units (upstream ledger convention).
	CapAtBet  decimal.Decimal `json:"cap_at_bet" db:"cap_at_bet"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// RewardRecord is one user's derived settlement outcome. Computed at
// settlement time, never incrementally maintained.
type RewardRecord struct {
	UserID       string          `json:"user_id"`
	SharePercent decimal.Decimal `json:"share_percent"`
	Payout       decimal.Decimal `json:"payout"`
}
