// Package store defines the persistence interface for the engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Event operations ---

	// CreateEvent persists a new event with its two sides.
	CreateEvent(ctx context.Context, event *model.Event) error

	// GetEvent retrieves an event (sides included) by its ID.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// ListEvents returns all events.
	ListEvents(ctx context.Context) ([]model.Event, error)

	// UpdateSideCap advances one side's current cap after a processed bet.
	UpdateSideCap(ctx context.Context, eventID, sideID string, cap decimal.Decimal) error

	// ResolveEvent freezes both sides' caps as final and records the winner.
	ResolveEvent(ctx context.Context, eventID, winnerSideID string) error

	// --- Immutable bet ledger ---

	// InsertBet appends an immutable bet record.
	InsertBet(ctx context.Context, bet *model.Bet) error

	// GetBetsByEvent returns all bets for an event in placement order.
	GetBetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error)

	// GetBetsByUser returns all bets for a user in placement order.
	GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error)

	// --- Aggregates ---

	// GetUserSideStakes returns a user's cumulative gross stake per side,
	// keyed "{eventID}/{sideID}".
	GetUserSideStakes(ctx context.Context, userID string) (map[string]decimal.Decimal, error)

	// Snapshot returns an event and its full bet ledger in one consistent
	// read, for a settlement pass over frozen state.
	Snapshot(ctx context.Context, eventID string) (*model.Event, []model.Bet, error)
}
