package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/limits"
	"github.com/momentum-markets/engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, name, status, winner_side_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Name, e.Status, e.WinnerID, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, side := range e.Sides {
		_, err = tx.Exec(ctx,
			`INSERT INTO sides (id, event_id, ticker, name, current_cap, final_cap)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC)`,
			side.ID, e.ID, side.Ticker, side.Name,
			side.CurrentCap.String(), side.FinalCap.String(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, winner_side_id, created_at
		 FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Status, &e.WinnerID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}

	sides, err := s.eventSides(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Sides = sides
	return &e, nil
}

func (s *PostgresStore) eventSides(ctx context.Context, eventID string) ([]model.Side, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, ticker, name, current_cap::TEXT, final_cap::TEXT
		 FROM sides WHERE event_id = $1 ORDER BY ticker`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sides []model.Side
	for rows.Next() {
		var side model.Side
		var currentCap, finalCap string
		if err := rows.Scan(&side.ID, &side.EventID, &side.Ticker, &side.Name,
			&currentCap, &finalCap); err != nil {
			return nil, err
		}
		side.CurrentCap, _ = decimal.NewFromString(currentCap)
		side.FinalCap, _ = decimal.NewFromString(finalCap)
		sides = append(sides, side)
	}
	return sides, rows.Err()
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, status, winner_side_id, created_at
		 FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &e.WinnerID, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		sides, err := s.eventSides(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Sides = sides
	}
	return events, nil
}

func (s *PostgresStore) UpdateSideCap(ctx context.Context, eventID, sideID string, cap decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sides SET current_cap = $3::NUMERIC
		 WHERE event_id = $1 AND id = $2`,
		eventID, sideID, cap.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("side %s not found on event %s", sideID, eventID)
	}
	return nil
}

func (s *PostgresStore) ResolveEvent(ctx context.Context, eventID, winnerSideID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sides SET final_cap = current_cap WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s has no sides", eventID)
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET status = $2, winner_side_id = $3 WHERE id = $1`,
		eventID, model.StatusResolved, winnerSideID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) InsertBet(ctx context.Context, b *model.Bet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bets (id, event_id, side_id, user_id, gross_amount, tax_amount, net_amount, cap_at_bet, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		b.ID, b.EventID, b.SideID, b.UserID,
		b.GrossAmount.String(), b.TaxAmount.String(), b.NetAmount.String(),
		b.CapAtBet.String(), b.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetBetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, side_id, user_id,
		        gross_amount::TEXT, tax_amount::TEXT, net_amount::TEXT, cap_at_bet::TEXT, timestamp
		 FROM bets WHERE event_id = $1 ORDER BY timestamp`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, side_id, user_id,
		        gross_amount::TEXT, tax_amount::TEXT, net_amount::TEXT, cap_at_bet::TEXT, timestamp
		 FROM bets WHERE user_id = $1 ORDER BY timestamp`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) GetUserSideStakes(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, side_id, COALESCE(SUM(gross_amount), 0)::TEXT
		 FROM bets WHERE user_id = $1
		 GROUP BY event_id, side_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stakes := make(map[string]decimal.Decimal)
	for rows.Next() {
		var eventID, sideID, stakeStr string
		if err := rows.Scan(&eventID, &sideID, &stakeStr); err != nil {
			return nil, err
		}
		stake, _ := decimal.NewFromString(stakeStr)
		stakes[limits.SideKey(eventID, sideID)] = stake
	}
	return stakes, rows.Err()
}

// Snapshot reads the event and its bet ledger inside one repeatable-read
// transaction, so the settlement pass sees a single consistent instant.
func (s *PostgresStore) Snapshot(ctx context.Context, eventID string) (*model.Event, []model.Bet, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	var e model.Event
	err = tx.QueryRow(ctx,
		`SELECT id, name, status, winner_side_id, created_at
		 FROM events WHERE id = $1`, eventID).
		Scan(&e.ID, &e.Name, &e.Status, &e.WinnerID, &e.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot event %s: %w", eventID, err)
	}

	rows, err := tx.Query(ctx,
		`SELECT id, event_id, ticker, name, current_cap::TEXT, final_cap::TEXT
		 FROM sides WHERE event_id = $1 ORDER BY ticker`, eventID)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var side model.Side
		var currentCap, finalCap string
		if err := rows.Scan(&side.ID, &side.EventID, &side.Ticker, &side.Name,
			&currentCap, &finalCap); err != nil {
			rows.Close()
			return nil, nil, err
		}
		side.CurrentCap, _ = decimal.NewFromString(currentCap)
		side.FinalCap, _ = decimal.NewFromString(finalCap)
		e.Sides = append(e.Sides, side)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	betRows, err := tx.Query(ctx,
		`SELECT id, event_id, side_id, user_id,
		        gross_amount::TEXT, tax_amount::TEXT, net_amount::TEXT, cap_at_bet::TEXT, timestamp
		 FROM bets WHERE event_id = $1 ORDER BY timestamp`, eventID)
	if err != nil {
		return nil, nil, err
	}
	defer betRows.Close()

	bets, err := scanBets(betRows)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &e, bets, nil
}

// scanBets reads pgx rows into Bet slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanBets(rows pgxRows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		var b model.Bet
		var grossS, taxS, netS, capS string

		if err := rows.Scan(&b.ID, &b.EventID, &b.SideID, &b.UserID,
			&grossS, &taxS, &netS, &capS, &b.Timestamp); err != nil {
			return nil, err
		}

		b.GrossAmount, _ = decimal.NewFromString(grossS)
		b.TaxAmount, _ = decimal.NewFromString(taxS)
		b.NetAmount, _ = decimal.NewFromString(netS)
		b.CapAtBet, _ = decimal.NewFromString(capS)

		bets = append(bets, b)
	}
	return bets, rows.Err()
}
