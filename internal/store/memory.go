package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/limits"
	"github.com/momentum-markets/engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	bets   []model.Bet
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]*model.Event),
	}
}

// cloneEvent copies an event and its sides to avoid external mutation.
func cloneEvent(e *model.Event) *model.Event {
	clone := *e
	clone.Sides = make([]model.Side, len(e.Sides))
	copy(clone.Sides, e.Sides)
	return &clone
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	for _, existing := range s.events {
		for _, side := range existing.Sides {
			for _, newSide := range e.Sides {
				if side.Ticker == newSide.Ticker {
					return fmt.Errorf("side ticker %s already exists", side.Ticker)
				}
			}
		}
	}

	s.events[e.ID] = cloneEvent(e)
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s not found", id)
	}
	return cloneEvent(e), nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, *cloneEvent(e))
	}
	return events, nil
}

func (s *MemoryStore) UpdateSideCap(_ context.Context, eventID, sideID string, cap decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	for i := range e.Sides {
		if e.Sides[i].ID == sideID {
			e.Sides[i].CurrentCap = cap
			return nil
		}
	}
	return fmt.Errorf("side %s not found on event %s", sideID, eventID)
}

func (s *MemoryStore) ResolveEvent(_ context.Context, eventID, winnerSideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	found := false
	for i := range e.Sides {
		if e.Sides[i].ID == winnerSideID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("side %s not found on event %s", winnerSideID, eventID)
	}
	for i := range e.Sides {
		e.Sides[i].FinalCap = e.Sides[i].CurrentCap
	}
	e.Status = model.StatusResolved
	e.WinnerID = winnerSideID
	return nil
}

func (s *MemoryStore) InsertBet(_ context.Context, bet *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bets = append(s.bets, *bet)
	return nil
}

func (s *MemoryStore) GetBetsByEvent(_ context.Context, eventID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.EventID == eventID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetBetsByUser(_ context.Context, userID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

// GetUserSideStakes aggregates the bet ledger into cumulative gross stake
// per side key.
func (s *MemoryStore) GetUserSideStakes(_ context.Context, userID string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stakes := make(map[string]decimal.Decimal)
	for _, b := range s.bets {
		if b.UserID != userID {
			continue
		}
		key := limits.SideKey(b.EventID, b.SideID)
		stakes[key] = stakes[key].Add(b.GrossAmount)
	}
	return stakes, nil
}

// Snapshot returns the event and its bets under one read lock, so both
// sides' caps and the ledger come from the same instant.
func (s *MemoryStore) Snapshot(_ context.Context, eventID string) (*model.Event, []model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, nil, fmt.Errorf("event %s not found", eventID)
	}

	var bets []model.Bet
	for _, b := range s.bets {
		if b.EventID == eventID {
			bets = append(bets, b)
		}
	}
	return cloneEvent(e), bets, nil
}
