package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := s.primary.CreateEvent(ctx, e); err != nil {
		return err
	}
	s.cacheEvent(ctx, e)
	return nil
}

func (s *CachedStore) UpdateSideCap(ctx context.Context, eventID, sideID string, cap decimal.Decimal) error {
	if err := s.primary.UpdateSideCap(ctx, eventID, sideID, cap); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, eventKey(eventID))
	return nil
}

func (s *CachedStore) ResolveEvent(ctx context.Context, eventID, winnerSideID string) error {
	if err := s.primary.ResolveEvent(ctx, eventID, winnerSideID); err != nil {
		return err
	}
	s.rdb.Del(ctx, eventKey(eventID))
	return nil
}

func (s *CachedStore) InsertBet(ctx context.Context, bet *model.Bet) error {
	if err := s.primary.InsertBet(ctx, bet); err != nil {
		return err
	}
	// Invalidate stake aggregates for this user.
	s.rdb.Del(ctx, stakesKey(bet.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, eventKey(id)).Bytes()
	if err == nil {
		var e model.Event
		if json.Unmarshal(data, &e) == nil {
			return &e, nil
		}
	}

	// Cache miss: read from primary.
	e, err := s.primary.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheEvent(ctx, e)
	return e, nil
}

func (s *CachedStore) GetUserSideStakes(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, stakesKey(userID)).Bytes()
	if err == nil {
		var stakes map[string]decimal.Decimal
		if json.Unmarshal(data, &stakes) == nil {
			return stakes, nil
		}
	}

	// Cache miss.
	stakes, err := s.primary.GetUserSideStakes(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stakes); err == nil {
		s.rdb.Set(ctx, stakesKey(userID), data, s.ttl)
	}
	return stakes, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.primary.ListEvents(ctx)
}

func (s *CachedStore) GetBetsByEvent(ctx context.Context, eventID string) ([]model.Bet, error) {
	return s.primary.GetBetsByEvent(ctx, eventID)
}

func (s *CachedStore) GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error) {
	return s.primary.GetBetsByUser(ctx, userID)
}

// Snapshot always reads the primary: settlement must never see stale caps.
func (s *CachedStore) Snapshot(ctx context.Context, eventID string) (*model.Event, []model.Bet, error) {
	return s.primary.Snapshot(ctx, eventID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheEvent(ctx context.Context, e *model.Event) {
	if data, err := json.Marshal(e); err == nil {
		s.rdb.Set(ctx, eventKey(e.ID), data, s.ttl)
	}
}

func eventKey(id string) string   { return fmt.Sprintf("event:%s", id) }
func stakesKey(uid string) string { return fmt.Sprintf("stakes:%s", uid) }
