// Package limits enforces cumulative stake limits per side and per event.
//
// A user loading up both sides of one event (or one side repeatedly) is
// exposure the platform caps before the curve processes the bet. Sides
// are keyed "{eventID}/{sideID}", so the event prefix groups the two
// sides of one event into one aggregate bucket.
package limits

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrPerSideLimitExceeded is returned when a bet would push a user's
	// cumulative gross stake on a single side beyond the per-side maximum.
	ErrPerSideLimitExceeded = errors.New("limits: per-side stake limit exceeded")

	// ErrPerEventLimitExceeded is returned when a bet would push a user's
	// aggregate gross stake across both sides of an event beyond the
	// per-event maximum.
	ErrPerEventLimitExceeded = errors.New("limits: per-event stake limit exceeded")
)

// StakeLimiter enforces per-side and per-event cumulative stake limits.
type StakeLimiter struct {
	// MaxPerSide is the maximum cumulative gross stake on any single side.
	MaxPerSide decimal.Decimal

	// MaxPerEvent is the maximum aggregate gross stake across all sides
	// sharing the same event prefix.
	MaxPerEvent decimal.Decimal
}

// NewStakeLimiter creates a limiter with the given per-side and per-event
// maxima.
func NewStakeLimiter(maxPerSide, maxPerEvent decimal.Decimal) *StakeLimiter {
	return &StakeLimiter{
		MaxPerSide:  maxPerSide,
		MaxPerEvent: maxPerEvent,
	}
}

// SideKey builds the "{eventID}/{sideID}" key stake maps are indexed by.
func SideKey(eventID, sideID string) string {
	return eventID + "/" + sideID
}

// CheckLimit validates whether a bet respects stake limits.
//
// Parameters:
//   - targetKey: SideKey of the side being bet on
//   - stakeDelta: gross amount of the incoming bet
//   - existingStakes: map of side key → cumulative gross stake for this user
//
// Returns nil if the bet is within limits, or an error naming the
// violated limit.
func (l *StakeLimiter) CheckLimit(
	targetKey string,
	stakeDelta decimal.Decimal,
	existingStakes map[string]decimal.Decimal,
) error {
	// 1. Per-side limit.
	newStake := existingStakes[targetKey].Add(stakeDelta)
	if newStake.GreaterThan(l.MaxPerSide) {
		return ErrPerSideLimitExceeded
	}

	// 2. Per-event aggregate: sum stakes across side keys sharing the
	// event prefix.
	targetEvent := eventPrefix(targetKey)
	totalForEvent := newStake

	for key, stake := range existingStakes {
		if key == targetKey {
			continue // already counted via newStake above
		}
		if eventPrefix(key) == targetEvent {
			totalForEvent = totalForEvent.Add(stake)
		}
	}

	if totalForEvent.GreaterThan(l.MaxPerEvent) {
		return ErrPerEventLimitExceeded
	}

	return nil
}

// eventPrefix returns the event portion of a "{eventID}/{sideID}" key.
func eventPrefix(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
