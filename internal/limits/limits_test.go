package limits

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckLimit_WithinLimits(t *testing.T) {
	l := NewStakeLimiter(d(1000), d(1500))
	err := l.CheckLimit(SideKey("evt-1", "side-1"), d(100), nil)
	if err != nil {
		t.Errorf("bet within limits should pass, got %v", err)
	}
}

func TestCheckLimit_AtLimitAllowed(t *testing.T) {
	l := NewStakeLimiter(d(1000), d(1500))
	existing := map[string]decimal.Decimal{
		SideKey("evt-1", "side-1"): d(900),
	}
	if err := l.CheckLimit(SideKey("evt-1", "side-1"), d(100), existing); err != nil {
		t.Errorf("bet exactly at the per-side limit should pass, got %v", err)
	}
}

func TestCheckLimit_PerSideExceeded(t *testing.T) {
	l := NewStakeLimiter(d(1000), d(5000))
	existing := map[string]decimal.Decimal{
		SideKey("evt-1", "side-1"): d(950),
	}
	err := l.CheckLimit(SideKey("evt-1", "side-1"), d(51), existing)
	if err != ErrPerSideLimitExceeded {
		t.Errorf("expected ErrPerSideLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_PerEventExceeded(t *testing.T) {
	l := NewStakeLimiter(d(1000), d(1500))
	existing := map[string]decimal.Decimal{
		SideKey("evt-1", "side-1"): d(800),
		SideKey("evt-1", "side-2"): d(600),
	}
	// Per-side is fine (600+200=800 <= 1000) but the event aggregate
	// (800+800) breaches 1500.
	err := l.CheckLimit(SideKey("evt-1", "side-2"), d(200), existing)
	if err != ErrPerEventLimitExceeded {
		t.Errorf("expected ErrPerEventLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_OtherEventsDoNotCount(t *testing.T) {
	l := NewStakeLimiter(d(1000), d(1500))
	existing := map[string]decimal.Decimal{
		SideKey("evt-2", "side-1"): d(1000),
		SideKey("evt-3", "side-2"): d(1000),
	}
	if err := l.CheckLimit(SideKey("evt-1", "side-1"), d(500), existing); err != nil {
		t.Errorf("stakes on unrelated events should not count, got %v", err)
	}
}
