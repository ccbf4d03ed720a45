// Package fixture handles side ticker parsing, validation, and
// derivation of curve parameters from bookmaker-style payout multipliers.
package fixture

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momentum-markets/engine/internal/curve"
)

// Side slots of a binary event.
const (
	SlotOne = "S1"
	SlotTwo = "S2"
)

// tickerRegex matches: MM-{eventCode}-{S1|S2}-{YYYYMMDD}
// Example: MM-UFCLDN318-S1-20250323
var tickerRegex = regexp.MustCompile(
	`^MM-([0-9A-Z]+)-(S[12])-(\d{8})$`,
)

var (
	ErrInvalidTicker     = errors.New("fixture: invalid ticker format")
	ErrInvalidMultiplier = errors.New("fixture: payout multiplier must exceed 1")
)

// Fixture represents a parsed side ticker.
type Fixture struct {
	Ticker    string    `json:"ticker"`
	EventCode string    `json:"event_code"`
	Slot      string    `json:"slot"`
	EventDate time.Time `json:"event_date"`
}

// ParseTicker parses and validates a side ticker string.
// Format: MM-{eventCode}-{S1|S2}-{YYYYMMDD}
func ParseTicker(ticker string) (*Fixture, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected MM-{eventCode}-{S1|S2}-{YYYYMMDD})",
			ErrInvalidTicker, ticker)
	}

	eventCode := matches[1]
	slot := matches[2]
	dateStr := matches[3]

	date, err := time.Parse("20060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidTicker, dateStr)
	}

	return &Fixture{
		Ticker:    ticker,
		EventCode: eventCode,
		Slot:      slot,
		EventDate: date,
	}, nil
}

// ImpliedFinalCap derives a final-cap target from a bookmaker-style
// payout multiplier. Liquidity grows with sqrt(cap), so a side expected
// to pay out m times its baseline liquidity implies a cap of m² times
// the baseline:
//
//	finalCap = C0 * multiplier²
//
// Useful for calibrating simulator inputs before an event resolves; a
// multiplier at or below 1 has no cap above the baseline to imply.
func ImpliedFinalCap(multiplier decimal.Decimal) (decimal.Decimal, error) {
	if multiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, ErrInvalidMultiplier
	}
	return curve.BaselineCap.Mul(multiplier).Mul(multiplier).Round(curve.CapScale), nil
}
