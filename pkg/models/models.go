package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the settlement state of a bet
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeWon       Outcome = "won"
	OutcomeLost      Outcome = "lost"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeCashedOut Outcome = "cashed_out"
)

// IsResolved reports whether the outcome is terminal
func (o Outcome) IsResolved() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomeCancelled, OutcomeCashedOut:
		return true
	}
	return false
}

// Bet types recorded by the ledger
const (
	BetTypeSingle   = "single"
	BetTypeMultiple = "multiple"
	BetTypeSystem   = "system"
	BetTypeLive     = "live"
)

// Bet represents a ledger entry as stored by the system of record.
// Nullable numeric columns stay pointers here; the analytics package
// normalizes them on ingestion.
type Bet struct {
	ID          int64      `json:"id" db:"id"`
	Category    string     `json:"category" db:"category"`
	BetType     string     `json:"bet_type" db:"bet_type"`
	Bookmaker   string     `json:"bookmaker" db:"bookmaker"`
	Tournament  string     `json:"tournament" db:"tournament"`
	Description string     `json:"description" db:"description"`
	Match       string     `json:"match" db:"match_label"`
	Stake       float64    `json:"stake" db:"stake"`
	Odds        *float64   `json:"odds" db:"odds"`
	BonusAmount *float64   `json:"bonus_amount" db:"bonus_amount"`
	Turbo       *float64   `json:"turbo" db:"turbo"`
	Outcome     Outcome    `json:"outcome" db:"outcome"`
	Profit      *float64   `json:"profit" db:"profit"`
	Date        time.Time  `json:"date" db:"bet_date"`
	PlacedAt    *time.Time `json:"placed_at,omitempty" db:"placed_at"`
}

// DateLayout is the ledger's calendar-day format
const DateLayout = "2006-01-02"

// ParseDate reads a calendar day (YYYY-MM-DD, midnight UTC) or an RFC3339
// timestamp.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", value)
	}
	return t, nil
}

// UnmarshalJSON accepts exported ledgers whose date is a plain calendar day
func (b *Bet) UnmarshalJSON(data []byte) error {
	type plain Bet
	aux := struct {
		*plain
		Date *string `json:"date"`
	}{plain: (*plain)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Date == nil || *aux.Date == "" {
		b.Date = time.Time{}
		return nil
	}
	t, err := ParseDate(*aux.Date)
	if err != nil {
		return fmt.Errorf("bet %d: %w", b.ID, err)
	}
	b.Date = t
	return nil
}

// Bookmaker is a betting house with its running balance
type Bookmaker struct {
	ID      int64           `json:"id" db:"id"`
	Name    string          `json:"name" db:"name"`
	Balance decimal.Decimal `json:"balance" db:"balance"`
}

// BetFilters defines filters for bet queries
type BetFilters struct {
	Since     *time.Time `json:"since,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Bookmaker string     `json:"bookmaker,omitempty"`
	BetType   string     `json:"bet_type,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// PreviousPeriod returns filters covering the window of the same length
// that ends right before Since. ok is false when the range is open.
func (f BetFilters) PreviousPeriod() (prev BetFilters, ok bool) {
	if f.Since == nil || f.Until == nil || !f.Until.After(*f.Since) {
		return BetFilters{}, false
	}

	span := f.Until.Sub(*f.Since)
	until := f.Since.Add(-time.Nanosecond)
	since := f.Since.Add(-span)

	prev = f
	prev.Since = &since
	prev.Until = &until
	prev.Offset = 0
	return prev, true
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
