// Package analytics turns a bet history into KPIs, time series, risk
// measures and classifications. Every function is pure: inputs are never
// mutated and missing or zero denominators yield 0 instead of an error.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Bet is a normalized ledger entry. Nullable numbers are already zeroed,
// the turbo multiplier is a fraction and categories are split into a set.
type Bet struct {
	ID          int64          `json:"id"`
	Categories  CategorySet    `json:"categories"`
	Type        string         `json:"bet_type"`
	Bookmaker   string         `json:"bookmaker"`
	Tournament  string         `json:"tournament"`
	Description string         `json:"description"`
	Match       string         `json:"match"`
	Stake       float64        `json:"stake"`
	Odds        float64        `json:"odds"`
	Bonus       float64        `json:"bonus"`
	Turbo       float64        `json:"turbo"`
	Outcome     models.Outcome `json:"outcome"`
	Profit      float64        `json:"profit"`
	Date        time.Time      `json:"date"`
	Hour        int            `json:"hour"` // -1 when the placement time is unknown
}

// CategorySet is a sorted, de-duplicated list of category tags
type CategorySet []string

// Has reports whether tag is part of the set
func (s CategorySet) Has(tag string) bool {
	i := sort.SearchStrings(s, tag)
	return i < len(s) && s[i] == tag
}

// SplitCategories parses a comma or semicolon delimited category field
func SplitCategories(raw string) CategorySet {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	seen := make(map[string]struct{}, len(fields))
	set := make(CategorySet, 0, len(fields))
	for _, f := range fields {
		tag := strings.TrimSpace(f)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		set = append(set, tag)
	}
	sort.Strings(set)
	return set
}

// NormalizeTurbo converts a turbo multiplier stored either as a fraction
// (0.25) or as a whole percent (25) into a fraction.
func NormalizeTurbo(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x > 1 {
		return x / 100
	}
	return x
}

// NormalizeTurboPtr is NormalizeTurbo for a nullable column
func NormalizeTurboPtr(x *float64) float64 {
	if x == nil {
		return 0
	}
	return NormalizeTurbo(*x)
}

// FromRecord normalizes a single ledger record
func FromRecord(r models.Bet) Bet {
	stake := r.Stake
	if stake < 0 {
		stake = 0
	}

	hour := -1
	if r.PlacedAt != nil {
		hour = r.PlacedAt.Hour()
	}

	profit := valueOf(r.Profit)
	if !r.Outcome.IsResolved() {
		profit = 0
	}

	return Bet{
		ID:          r.ID,
		Categories:  SplitCategories(r.Category),
		Type:        r.BetType,
		Bookmaker:   strings.TrimSpace(r.Bookmaker),
		Tournament:  r.Tournament,
		Description: r.Description,
		Match:       r.Match,
		Stake:       stake,
		Odds:        valueOf(r.Odds),
		Bonus:       valueOf(r.BonusAmount),
		Turbo:       NormalizeTurboPtr(r.Turbo),
		Outcome:     r.Outcome,
		Profit:      profit,
		Date:        truncateDay(r.Date),
		Hour:        hour,
	}
}

// Ingest normalizes a batch of records, preserving their order
func Ingest(records []models.Bet) []Bet {
	bets := make([]Bet, len(records))
	for i, r := range records {
		bets[i] = FromRecord(r)
	}
	return bets
}

// Resolved returns the bets with a terminal outcome
func Resolved(bets []Bet) []Bet {
	out := make([]Bet, 0, len(bets))
	for _, b := range bets {
		if b.Outcome.IsResolved() {
			out = append(out, b)
		}
	}
	return out
}

// Pending returns the bets still awaiting settlement
func Pending(bets []Bet) []Bet {
	out := make([]Bet, 0, len(bets))
	for _, b := range bets {
		if b.Outcome == models.OutcomePending {
			out = append(out, b)
		}
	}
	return out
}

// SortByDate returns a copy ordered by date, ties broken by id
func SortByDate(bets []Bet) []Bet {
	out := make([]Bet, len(bets))
	copy(out, bets)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProjectedProfit is the profit a bet pays if it wins: the odds payout
// plus any bonus, boosted by the turbo fraction.
func ProjectedProfit(b Bet) float64 {
	if b.Odds <= 1 {
		return 0
	}
	base := b.Stake*(b.Odds-1) + b.Bonus
	return base * (1 + b.Turbo)
}

// IsBoosted reports whether a bonus or turbo promotion applies to the bet
func IsBoosted(b Bet) bool {
	return b.Bonus > 0 || b.Turbo > 0
}

// ReturnPct is the realized return of a single bet in percent of its stake
func ReturnPct(b Bet) float64 {
	return safeDiv(b.Profit, b.Stake) * 100
}

func isWin(b Bet) bool {
	return b.Outcome == models.OutcomeWon
}

func valueOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
