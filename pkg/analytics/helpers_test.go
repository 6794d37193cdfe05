package analytics_test

import (
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

type recordOpt func(*models.Bet)

func ptr(v float64) *float64 { return &v }

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func withOdds(o float64) recordOpt {
	return func(b *models.Bet) { b.Odds = ptr(o) }
}

func withCategory(c string) recordOpt {
	return func(b *models.Bet) { b.Category = c }
}

func withBookmaker(name string) recordOpt {
	return func(b *models.Bet) { b.Bookmaker = name }
}

func withBonus(amount float64) recordOpt {
	return func(b *models.Bet) { b.BonusAmount = ptr(amount) }
}

func withTurbo(t float64) recordOpt {
	return func(b *models.Bet) { b.Turbo = ptr(t) }
}

func withHour(h int) recordOpt {
	return func(b *models.Bet) {
		at := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), h, 15, 0, 0, time.UTC)
		b.PlacedAt = &at
	}
}

func record(id int64, date time.Time, stake float64, outcome models.Outcome, profit float64, opts ...recordOpt) models.Bet {
	b := models.Bet{
		ID:        id,
		BetType:   models.BetTypeSingle,
		Bookmaker: "Betano",
		Match:     "Home v Away",
		Stake:     stake,
		Outcome:   outcome,
		Profit:    ptr(profit),
		Date:      date,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func ingest(records ...models.Bet) []analytics.Bet {
	return analytics.Ingest(records)
}

// scenarioA is two resolved bets and one pending bet
func scenarioA() []analytics.Bet {
	return ingest(
		record(1, day(time.January, 1), 100, models.OutcomeWon, 100, withOdds(2.0)),
		record(2, day(time.January, 2), 50, models.OutcomeLost, -50, withOdds(1.5)),
		record(3, day(time.January, 3), 20, models.OutcomePending, 0, withOdds(3.0)),
	)
}

// scenarioD is five wins followed by two losses on consecutive days
func scenarioD() []analytics.Bet {
	var recs []models.Bet
	for i := 1; i <= 5; i++ {
		recs = append(recs, record(int64(i), day(time.March, i), 10, models.OutcomeWon, 10, withOdds(2.0)))
	}
	for i := 6; i <= 7; i++ {
		recs = append(recs, record(int64(i), day(time.March, i), 10, models.OutcomeLost, -10, withOdds(2.0)))
	}
	return analytics.Ingest(recs)
}

// drawdownHistory has cumulative profit 100, 50, 20, 120, 100, 90
func drawdownHistory() []analytics.Bet {
	return ingest(
		record(1, day(time.January, 1), 100, models.OutcomeWon, 100, withOdds(2.0)),
		record(2, day(time.January, 2), 50, models.OutcomeLost, -50, withOdds(1.8)),
		record(3, day(time.January, 3), 30, models.OutcomeLost, -30, withOdds(1.9)),
		record(4, day(time.January, 4), 100, models.OutcomeWon, 100, withOdds(2.0)),
		record(5, day(time.January, 5), 20, models.OutcomeLost, -20, withOdds(2.2)),
		record(6, day(time.January, 6), 10, models.OutcomeLost, -10, withOdds(2.5)),
	)
}
