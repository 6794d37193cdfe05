package analytics

import (
	"sort"
	"time"
)

// EquityPoint is one step of the cumulative return curve
type EquityPoint struct {
	BetID            int64     `json:"bet_id"`
	Date             time.Time `json:"date"`
	CumulativeStaked float64   `json:"cumulative_staked"`
	CumulativeProfit float64   `json:"cumulative_profit"`
	ReturnPct        float64   `json:"return_pct"`
}

// EquityCurve emits one point per resolved bet in date order with the
// running return on everything staked so far.
func EquityCurve(bets []Bet) []EquityPoint {
	resolved := SortByDate(Resolved(bets))
	points := make([]EquityPoint, 0, len(resolved))

	var staked, profit float64
	for _, b := range resolved {
		staked += b.Stake
		profit += b.Profit
		points = append(points, EquityPoint{
			BetID:            b.ID,
			Date:             b.Date,
			CumulativeStaked: staked,
			CumulativeProfit: profit,
			ReturnPct:        pct(profit, staked),
		})
	}
	return points
}

// PeriodStat is a GroupStat for a calendar period (month, weekday, hour)
type PeriodStat struct {
	GroupStat
	Label string `json:"label"`
}

// Monthly aggregates resolved bets per calendar month, oldest first.
// Keys are formatted YYYY-MM.
func Monthly(bets []Bet) []PeriodStat {
	groups := groupBy(bets, func(b Bet) []string {
		if b.Date.IsZero() {
			return nil
		}
		return []string{b.Date.Format("2006-01")}
	})

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PeriodStat, 0, len(keys))
	for _, k := range keys {
		t, _ := time.Parse("2006-01", k)
		out = append(out, PeriodStat{
			GroupStat: groups[k].stat(k),
			Label:     t.Format("Jan 2006"),
		})
	}
	return out
}

// weekdayOrder lists weekdays starting on Monday
var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Weekday aggregates resolved bets per day of week. All seven days are
// always present, Monday first.
func Weekday(bets []Bet) []PeriodStat {
	groups := groupBy(bets, func(b Bet) []string {
		if b.Date.IsZero() {
			return nil
		}
		return []string{b.Date.Weekday().String()}
	})

	out := make([]PeriodStat, 0, len(weekdayOrder))
	for _, d := range weekdayOrder {
		name := d.String()
		acc, ok := groups[name]
		if !ok {
			acc = &accumulator{}
		}
		out = append(out, PeriodStat{GroupStat: acc.stat(name), Label: name[:3]})
	}
	return out
}
