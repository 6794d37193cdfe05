package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// NoData is the label of a Best entry when its dimension is empty
const NoData = "—"

// Best is the winning entry of one temporal dimension
type Best struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

var noBest = Best{Label: NoData, Value: 0}

// HeatmapCell is the performance of one (year, month) pair
type HeatmapCell struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Bets   int     `json:"bets"`
	Staked float64 `json:"staked"`
	Profit float64 `json:"profit"`
	ROI    float64 `json:"roi"`
}

// Temporal groups resolved bets along calendar dimensions
type Temporal struct {
	Weekdays []PeriodStat  `json:"weekdays"`
	Hours    []PeriodStat  `json:"hours"`
	Months   []PeriodStat  `json:"months"`
	Heatmap  []HeatmapCell `json:"heatmap"`

	BestDay     Best `json:"best_day"`     // max profit
	BestMonth   Best `json:"best_month"`   // max profit
	BestWeekday Best `json:"best_weekday"` // max ROI
	BestHour    Best `json:"best_hour"`    // max ROI

	ActivityStreak int `json:"activity_streak"`
}

// AnalyzeTemporal builds every temporal view. Hours only include bets with
// a known placement time; the activity streak looks at all bets.
func AnalyzeTemporal(bets []Bet) Temporal {
	t := Temporal{
		Weekdays: Weekday(bets),
		Hours:    hourly(bets),
		Months:   byMonthName(bets),
		Heatmap:  Heatmap(bets),
	}

	days := groupBy(bets, func(b Bet) []string {
		if b.Date.IsZero() {
			return nil
		}
		return []string{b.Date.Format(models.DateLayout)}
	})
	t.BestDay = bestOf(days, func(a *accumulator) float64 { return a.profit })

	months := groupBy(bets, func(b Bet) []string {
		if b.Date.IsZero() {
			return nil
		}
		return []string{b.Date.Format("2006-01")}
	})
	t.BestMonth = bestOf(months, func(a *accumulator) float64 { return a.profit })

	t.BestWeekday = bestPeriod(t.Weekdays)
	t.BestHour = bestPeriod(t.Hours)
	t.ActivityStreak = ActivityStreak(bets)
	return t
}

// Heatmap aggregates resolved bets per (year, month), oldest first
func Heatmap(bets []Bet) []HeatmapCell {
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

	cells := make([]HeatmapCell, 0, len(keys))
	for _, k := range keys {
		ym, _ := time.Parse("2006-01", k)
		acc := groups[k]
		cells = append(cells, HeatmapCell{
			Year:   ym.Year(),
			Month:  int(ym.Month()),
			Bets:   acc.count,
			Staked: acc.staked,
			Profit: acc.profit,
			ROI:    acc.roi(),
		})
	}
	return cells
}

// ActivityStreak counts consecutive active days ending at the most recent
// bet date. Any gap other than exactly one day ends the streak.
func ActivityStreak(bets []Bet) int {
	seen := make(map[time.Time]struct{})
	for _, b := range bets {
		if !b.Date.IsZero() {
			seen[b.Date] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	streak := 1
	for i := 1; i < len(dates); i++ {
		if daysBetween(dates[i], dates[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

func hourly(bets []Bet) []PeriodStat {
	groups := groupBy(bets, func(b Bet) []string {
		if b.Hour < 0 {
			return nil
		}
		return []string{fmt.Sprintf("%02d", b.Hour)}
	})

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PeriodStat, 0, len(keys))
	for _, k := range keys {
		out = append(out, PeriodStat{GroupStat: groups[k].stat(k), Label: k + ":00"})
	}
	return out
}

// byMonthName folds every year onto January..December; months without
// bets are omitted
func byMonthName(bets []Bet) []PeriodStat {
	groups := groupBy(bets, func(b Bet) []string {
		if b.Date.IsZero() {
			return nil
		}
		return []string{b.Date.Month().String()}
	})

	out := make([]PeriodStat, 0, len(groups))
	for m := time.January; m <= time.December; m++ {
		acc, ok := groups[m.String()]
		if !ok {
			continue
		}
		out = append(out, PeriodStat{GroupStat: acc.stat(m.String()), Label: m.String()[:3]})
	}
	return out
}

// bestOf picks the key with the highest value, ties resolved by key order
func bestOf(groups map[string]*accumulator, value func(*accumulator) float64) Best {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := noBest
	found := false
	for _, k := range keys {
		v := value(groups[k])
		if !found || v > best.Value {
			best = Best{Label: k, Value: v}
			found = true
		}
	}
	return best
}

// bestPeriod picks the period with the highest ROI among those with bets
func bestPeriod(periods []PeriodStat) Best {
	best := noBest
	found := false
	for _, p := range periods {
		if p.Bets == 0 {
			continue
		}
		if !found || p.ROI > best.Value {
			best = Best{Label: p.Label, Value: p.ROI}
			found = true
		}
	}
	return best
}
