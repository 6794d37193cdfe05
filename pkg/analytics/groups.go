package analytics

import (
	"math"
	"sort"
)

// Minimum sample sizes before a bucket is surfaced in a table
const (
	MinCategoryBets       = 3
	MinCategoryBetsStrict = 10
	MinOddsBucketBets     = 5
)

// GroupStat summarizes the bets sharing a key (category, bookmaker, ...)
type GroupStat struct {
	Key     string  `json:"key"`
	Bets    int     `json:"bets"`
	Wins    int     `json:"wins"`
	Staked  float64 `json:"staked"`
	Profit  float64 `json:"profit"`
	ROI     float64 `json:"roi"`
	HitRate float64 `json:"hit_rate"`
	AvgOdds float64 `json:"avg_odds"`
}

// accumulator collects per-bucket totals; ratios are derived on read
type accumulator struct {
	count     int
	wins      int
	staked    float64
	profit    float64
	oddsSum   float64
	oddsCount int
}

func (a *accumulator) add(b Bet) {
	a.count++
	a.staked += b.Stake
	a.profit += b.Profit
	if isWin(b) {
		a.wins++
	}
	if b.Odds > 0 {
		a.oddsSum += b.Odds
		a.oddsCount++
	}
}

func (a *accumulator) roi() float64     { return pct(a.profit, a.staked) }
func (a *accumulator) hitRate() float64 { return pct(float64(a.wins), float64(a.count)) }
func (a *accumulator) avgOdds() float64 { return safeDiv(a.oddsSum, float64(a.oddsCount)) }

func (a *accumulator) stat(key string) GroupStat {
	return GroupStat{
		Key:     key,
		Bets:    a.count,
		Wins:    a.wins,
		Staked:  a.staked,
		Profit:  a.profit,
		ROI:     a.roi(),
		HitRate: a.hitRate(),
		AvgOdds: a.avgOdds(),
	}
}

// groupBy accumulates resolved bets under every key returned by keys.
// A bet returning several keys contributes its full amounts to each.
func groupBy(bets []Bet, keys func(Bet) []string) map[string]*accumulator {
	groups := make(map[string]*accumulator)
	for _, b := range bets {
		if !b.Outcome.IsResolved() {
			continue
		}
		for _, k := range keys(b) {
			acc, ok := groups[k]
			if !ok {
				acc = &accumulator{}
				groups[k] = acc
			}
			acc.add(b)
		}
	}
	return groups
}

// rankGroups flattens groups meeting minBets, by profit descending then key
func rankGroups(groups map[string]*accumulator, minBets int) []GroupStat {
	out := make([]GroupStat, 0, len(groups))
	for k, acc := range groups {
		if acc.count < minBets {
			continue
		}
		out = append(out, acc.stat(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ByCategory aggregates resolved bets per category tag. A bet tagged with
// several categories counts in full towards each of them, so the category
// totals can exceed the grand total.
func ByCategory(bets []Bet, minBets int) []GroupStat {
	return rankGroups(groupBy(bets, func(b Bet) []string {
		return b.Categories
	}), minBets)
}

// ByBookmaker aggregates resolved bets per betting house
func ByBookmaker(bets []Bet, minBets int) []GroupStat {
	return rankGroups(groupBy(bets, func(b Bet) []string {
		if b.Bookmaker == "" {
			return nil
		}
		return []string{b.Bookmaker}
	}), minBets)
}

// Share is the portion of a dimension held by one key
type Share struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	Staked   float64 `json:"staked"`
	SharePct float64 `json:"share_pct"`
}

// BetTypeDistribution counts every bet (pending included) per bet type
func BetTypeDistribution(bets []Bet) []Share {
	counts := make(map[string]*Share)
	for _, b := range bets {
		key := b.Type
		if key == "" {
			key = "unknown"
		}
		s, ok := counts[key]
		if !ok {
			s = &Share{Key: key}
			counts[key] = s
		}
		s.Count++
		s.Staked += b.Stake
	}

	out := make([]Share, 0, len(counts))
	for _, s := range counts {
		s.SharePct = pct(float64(s.Count), float64(len(bets)))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// HistogramBin is one bar of an odds or stake histogram
type HistogramBin struct {
	Label  string  `json:"label"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"` // +Inf for the open-ended last bin
	Bets   int     `json:"bets"`
	Staked float64 `json:"staked"`
	Profit float64 `json:"profit"`
	ROI    float64 `json:"roi"`
}

// StakeEdges are the fixed lower bounds of the stake histogram bins
var StakeEdges = []float64{0, 10, 25, 50, 100, 250, 500}

// StakeHistogram buckets every bet by stake size
func StakeHistogram(bets []Bet) []HistogramBin {
	bins := make([]HistogramBin, len(StakeEdges))
	for i, low := range StakeEdges {
		high := math.Inf(1)
		if i+1 < len(StakeEdges) {
			high = StakeEdges[i+1]
		}
		bins[i] = HistogramBin{Label: rangeLabel(low, high, 0), Low: low, High: high}
	}

	for _, b := range bets {
		i := sort.SearchFloat64s(StakeEdges, b.Stake)
		if i == len(StakeEdges) || StakeEdges[i] != b.Stake {
			i--
		}
		if i < 0 {
			i = 0
		}
		bins[i].Bets++
		bins[i].Staked += b.Stake
		bins[i].Profit += b.Profit
	}

	for i := range bins {
		bins[i].ROI = pct(bins[i].Profit, bins[i].Staked)
	}
	return bins
}

// OddsHistogram buckets every bet carrying odds into fixed-width ranges
func OddsHistogram(bets []Bet, width float64) []HistogramBin {
	if width <= 0 {
		width = OddsWidthCoarse
	}

	byLow := make(map[float64]*HistogramBin)
	for _, b := range bets {
		if b.Odds <= 0 {
			continue
		}
		low := bucketLow(b.Odds, width)
		bin, ok := byLow[low]
		if !ok {
			bin = &HistogramBin{Label: rangeLabel(low, low+width, 2), Low: low, High: low + width}
			byLow[low] = bin
		}
		bin.Bets++
		bin.Staked += b.Stake
		bin.Profit += b.Profit
	}

	out := make([]HistogramBin, 0, len(byLow))
	for _, bin := range byLow {
		bin.ROI = pct(bin.Profit, bin.Staked)
		out = append(out, *bin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Low < out[j].Low })
	return out
}
