package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/oddsmath"
)

// Odds bucket widths used by the dashboard views
const (
	OddsWidthFine   = 0.25
	OddsWidthCoarse = 0.5

	// ValueBetROI is the realized ROI (percent) above which a won bet counts
	// as a value bet
	ValueBetROI = 10.0
)

// OddsBucket is the performance of resolved bets within an odds range
type OddsBucket struct {
	Low                float64 `json:"low"`
	High               float64 `json:"high"`
	Label              string  `json:"label"`
	Bets               int     `json:"bets"`
	Wins               int     `json:"wins"`
	Staked             float64 `json:"staked"`
	Profit             float64 `json:"profit"`
	ROI                float64 `json:"roi"`
	WinProbability     float64 `json:"win_probability"`
	ImpliedProbability float64 `json:"implied_probability"`
	AvgOdds            float64 `json:"avg_odds"`
	EV                 float64 `json:"ev"`
	EdgePct            float64 `json:"edge_pct"`
	Qualified          bool    `json:"qualified"`
}

// Projection estimates what concentrating on the sweet spot would have returned
type Projection struct {
	OptimalOdds     float64 `json:"optimal_odds"`
	ProjectedROI    float64 `json:"projected_roi"`
	ProjectedProfit float64 `json:"projected_profit"`
}

// OddsAnalysis is the market-side view of the bet history
type OddsAnalysis struct {
	Width        float64      `json:"width"`
	Buckets      []OddsBucket `json:"buckets"`
	ValueBets    int          `json:"value_bets"`
	ValueBetRate float64      `json:"value_bet_rate"`
	SweetSpot    *OddsBucket  `json:"sweet_spot"`
	Projection   *Projection  `json:"projection"`
	BrierScore   float64      `json:"brier_score"`
}

// AnalyzeOdds buckets resolved bets by odds into fixed-width ranges and
// evaluates each range. Only buckets with at least MinOddsBucketBets bets
// are Qualified and eligible as sweet spot.
func AnalyzeOdds(bets []Bet, width float64) OddsAnalysis {
	if width <= 0 {
		width = OddsWidthCoarse
	}
	resolved := SortByDate(Resolved(bets))

	a := OddsAnalysis{Width: width}

	byLow := make(map[float64]*accumulator)
	for _, b := range resolved {
		if b.Outcome == models.OutcomeWon && ReturnPct(b) > ValueBetROI {
			a.ValueBets++
		}
		if b.Odds <= 0 {
			continue
		}
		low := bucketLow(b.Odds, width)
		acc, ok := byLow[low]
		if !ok {
			acc = &accumulator{}
			byLow[low] = acc
		}
		acc.add(b)
	}
	a.ValueBetRate = pct(float64(a.ValueBets), float64(len(resolved)))

	lows := make([]float64, 0, len(byLow))
	for low := range byLow {
		lows = append(lows, low)
	}
	sort.Float64s(lows)

	a.Buckets = make([]OddsBucket, 0, len(lows))
	for _, low := range lows {
		a.Buckets = append(a.Buckets, newOddsBucket(low, width, byLow[low]))
	}

	for i := range a.Buckets {
		bk := a.Buckets[i]
		if !bk.Qualified {
			continue
		}
		if a.SweetSpot == nil || bk.ROI > a.SweetSpot.ROI {
			a.SweetSpot = &a.Buckets[i]
		}
	}

	if a.SweetSpot != nil {
		var staked float64
		for _, b := range resolved {
			staked += b.Stake
		}
		a.Projection = &Projection{
			OptimalOdds:     (a.SweetSpot.Low + a.SweetSpot.High) / 2,
			ProjectedROI:    a.SweetSpot.ROI,
			ProjectedProfit: staked * a.SweetSpot.ROI / 100,
		}
	}

	a.BrierScore = brierScore(resolved, width, a.Buckets)
	return a
}

func newOddsBucket(low, width float64, acc *accumulator) OddsBucket {
	p := safeDiv(float64(acc.wins), float64(acc.count))
	avgOdds := acc.avgOdds()

	implied, err := oddsmath.DecimalToImpliedProbability(avgOdds)
	if err != nil {
		implied = 0
	}
	edge, err := oddsmath.CalculateEdge(p, implied)
	if err != nil {
		edge = 0
	}

	return OddsBucket{
		Low:                low,
		High:               low + width,
		Label:              rangeLabel(low, low+width, 2),
		Bets:               acc.count,
		Wins:               acc.wins,
		Staked:             acc.staked,
		Profit:             acc.profit,
		ROI:                acc.roi(),
		WinProbability:     p,
		ImpliedProbability: implied,
		AvgOdds:            avgOdds,
		EV:                 ExpectedValue(p, avgOdds),
		EdgePct:            edge * 100,
		Qualified:          acc.count >= MinOddsBucketBets,
	}
}

// ExpectedValue per unit staked for win probability p at decimal odds
func ExpectedValue(p, odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return p*(odds-1) - (1 - p)
}

// brierScore compares each decided bet's bucket-implied probability
// (1 / bucket average odds) with its realized outcome.
func brierScore(resolved []Bet, width float64, buckets []OddsBucket) float64 {
	implied := make(map[float64]float64, len(buckets))
	for _, bk := range buckets {
		implied[bk.Low] = bk.ImpliedProbability
	}

	var sum float64
	var n int
	for _, b := range resolved {
		if b.Odds <= 0 || b.Outcome == models.OutcomeCancelled {
			continue
		}
		outcome := 0.0
		if isWin(b) {
			outcome = 1
		}
		d := implied[bucketLow(b.Odds, width)] - outcome
		sum += d * d
		n++
	}
	return safeDiv(sum, float64(n))
}

// bucketLow returns the lower bound of the fixed-width range holding odds
func bucketLow(odds, width float64) float64 {
	return math.Floor(odds/width+1e-9) * width
}

func rangeLabel(low, high float64, precision int) string {
	if math.IsInf(high, 1) {
		return fmt.Sprintf("%.*f+", precision, low)
	}
	return fmt.Sprintf("%.*f-%.*f", precision, low, precision, high)
}
