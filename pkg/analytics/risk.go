package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Kelly sizing bounds
const (
	KellyCap                  = 0.25 // full Kelly is clamped to [0, KellyCap]
	FractionalKellyMultiplier = 0.25 // conservative recommendation: quarter Kelly
	VaRConfidence             = 0.95
)

// DrawdownPoint is one step of the running drawdown series
type DrawdownPoint struct {
	BetID       int64     `json:"bet_id"`
	Date        time.Time `json:"date"`
	Cumulative  float64   `json:"cumulative"`
	Peak        float64   `json:"peak"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// DrawdownSeries accumulates profit over resolved bets in date order and
// measures the decline from the running peak. The peak starts at zero and
// never decreases; while it is not positive the drawdown is reported as 0.
func DrawdownSeries(bets []Bet) []DrawdownPoint {
	resolved := SortByDate(Resolved(bets))
	series := make([]DrawdownPoint, 0, len(resolved))

	var cum, peak float64
	for _, b := range resolved {
		cum += b.Profit
		if cum > peak {
			peak = cum
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - cum) / peak * 100
		}
		series = append(series, DrawdownPoint{
			BetID:       b.ID,
			Date:        b.Date,
			Cumulative:  cum,
			Peak:        peak,
			DrawdownPct: dd,
		})
	}
	return series
}

// MaxDrawdown returns the deepest drawdown of a series, in percent
func MaxDrawdown(series []DrawdownPoint) float64 {
	var max float64
	for _, p := range series {
		if p.DrawdownPct > max {
			max = p.DrawdownPct
		}
	}
	return max
}

// UlcerIndex is the root mean square of the drawdown series
func UlcerIndex(series []DrawdownPoint) float64 {
	dds := make([]float64, len(series))
	for i, p := range series {
		dds[i] = p.DrawdownPct
	}
	return rootMeanSquare(dds)
}

// Recovery describes how long the history spent under water
type Recovery struct {
	MaxDays     int `json:"max_days"`     // longest completed episode
	CurrentDays int `json:"current_days"` // open episode at the end of the history, 0 if none
	Episodes    int `json:"episodes"`     // completed episodes
}

// RecoveryTime measures drawdown episodes: an episode opens when the
// cumulative profit first drops below the running peak and closes on the
// date it gets back to that peak.
func RecoveryTime(series []DrawdownPoint) Recovery {
	var r Recovery
	var inEpisode bool
	var start time.Time
	var target float64
	var prevPeak float64

	for _, p := range series {
		if !inEpisode {
			if p.Cumulative < prevPeak {
				inEpisode = true
				start = p.Date
				target = prevPeak
			}
		} else if p.Cumulative >= target {
			inEpisode = false
			r.Episodes++
			if d := daysBetween(start, p.Date); d > r.MaxDays {
				r.MaxDays = d
			}
		}
		prevPeak = p.Peak
	}

	if inEpisode && len(series) > 0 {
		r.CurrentDays = daysBetween(start, series[len(series)-1].Date)
	}
	return r
}

// Returns lists the per-bet return percentage of resolved bets in date order
func Returns(bets []Bet) []float64 {
	resolved := SortByDate(Resolved(bets))
	out := make([]float64, len(resolved))
	for i, b := range resolved {
		out[i] = ReturnPct(b)
	}
	return out
}

// ValueAtRisk returns the historical VaR of a return distribution at the
// given confidence, i.e. the value at index floor(n*(1-confidence)) of the
// ascending returns.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	sorted, idx := tailIndex(returns, confidence)
	if len(sorted) == 0 {
		return 0
	}
	return sorted[idx]
}

// ExpectedShortfall is the mean of the returns strictly below the VaR index
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	sorted, idx := tailIndex(returns, confidence)
	return mean(sorted[:idx])
}

// tailIndex sorts a copy of returns and picks index floor(n*(1-confidence)),
// clamped to the slice. No interpolation between neighbours: at 95% a
// 20-bet history reports its second-worst return.
func tailIndex(returns []float64, confidence float64) ([]float64, int) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * (1 - confidence)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted, idx
}

// KellyEstimate is the Kelly stake fraction for a win probability and net odds
type KellyEstimate struct {
	WinProbability float64 `json:"win_probability"`
	NetOdds        float64 `json:"net_odds"`
	Raw            float64 `json:"raw"`
	Full           float64 `json:"full"`
	Fractional     float64 `json:"fractional"`
	FullPct        float64 `json:"full_pct"`
	FractionalPct  float64 `json:"fractional_pct"`
}

// Kelly computes f = (p*b - (1-p)) / b with b the net odds (decimal odds - 1).
// The full fraction is clamped to [0, KellyCap]; Fractional is the
// quarter-Kelly recommendation derived from it.
func Kelly(p, b float64) KellyEstimate {
	p = math.Max(0, math.Min(1, p))
	est := KellyEstimate{WinProbability: p, NetOdds: b}

	if b <= 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return est
	}

	raw := (p*b - (1 - p)) / b
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return est
	}

	est.Raw = raw
	est.Full = math.Max(0, math.Min(KellyCap, raw))
	est.Fractional = est.Full * FractionalKellyMultiplier
	est.FullPct = est.Full * 100
	est.FractionalPct = est.Fractional * 100
	return est
}

// KellyFromHistory estimates p as the share of won bets among decided
// (non-cancelled) resolved bets, and b from the average odds of won bets.
func KellyFromHistory(bets []Bet) KellyEstimate {
	var decided, won int
	var winOddsSum float64
	var winOddsCount int

	for _, b := range bets {
		switch b.Outcome {
		case models.OutcomeWon:
			won++
			decided++
			if b.Odds > 0 {
				winOddsSum += b.Odds
				winOddsCount++
			}
		case models.OutcomeLost, models.OutcomeCashedOut:
			decided++
		}
	}

	p := safeDiv(float64(won), float64(decided))
	avgWinOdds := safeDiv(winOddsSum, float64(winOddsCount))
	if avgWinOdds == 0 {
		return Kelly(p, 0)
	}
	return Kelly(p, avgWinOdds-1)
}

// RiskMetrics bundles the risk-adjusted performance figures
type RiskMetrics struct {
	Drawdown          []DrawdownPoint `json:"drawdown"`
	MaxDrawdown       float64         `json:"max_drawdown"`
	MaxDrawdownAmount float64         `json:"max_drawdown_amount"`
	CurrentDrawdown   float64         `json:"current_drawdown"`
	MeanReturn        float64         `json:"mean_return"`
	Volatility        float64         `json:"volatility"`
	DownsideDeviation float64         `json:"downside_deviation"`
	Sharpe            float64         `json:"sharpe"`
	Sortino           float64         `json:"sortino"`
	Calmar            float64         `json:"calmar"`
	MAR               float64         `json:"mar"`
	UlcerIndex        float64         `json:"ulcer_index"`
	VaR95             float64         `json:"var_95"`
	ExpectedShortfall float64         `json:"expected_shortfall"`
	Kelly             KellyEstimate   `json:"kelly"`
	Recovery          Recovery        `json:"recovery"`
}

// ComputeRisk derives every risk metric from the resolved bets. The Sharpe
// ratio here is mean return over volatility with no risk-free rate.
func ComputeRisk(bets []Bet) RiskMetrics {
	series := DrawdownSeries(bets)
	returns := Returns(bets)

	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}

	var staked, profit float64
	for _, b := range Resolved(bets) {
		staked += b.Stake
		profit += b.Profit
	}
	roi := pct(profit, staked)

	m := RiskMetrics{
		Drawdown:          series,
		MaxDrawdown:       MaxDrawdown(series),
		MeanReturn:        mean(returns),
		Volatility:        stdDev(returns),
		DownsideDeviation: rootMeanSquare(negatives),
		UlcerIndex:        UlcerIndex(series),
		VaR95:             ValueAtRisk(returns, VaRConfidence),
		ExpectedShortfall: ExpectedShortfall(returns, VaRConfidence),
		Kelly:             KellyFromHistory(bets),
		Recovery:          RecoveryTime(series),
	}

	for _, p := range series {
		if amt := p.Peak - p.Cumulative; amt > m.MaxDrawdownAmount {
			m.MaxDrawdownAmount = amt
		}
	}
	if len(series) > 0 {
		m.CurrentDrawdown = series[len(series)-1].DrawdownPct
	}

	m.Sharpe = safeDiv(m.MeanReturn, m.Volatility)
	m.Sortino = safeDiv(m.MeanReturn, m.DownsideDeviation)
	m.Calmar = safeDiv(roi, m.MaxDrawdown)
	m.MAR = m.Calmar
	return m
}
