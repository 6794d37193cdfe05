package analytics

import (
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Status labels for ROI and hit rate
const (
	StatusExcellent = "Excellent"
	StatusPositive  = "Positive"
	StatusNegative  = "Negative"
	StatusGood      = "Good"
	StatusBelow     = "Below"
)

// BetRef points at the bet behind a best/worst figure
type BetRef struct {
	BetID  int64     `json:"bet_id"`
	Match  string    `json:"match"`
	Date   time.Time `json:"date"`
	Profit float64   `json:"profit"`
}

// Comparison is the variance of the current period against a prior one
type Comparison struct {
	PriorNetProfit  float64 `json:"prior_net_profit"`
	PriorStaked     float64 `json:"prior_staked"`
	ProfitChangePct float64 `json:"profit_change_pct"`
	StakedChangePct float64 `json:"staked_change_pct"`
	ROIChange       float64 `json:"roi_change"`      // percentage points
	HitRateChange   float64 `json:"hit_rate_change"` // percentage points
}

// KPIs are the headline figures of a bet history
type KPIs struct {
	TotalBets     int `json:"total_bets"`
	ResolvedBets  int `json:"resolved_bets"`
	PendingBets   int `json:"pending_bets"`
	WonBets       int `json:"won_bets"`
	LostBets      int `json:"lost_bets"`
	CancelledBets int `json:"cancelled_bets"`
	CashedOutBets int `json:"cashed_out_bets"`

	TotalStaked     float64 `json:"total_staked"`
	ResolvedStaked  float64 `json:"resolved_staked"`
	PendingStaked   float64 `json:"pending_staked"`
	PotentialProfit float64 `json:"potential_profit"`
	NetProfit       float64 `json:"net_profit"`
	ROI             float64 `json:"roi"`
	HitRate         float64 `json:"hit_rate"`
	AvgStake        float64 `json:"avg_stake"`
	AvgProfit       float64 `json:"avg_profit"`

	BestBet  *BetRef `json:"best_bet"`
	WorstBet *BetRef `json:"worst_bet"`

	AvgOdds float64 `json:"avg_odds"`
	MinOdds float64 `json:"min_odds"`
	MaxOdds float64 `json:"max_odds"`

	ActiveDays int     `json:"active_days"`
	BetsPerDay float64 `json:"bets_per_day"`

	ROIStatus     string `json:"roi_status"`
	HitRateStatus string `json:"hit_rate_status"`

	Comparison *Comparison `json:"comparison,omitempty"`
}

// ComputeKPIs derives the headline figures. prior is optional; when it is
// not nil the result carries a Comparison against it.
func ComputeKPIs(bets []Bet, prior []Bet) KPIs {
	k := coreKPIs(bets)
	if prior != nil {
		p := coreKPIs(prior)
		k.Comparison = &Comparison{
			PriorNetProfit:  p.NetProfit,
			PriorStaked:     p.TotalStaked,
			ProfitChangePct: changePct(k.NetProfit, p.NetProfit),
			StakedChangePct: changePct(k.TotalStaked, p.TotalStaked),
			ROIChange:       k.ROI - p.ROI,
			HitRateChange:   k.HitRate - p.HitRate,
		}
	}
	return k
}

func coreKPIs(bets []Bet) KPIs {
	k := KPIs{TotalBets: len(bets)}

	days := make(map[time.Time]struct{})
	var oddsSum float64
	var oddsCount int

	for _, b := range bets {
		k.TotalStaked += b.Stake
		if !b.Date.IsZero() {
			days[b.Date] = struct{}{}
		}

		if b.Odds > 0 {
			oddsSum += b.Odds
			if oddsCount == 0 || b.Odds < k.MinOdds {
				k.MinOdds = b.Odds
			}
			if b.Odds > k.MaxOdds {
				k.MaxOdds = b.Odds
			}
			oddsCount++
		}

		switch b.Outcome {
		case models.OutcomePending:
			k.PendingBets++
			k.PendingStaked += b.Stake
			k.PotentialProfit += ProjectedProfit(b)
			continue
		case models.OutcomeWon:
			k.WonBets++
		case models.OutcomeLost:
			k.LostBets++
		case models.OutcomeCancelled:
			k.CancelledBets++
		case models.OutcomeCashedOut:
			k.CashedOutBets++
		default:
			continue
		}

		k.ResolvedBets++
		k.ResolvedStaked += b.Stake
		k.NetProfit += b.Profit

		if k.BestBet == nil || b.Profit > k.BestBet.Profit {
			k.BestBet = refOf(b)
		}
		if k.WorstBet == nil || b.Profit < k.WorstBet.Profit {
			k.WorstBet = refOf(b)
		}
	}

	k.ROI = pct(k.NetProfit, k.ResolvedStaked)
	k.HitRate = pct(float64(k.WonBets), float64(k.ResolvedBets))
	k.AvgStake = safeDiv(k.TotalStaked, float64(k.TotalBets))
	k.AvgProfit = safeDiv(k.NetProfit, float64(k.ResolvedBets))
	k.AvgOdds = safeDiv(oddsSum, float64(oddsCount))
	k.ActiveDays = len(days)
	k.BetsPerDay = safeDiv(float64(k.TotalBets), float64(k.ActiveDays))
	k.ROIStatus = ROIStatus(k.ROI)
	k.HitRateStatus = HitRateStatus(k.HitRate)
	return k
}

// ROIStatus classifies a ROI percentage
func ROIStatus(roi float64) string {
	switch {
	case roi >= 5:
		return StatusExcellent
	case roi >= 0:
		return StatusPositive
	default:
		return StatusNegative
	}
}

// HitRateStatus classifies a hit rate percentage
func HitRateStatus(hitRate float64) string {
	switch {
	case hitRate >= 60:
		return StatusExcellent
	case hitRate >= 50:
		return StatusGood
	default:
		return StatusBelow
	}
}

func refOf(b Bet) *BetRef {
	return &BetRef{BetID: b.ID, Match: b.Match, Date: b.Date, Profit: b.Profit}
}
