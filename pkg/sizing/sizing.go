// Package sizing turns a Kelly estimate into a concrete stake for a
// bookmaker balance.
package sizing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
)

var (
	ErrInvalidBankroll = errors.New("bankroll must be positive")
	ErrInvalidFraction = errors.New("kelly fraction must be between 0 and 1")
	ErrNoEdge          = errors.New("no edge: kelly fraction is zero")
)

// Warning thresholds
const (
	HighStakePct = 0.05 // share of bankroll
	LowEdgePct   = 2.0
	HighEdgePct  = 5.0
)

// Params controls how much of the Kelly fraction is applied
type Params struct {
	// Fraction of full Kelly to stake, in (0, 1]
	Fraction float64
	// MaxPct caps the applied share of bankroll; 0 disables the cap
	MaxPct float64
}

// Recommendation is a stake suggestion with the figures it was derived from
type Recommendation struct {
	Bookmaker      string          `json:"bookmaker,omitempty"`
	Bankroll       decimal.Decimal `json:"bankroll"`
	Stake          decimal.Decimal `json:"stake"`
	FullKellyStake decimal.Decimal `json:"full_kelly_stake"`
	AppliedPct     float64         `json:"applied_pct"`
	WinProbability float64         `json:"win_probability"`
	NetOdds        float64         `json:"net_odds"`
	EdgePercent    float64         `json:"edge_pct"`
	Confidence     string          `json:"confidence"`
	Explanation    string          `json:"explanation"`
	Warnings       []string        `json:"warnings"`
}

// SuggestStake sizes a bet at full Kelly, or at the quarter-Kelly
// recommendation when useFractional is set.
func SuggestStake(balance decimal.Decimal, estimate analytics.KellyEstimate, useFractional bool) (*Recommendation, error) {
	p := Params{Fraction: 1}
	if useFractional {
		p.Fraction = analytics.FractionalKellyMultiplier
	}
	return Suggest(balance, estimate, p)
}

// Suggest sizes a bet with explicit parameters
func Suggest(balance decimal.Decimal, estimate analytics.KellyEstimate, p Params) (*Recommendation, error) {
	if !balance.IsPositive() {
		return nil, ErrInvalidBankroll
	}
	if p.Fraction <= 0 || p.Fraction > 1 {
		return nil, ErrInvalidFraction
	}
	if estimate.Full <= 0 {
		return nil, ErrNoEdge
	}

	applied := estimate.Full * p.Fraction
	if p.MaxPct > 0 && applied > p.MaxPct {
		applied = p.MaxPct
	}

	stake := balance.Mul(decimal.NewFromFloat(applied)).Round(2)
	full := balance.Mul(decimal.NewFromFloat(estimate.Full)).Round(2)

	edgePct := analytics.ExpectedValue(estimate.WinProbability, estimate.NetOdds+1) * 100

	confidence := "medium"
	if edgePct > HighEdgePct {
		confidence = "high"
	} else if edgePct < LowEdgePct {
		confidence = "low"
	}

	warnings := []string{}
	if edgePct < LowEdgePct {
		warnings = append(warnings, "Edge is below 2% - consider passing")
	}
	if stake.GreaterThan(balance.Mul(decimal.NewFromFloat(HighStakePct))) {
		warnings = append(warnings, "Recommended bet is >5% of bankroll - high variance")
	}
	if estimate.Raw > analytics.KellyCap {
		warnings = append(warnings, fmt.Sprintf("Full Kelly %.1f%% capped at %.0f%%", estimate.Raw*100, analytics.KellyCap*100))
	}

	return &Recommendation{
		Bankroll:       balance,
		Stake:          stake,
		FullKellyStake: full,
		AppliedPct:     applied * 100,
		WinProbability: estimate.WinProbability,
		NetOdds:        estimate.NetOdds,
		EdgePercent:    edgePct,
		Confidence:     confidence,
		Explanation:    explain(p.Fraction),
		Warnings:       warnings,
	}, nil
}

func explain(fraction float64) string {
	if fraction >= 1 {
		return "Full Kelly sizing (aggressive)"
	}
	return fmt.Sprintf("1/%.0f Kelly sizing (conservative)", 1.0/fraction)
}
