package analytics

import "sort"

// Dimension names accepted by Concentration
const (
	DimensionBookmaker = "bookmaker"
	DimensionCategory  = "category"
)

// Momentum thresholds and window size
const (
	MomentumWindow    = 10
	MomentumThreshold = 10.0 // percentage points

	SignalHot     = "Hot"
	SignalCold    = "Cold"
	SignalNeutral = "Neutral"
)

// Concentration levels on the 0-100 HHI scale
const (
	LevelDiversified  = "Diversified"
	LevelModerate     = "Moderate"
	LevelConcentrated = "Concentrated"
)

// ConcentrationReport is the Herfindahl-Hirschman index of stake exposure
// across one dimension
type ConcentrationReport struct {
	Dimension string  `json:"dimension"`
	HHI       float64 `json:"hhi"`
	Level     string  `json:"level"`
	Shares    []Share `json:"shares"`
}

// Concentration computes HHI = sum(share^2) * 100 over every bet's stake,
// pending bets included. For categories each tag receives the full stake
// and shares are taken over the sum of tag stakes.
func Concentration(bets []Bet, dimension string) ConcentrationReport {
	keysOf := func(b Bet) []string {
		if b.Bookmaker == "" {
			return nil
		}
		return []string{b.Bookmaker}
	}
	if dimension == DimensionCategory {
		keysOf = func(b Bet) []string { return b.Categories }
	}

	byKey := make(map[string]*Share)
	var total float64
	for _, b := range bets {
		for _, k := range keysOf(b) {
			s, ok := byKey[k]
			if !ok {
				s = &Share{Key: k}
				byKey[k] = s
			}
			s.Count++
			s.Staked += b.Stake
			total += b.Stake
		}
	}

	r := ConcentrationReport{Dimension: dimension, Shares: make([]Share, 0, len(byKey))}
	for _, s := range byKey {
		share := safeDiv(s.Staked, total)
		s.SharePct = share * 100
		r.HHI += share * share
		r.Shares = append(r.Shares, *s)
	}
	r.HHI *= 100

	sort.Slice(r.Shares, func(i, j int) bool {
		if r.Shares[i].Staked != r.Shares[j].Staked {
			return r.Shares[i].Staked > r.Shares[j].Staked
		}
		return r.Shares[i].Key < r.Shares[j].Key
	})

	switch {
	case r.HHI < 15:
		r.Level = LevelDiversified
	case r.HHI < 25:
		r.Level = LevelModerate
	default:
		r.Level = LevelConcentrated
	}
	return r
}

// StakeReturnCorrelation is the Pearson correlation between stake and
// return percentage across resolved bets
func StakeReturnCorrelation(bets []Bet) float64 {
	resolved := SortByDate(Resolved(bets))
	stakes := make([]float64, len(resolved))
	returns := make([]float64, len(resolved))
	for i, b := range resolved {
		stakes[i] = b.Stake
		returns[i] = ReturnPct(b)
	}
	return pearson(stakes, returns)
}

// Momentum compares the hit rate of the latest window of resolved bets
// with the window before it
type Momentum struct {
	Recent   float64 `json:"recent"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
	Signal   string  `json:"signal"`
}

// ComputeMomentum classifies the recent form as Hot, Cold or Neutral
func ComputeMomentum(bets []Bet) Momentum {
	resolved := SortByDate(Resolved(bets))
	n := len(resolved)

	recentStart := n - MomentumWindow
	if recentStart < 0 {
		recentStart = 0
	}
	prevStart := recentStart - MomentumWindow
	if prevStart < 0 {
		prevStart = 0
	}

	m := Momentum{
		Recent:   windowHitRate(resolved[recentStart:]),
		Previous: windowHitRate(resolved[prevStart:recentStart]),
	}
	m.Delta = m.Recent - m.Previous

	switch {
	case m.Delta > MomentumThreshold:
		m.Signal = SignalHot
	case m.Delta < -MomentumThreshold:
		m.Signal = SignalCold
	default:
		m.Signal = SignalNeutral
	}
	return m
}

func windowHitRate(window []Bet) float64 {
	var wins int
	for _, b := range window {
		if isWin(b) {
			wins++
		}
	}
	return pct(float64(wins), float64(len(window)))
}

// BonusImpactReport sets the KPIs of promoted bets (bonus or turbo) side
// by side with the regular ones
type BonusImpactReport struct {
	Boosted  KPIs    `json:"boosted"`
	Regular  KPIs    `json:"regular"`
	ROIDelta float64 `json:"roi_delta"`
	// BoostProfit is the settled profit of won promoted bets above what
	// their odds alone would have paid
	BoostProfit float64 `json:"boost_profit"`
}

// BonusImpact partitions bets by promotion and recomputes the KPIs of each side
func BonusImpact(bets []Bet) BonusImpactReport {
	var boosted, regular []Bet
	var boostProfit float64

	for _, b := range bets {
		if !IsBoosted(b) {
			regular = append(regular, b)
			continue
		}
		boosted = append(boosted, b)
		if isWin(b) && b.Odds > 0 {
			boostProfit += b.Profit - b.Stake*(b.Odds-1)
		}
	}

	r := BonusImpactReport{
		Boosted:     ComputeKPIs(boosted, nil),
		Regular:     ComputeKPIs(regular, nil),
		BoostProfit: boostProfit,
	}
	r.ROIDelta = r.Boosted.ROI - r.Regular.ROI
	return r
}
