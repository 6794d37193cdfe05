package analytics

// Options tunes Analyze
type Options struct {
	// Prior enables the KPI comparison when not nil
	Prior           []Bet
	MinCategoryBets int
	OddsWidth       float64
}

// DefaultOptions returns the dashboard defaults
func DefaultOptions() Options {
	return Options{
		MinCategoryBets: MinCategoryBets,
		OddsWidth:       OddsWidthCoarse,
	}
}

// Exposure bundles the concentration and pattern views
type Exposure struct {
	Bookmakers             ConcentrationReport `json:"bookmakers"`
	Categories             ConcentrationReport `json:"categories"`
	StakeReturnCorrelation float64             `json:"stake_return_correlation"`
	Momentum               Momentum            `json:"momentum"`
	BonusImpact            BonusImpactReport   `json:"bonus_impact"`
}

// AnalyzeExposure computes every exposure view over the same bets
func AnalyzeExposure(bets []Bet) Exposure {
	return Exposure{
		Bookmakers:             Concentration(bets, DimensionBookmaker),
		Categories:             Concentration(bets, DimensionCategory),
		StakeReturnCorrelation: StakeReturnCorrelation(bets),
		Momentum:               ComputeMomentum(bets),
		BonusImpact:            BonusImpact(bets),
	}
}

// Report is the whole dashboard for one bet history
type Report struct {
	KPIs       KPIs           `json:"kpis"`
	Streaks    Streaks        `json:"streaks"`
	Equity     []EquityPoint  `json:"equity"`
	Monthly    []PeriodStat   `json:"monthly"`
	Weekday    []PeriodStat   `json:"weekday"`
	Categories []GroupStat    `json:"categories"`
	Bookmakers []GroupStat    `json:"bookmakers"`
	BetTypes   []Share        `json:"bet_types"`
	Stakes     []HistogramBin `json:"stakes"`
	OddsBins   []HistogramBin `json:"odds_bins"`
	Risk       RiskMetrics    `json:"risk"`
	Odds       OddsAnalysis   `json:"odds"`
	Exposure   Exposure       `json:"exposure"`
	Temporal   Temporal       `json:"temporal"`
}

// Analyze runs every metric over bets. Zero-valued options fall back to
// DefaultOptions.
func Analyze(bets []Bet, opts Options) Report {
	if opts.MinCategoryBets <= 0 {
		opts.MinCategoryBets = MinCategoryBets
	}
	if opts.OddsWidth <= 0 {
		opts.OddsWidth = OddsWidthCoarse
	}

	return Report{
		KPIs:       ComputeKPIs(bets, opts.Prior),
		Streaks:    ComputeStreaks(bets),
		Equity:     EquityCurve(bets),
		Monthly:    Monthly(bets),
		Weekday:    Weekday(bets),
		Categories: ByCategory(bets, opts.MinCategoryBets),
		Bookmakers: ByBookmaker(bets, 1),
		BetTypes:   BetTypeDistribution(bets),
		Stakes:     StakeHistogram(bets),
		OddsBins:   OddsHistogram(bets, opts.OddsWidth),
		Risk:       ComputeRisk(bets),
		Odds:       AnalyzeOdds(bets, opts.OddsWidth),
		Exposure:   AnalyzeExposure(bets),
		Temporal:   AnalyzeTemporal(bets),
	}
}
