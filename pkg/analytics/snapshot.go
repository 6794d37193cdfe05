package analytics

import (
	"sync"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Snapshot ingests a batch of records once and computes each section at
// most once. A Snapshot is safe for concurrent use; new records need a new
// Snapshot.
type Snapshot struct {
	bets []Bet

	kpisOnce     sync.Once
	kpis         KPIs
	streaksOnce  sync.Once
	streaks      Streaks
	equityOnce   sync.Once
	equity       []EquityPoint
	riskOnce     sync.Once
	risk         RiskMetrics
	exposureOnce sync.Once
	exposure     Exposure
	temporalOnce sync.Once
	temporal     Temporal

	mu        sync.Mutex
	oddsByW   map[float64]OddsAnalysis
	catsByMin map[int][]GroupStat
}

// NewSnapshot normalizes records into a Snapshot
func NewSnapshot(records []models.Bet) *Snapshot {
	return FromBets(Ingest(records))
}

// FromBets wraps already normalized bets. The slice must not be modified
// afterwards.
func FromBets(bets []Bet) *Snapshot {
	return &Snapshot{
		bets:      bets,
		oddsByW:   make(map[float64]OddsAnalysis),
		catsByMin: make(map[int][]GroupStat),
	}
}

// Bets returns the normalized bets
func (s *Snapshot) Bets() []Bet { return s.bets }

func (s *Snapshot) KPIs() KPIs {
	s.kpisOnce.Do(func() { s.kpis = ComputeKPIs(s.bets, nil) })
	return s.kpis
}

func (s *Snapshot) Streaks() Streaks {
	s.streaksOnce.Do(func() { s.streaks = ComputeStreaks(s.bets) })
	return s.streaks
}

func (s *Snapshot) Equity() []EquityPoint {
	s.equityOnce.Do(func() { s.equity = EquityCurve(s.bets) })
	return s.equity
}

func (s *Snapshot) Risk() RiskMetrics {
	s.riskOnce.Do(func() { s.risk = ComputeRisk(s.bets) })
	return s.risk
}

func (s *Snapshot) Exposure() Exposure {
	s.exposureOnce.Do(func() { s.exposure = AnalyzeExposure(s.bets) })
	return s.exposure
}

func (s *Snapshot) Temporal() Temporal {
	s.temporalOnce.Do(func() { s.temporal = AnalyzeTemporal(s.bets) })
	return s.temporal
}

// Odds is memoized per bucket width
func (s *Snapshot) Odds(width float64) OddsAnalysis {
	if width <= 0 {
		width = OddsWidthCoarse
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.oddsByW[width]; ok {
		return a
	}
	a := AnalyzeOdds(s.bets, width)
	s.oddsByW[width] = a
	return a
}

// Categories is memoized per minimum sample size
func (s *Snapshot) Categories(minBets int) []GroupStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.catsByMin[minBets]; ok {
		return c
	}
	c := ByCategory(s.bets, minBets)
	s.catsByMin[minBets] = c
	return c
}

// Report assembles the full dashboard from the memoized sections
func (s *Snapshot) Report(opts Options) Report {
	if opts.Prior != nil {
		return Analyze(s.bets, opts)
	}
	if opts.MinCategoryBets <= 0 {
		opts.MinCategoryBets = MinCategoryBets
	}
	if opts.OddsWidth <= 0 {
		opts.OddsWidth = OddsWidthCoarse
	}

	return Report{
		KPIs:       s.KPIs(),
		Streaks:    s.Streaks(),
		Equity:     s.Equity(),
		Monthly:    Monthly(s.bets),
		Weekday:    Weekday(s.bets),
		Categories: s.Categories(opts.MinCategoryBets),
		Bookmakers: ByBookmaker(s.bets, 1),
		BetTypes:   BetTypeDistribution(s.bets),
		Stakes:     StakeHistogram(s.bets),
		OddsBins:   OddsHistogram(s.bets, opts.OddsWidth),
		Risk:       s.Risk(),
		Odds:       s.Odds(opts.OddsWidth),
		Exposure:   s.Exposure(),
		Temporal:   s.Temporal(),
	}
}
