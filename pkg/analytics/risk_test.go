package analytics_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

func TestDrawdownSeries(t *testing.T) {
	series := analytics.DrawdownSeries(drawdownHistory())
	require.Len(t, series, 6)

	wantCum := []float64{100, 50, 20, 120, 100, 90}
	wantDD := []float64{0, 50, 80, 0, 100.0 / 6, 25}
	for i, p := range series {
		assert.InDelta(t, wantCum[i], p.Cumulative, 1e-9, "point %d", i)
		assert.InDelta(t, wantDD[i], p.DrawdownPct, 1e-9, "point %d", i)
	}

	assert.InDelta(t, 80, analytics.MaxDrawdown(series), 1e-9)
}

func TestDrawdownSeries_Invariant(t *testing.T) {
	bets := ingest(
		record(1, day(time.January, 1), 10, models.OutcomeLost, -10),
		record(2, day(time.January, 2), 10, models.OutcomeWon, 15),
		record(3, day(time.January, 3), 10, models.OutcomeCancelled, 0),
		record(4, day(time.January, 4), 10, models.OutcomeLost, -10),
		record(5, day(time.January, 5), 10, models.OutcomeWon, 30),
	)

	var prevPeak float64
	for _, p := range analytics.DrawdownSeries(bets) {
		assert.GreaterOrEqual(t, p.DrawdownPct, 0.0)
		assert.GreaterOrEqual(t, p.Peak, prevPeak)
		if p.Cumulative == p.Peak {
			assert.Equal(t, 0.0, p.DrawdownPct)
		}
		prevPeak = p.Peak
	}
}

func TestUlcerIndex(t *testing.T) {
	series := analytics.DrawdownSeries(drawdownHistory())
	dd := []float64{0, 50, 80, 0, 100.0 / 6, 25}
	var ss float64
	for _, d := range dd {
		ss += d * d
	}
	assert.InDelta(t, math.Sqrt(ss/6), analytics.UlcerIndex(series), 1e-9)
	assert.Equal(t, 0.0, analytics.UlcerIndex(nil))
}

func TestRecoveryTime(t *testing.T) {
	r := analytics.RecoveryTime(analytics.DrawdownSeries(drawdownHistory()))
	assert.Equal(t, 1, r.Episodes)
	assert.Equal(t, 2, r.MaxDays)
	assert.Equal(t, 1, r.CurrentDays)

	assert.Equal(t, analytics.Recovery{}, analytics.RecoveryTime(nil))
}

func TestValueAtRiskAndExpectedShortfall(t *testing.T) {
	returns := make([]float64, 20)
	for i := range returns {
		returns[19-i] = float64(i - 10)
	}

	assert.Equal(t, -9.0, analytics.ValueAtRisk(returns, analytics.VaRConfidence))
	assert.Equal(t, -10.0, analytics.ExpectedShortfall(returns, analytics.VaRConfidence))
	assert.Equal(t, 9.0, returns[0], "input is not sorted in place")

	small := []float64{5, -3, 8}
	assert.Equal(t, -3.0, analytics.ValueAtRisk(small, analytics.VaRConfidence))
	assert.Equal(t, 0.0, analytics.ExpectedShortfall(small, analytics.VaRConfidence))

	assert.Equal(t, 0.0, analytics.ValueAtRisk(nil, analytics.VaRConfidence))
	assert.Equal(t, 0.0, analytics.ExpectedShortfall(nil, analytics.VaRConfidence))
}

func TestKelly_Bounds(t *testing.T) {
	tests := []struct {
		name string
		p, b float64
		full float64
	}{
		{"Certain win, tiny odds", 1, 1e-9, analytics.KellyCap},
		{"Certain loss", 0, 2, 0},
		{"Probability above one", 1.5, 1e9, analytics.KellyCap},
		{"Negative probability", -0.2, 1, 0},
		{"Zero net odds", 0.5, 0, 0},
		{"Negative net odds", 0.5, -1, 0},
		{"Infinite odds", 0.5, math.Inf(1), 0},
		{"NaN probability", math.NaN(), 1, 0},
		{"Moderate edge", 0.6, 1, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := analytics.Kelly(tt.p, tt.b)
			assert.InDelta(t, tt.full, k.Full, 1e-9)
			assert.GreaterOrEqual(t, k.Full, 0.0)
			assert.LessOrEqual(t, k.Full, analytics.KellyCap)
			assert.InDelta(t, k.Full*analytics.FractionalKellyMultiplier, k.Fractional, 1e-12)
			assert.InDelta(t, k.Full*100, k.FullPct, 1e-9)
		})
	}
}

func TestKellyFromHistory(t *testing.T) {
	k := analytics.KellyFromHistory(scenarioD())
	assert.InDelta(t, 5.0/7, k.WinProbability, 1e-9)
	assert.InDelta(t, 1, k.NetOdds, 1e-9)
	assert.InDelta(t, 3.0/7, k.Raw, 1e-9)
	assert.Equal(t, analytics.KellyCap, k.Full)
	assert.InDelta(t, 0.0625, k.Fractional, 1e-12)

	assert.Equal(t, 0.0, analytics.KellyFromHistory(nil).Full)
}

func TestComputeRisk(t *testing.T) {
	bets := drawdownHistory()
	m := analytics.ComputeRisk(bets)

	// returns are +100, -100, -100, +100, -100, -100
	assert.InDelta(t, -100.0/3, m.MeanReturn, 1e-9)
	assert.InDelta(t, math.Sqrt(8)/3*100, m.Volatility, 1e-9)
	assert.InDelta(t, 100, m.DownsideDeviation, 1e-9)
	assert.InDelta(t, m.MeanReturn/m.Volatility, m.Sharpe, 1e-12)
	assert.InDelta(t, -1.0/3, m.Sortino, 1e-9)

	assert.InDelta(t, 80, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 80, m.MaxDrawdownAmount, 1e-9)
	assert.InDelta(t, 25, m.CurrentDrawdown, 1e-9)

	roi := 90.0 / 310 * 100
	assert.InDelta(t, roi/80, m.Calmar, 1e-9)
	assert.Equal(t, m.Calmar, m.MAR)

	assert.Equal(t, -100.0, m.VaR95)
	assert.Equal(t, 0.0, m.ExpectedShortfall)
	assert.Equal(t, 1, m.Recovery.Episodes)
}

func TestComputeRisk_ZeroGuards(t *testing.T) {
	assert.NotPanics(t, func() { analytics.ComputeRisk(nil) })

	empty := analytics.ComputeRisk(nil)
	assert.Equal(t, 0.0, empty.Sharpe)
	assert.Equal(t, 0.0, empty.Sortino)
	assert.Equal(t, 0.0, empty.Calmar)

	single := analytics.ComputeRisk(ingest(record(1, day(time.May, 1), 10, models.OutcomeWon, 10, withOdds(2.0))))
	assert.Equal(t, 0.0, single.Volatility)
	assert.Equal(t, 0.0, single.Sharpe)
	assert.Equal(t, 0.0, single.Sortino)
	assert.Equal(t, 0.0, single.MaxDrawdown)
	assert.Equal(t, 0.0, single.Calmar)

	zeroStake := analytics.ComputeRisk(ingest(
		record(1, day(time.May, 1), 0, models.OutcomeWon, 0),
		record(2, day(time.May, 2), 0, models.OutcomeLost, 0),
	))
	assert.Equal(t, 0.0, zeroStake.MeanReturn)
	assert.Equal(t, 0.0, zeroStake.VaR95)
}
