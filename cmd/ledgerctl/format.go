package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/oddsmath"
)

const (
	formatTable = "table"
	formatJSON  = "json"

	sectionAll = "all"
)

var sections = []string{"kpis", "streaks", "risk", "odds", "categories", "bookmakers", "monthly", "exposure", "temporal"}

func validSection(name string) bool {
	if name == sectionAll {
		return true
	}
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}

func sectionData(report analytics.Report, name string) interface{} {
	switch name {
	case "kpis":
		return report.KPIs
	case "streaks":
		return report.Streaks
	case "risk":
		return report.Risk
	case "odds":
		return report.Odds
	case "categories":
		return report.Categories
	case "bookmakers":
		return report.Bookmakers
	case "monthly":
		return report.Monthly
	case "exposure":
		return report.Exposure
	case "temporal":
		return report.Temporal
	}
	return report
}

func render(w io.Writer, report analytics.Report, section, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sectionData(report, section))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	names := sections
	if section != sectionAll {
		names = []string{section}
	}
	for i, name := range names {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		writeSection(tw, report, name)
	}

	return tw.Flush()
}

func writeSection(w io.Writer, report analytics.Report, name string) {
	switch name {
	case "kpis":
		writeKPIs(w, report.KPIs)
	case "streaks":
		fmt.Fprintln(w, "STREAKS")
		fmt.Fprintf(w, "Longest win\t%d\n", report.Streaks.LongestWin)
		fmt.Fprintf(w, "Longest loss\t%d\n", report.Streaks.LongestLoss)
		fmt.Fprintf(w, "Current\t%+d\n", report.Streaks.Current)
	case "risk":
		writeRisk(w, report.Risk)
	case "odds":
		writeOdds(w, report.Odds)
	case "categories":
		writeGroups(w, "CATEGORIES", report.Categories)
	case "bookmakers":
		writeGroups(w, "BOOKMAKERS", report.Bookmakers)
	case "monthly":
		fmt.Fprintln(w, "MONTHLY")
		fmt.Fprintln(w, "Month\tBets\tStaked\tProfit\tROI")
		for _, m := range report.Monthly {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%s\n", m.Label, m.Bets, m.Staked, m.Profit, pct(m.ROI))
		}
	case "exposure":
		writeExposure(w, report.Exposure)
	case "temporal":
		t := report.Temporal
		fmt.Fprintln(w, "TEMPORAL")
		fmt.Fprintf(w, "Best day\t%s\t%.2f\n", t.BestDay.Label, t.BestDay.Value)
		fmt.Fprintf(w, "Best month\t%s\t%.2f\n", t.BestMonth.Label, t.BestMonth.Value)
		fmt.Fprintf(w, "Best weekday\t%s\t%s\n", t.BestWeekday.Label, pct(t.BestWeekday.Value))
		fmt.Fprintf(w, "Best hour\t%s\t%s\n", t.BestHour.Label, pct(t.BestHour.Value))
		fmt.Fprintf(w, "Activity streak\t%d days\n", t.ActivityStreak)
	}
}

func writeKPIs(w io.Writer, k analytics.KPIs) {
	fmt.Fprintln(w, "KPIS")
	fmt.Fprintf(w, "Bets\t%d\t(%d resolved, %d pending)\n", k.TotalBets, k.ResolvedBets, k.PendingBets)
	fmt.Fprintf(w, "Record\t%dW %dL %dC %dCO\n", k.WonBets, k.LostBets, k.CancelledBets, k.CashedOutBets)
	fmt.Fprintf(w, "Staked\t%.2f\t(%.2f pending)\n", k.TotalStaked, k.PendingStaked)
	fmt.Fprintf(w, "Net profit\t%.2f\n", k.NetProfit)
	fmt.Fprintf(w, "ROI\t%s\t%s\n", pct(k.ROI), k.ROIStatus)
	fmt.Fprintf(w, "Hit rate\t%s\t%s\n", pct(k.HitRate), k.HitRateStatus)
	fmt.Fprintf(w, "Avg odds\t%s\n", odds(k.AvgOdds))
	if k.BestBet != nil {
		fmt.Fprintf(w, "Best bet\t%s\t%.2f\n", k.BestBet.Match, k.BestBet.Profit)
	}
	if k.WorstBet != nil {
		fmt.Fprintf(w, "Worst bet\t%s\t%.2f\n", k.WorstBet.Match, k.WorstBet.Profit)
	}
	if c := k.Comparison; c != nil {
		fmt.Fprintf(w, "vs previous\tprofit %+.1f%%\tROI %+.1fpp\n", c.ProfitChangePct, c.ROIChange)
	}
}

func writeRisk(w io.Writer, r analytics.RiskMetrics) {
	fmt.Fprintln(w, "RISK")
	fmt.Fprintf(w, "Max drawdown\t%s\t%.2f\n", pct(r.MaxDrawdown), r.MaxDrawdownAmount)
	fmt.Fprintf(w, "Current drawdown\t%s\n", pct(r.CurrentDrawdown))
	fmt.Fprintf(w, "Sharpe\t%.3f\n", r.Sharpe)
	fmt.Fprintf(w, "Sortino\t%.3f\n", r.Sortino)
	fmt.Fprintf(w, "Calmar\t%.3f\n", r.Calmar)
	fmt.Fprintf(w, "Ulcer index\t%.3f\n", r.UlcerIndex)
	fmt.Fprintf(w, "VaR 95\t%s\n", pct(r.VaR95))
	fmt.Fprintf(w, "Expected shortfall\t%s\n", pct(r.ExpectedShortfall))
	fmt.Fprintf(w, "Kelly\t%s full\t%s fractional\n", pct(r.Kelly.FullPct), pct(r.Kelly.FractionalPct))
	fmt.Fprintf(w, "Recovery\t%d days max\t%d days current\n", r.Recovery.MaxDays, r.Recovery.CurrentDays)
}

func writeOdds(w io.Writer, o analytics.OddsAnalysis) {
	fmt.Fprintln(w, "ODDS")
	fmt.Fprintln(w, "Range\tBets\tWin %\tImplied %\tROI\tEdge")
	for _, b := range o.Buckets {
		marker := ""
		if o.SweetSpot != nil && o.SweetSpot.Label == b.Label {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%d\t%.1f\t%.1f\t%s\t%+.1f\n",
			b.Label, marker, b.Bets, b.WinProbability*100, b.ImpliedProbability*100, pct(b.ROI), b.EdgePct)
	}
	fmt.Fprintf(w, "Value bets\t%d\t%s\n", o.ValueBets, pct(o.ValueBetRate))
	fmt.Fprintf(w, "Brier score\t%.4f\n", o.BrierScore)
	if p := o.Projection; p != nil {
		fmt.Fprintf(w, "Sweet spot\t%s\tprojected %.2f\n", odds(p.OptimalOdds), p.ProjectedProfit)
	}
}

func writeGroups(w io.Writer, title string, groups []analytics.GroupStat) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "Key\tBets\tHit\tStaked\tProfit\tROI")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.2f\t%.2f\t%s\n", g.Key, g.Bets, pct(g.HitRate), g.Staked, g.Profit, pct(g.ROI))
	}
}

func writeExposure(w io.Writer, e analytics.Exposure) {
	fmt.Fprintln(w, "EXPOSURE")
	fmt.Fprintf(w, "Bookmaker HHI\t%.1f\t%s\n", e.Bookmakers.HHI, e.Bookmakers.Level)
	fmt.Fprintf(w, "Category HHI\t%.1f\t%s\n", e.Categories.HHI, e.Categories.Level)
	fmt.Fprintf(w, "Stake/return correlation\t%.3f\n", e.StakeReturnCorrelation)
	fmt.Fprintf(w, "Momentum\t%s\t%+.1fpp\n", e.Momentum.Signal, e.Momentum.Delta)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// odds renders decimal odds with their American equivalent
func odds(decimal float64) string {
	american, err := oddsmath.DecimalToAmerican(decimal)
	if err != nil {
		return fmt.Sprintf("%.2f", decimal)
	}
	return fmt.Sprintf("%.2f (%+d)", decimal, american)
}
