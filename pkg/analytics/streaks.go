package analytics

import "github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"

// Streaks holds the longest and current runs of the bet history.
// Current is positive for a running win streak and negative for a
// running loss streak.
type Streaks struct {
	LongestWin  int `json:"longest_win"`
	LongestLoss int `json:"longest_loss"`
	Current     int `json:"current"`
}

// ComputeStreaks walks resolved bets in date order. Cashed-out bets extend
// a win run; cancelled bets are neutral and neither extend nor break a run.
func ComputeStreaks(bets []Bet) Streaks {
	var s Streaks
	var winRun, lossRun int

	for _, b := range SortByDate(Resolved(bets)) {
		switch b.Outcome {
		case models.OutcomeWon, models.OutcomeCashedOut:
			winRun++
			lossRun = 0
		case models.OutcomeLost:
			lossRun++
			winRun = 0
		default:
			continue
		}

		if winRun > s.LongestWin {
			s.LongestWin = winRun
		}
		if lossRun > s.LongestLoss {
			s.LongestLoss = lossRun
		}
	}

	if winRun > 0 {
		s.Current = winRun
	} else {
		s.Current = -lossRun
	}
	return s
}
