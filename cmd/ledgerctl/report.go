package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/db"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/logging"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute the ledger dashboard",
	Long: `Compute the ledger dashboard from a JSON export or the ledger database.

Examples:
  ledgerctl report --file bets.json
  ledgerctl report --file bets.json --section risk --format json
  ledgerctl report --dsn postgres://... --bookmaker Betano --since 2024-01-01`,
	RunE: runReport,
}

var (
	reportFile      string
	reportDSN       string
	reportFormat    string
	reportSection   string
	reportSince     string
	reportUntil     string
	reportBookmaker string
	reportBetType   string
	reportLimit     int
	reportWidth     float64
	reportMinBets   int
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFile, "file", "", "JSON file holding an array of bets")
	reportCmd.Flags().StringVar(&reportDSN, "dsn", "", "Ledger database DSN")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "Output format (table|json)")
	reportCmd.Flags().StringVar(&reportSection, "section", sectionAll, "Section to print (all|kpis|streaks|risk|odds|categories|bookmakers|monthly|exposure|temporal)")
	reportCmd.Flags().StringVar(&reportSince, "since", "", "Only bets on or after this date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportUntil, "until", "", "Only bets on or before this date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportBookmaker, "bookmaker", "", "Only bets from this bookmaker")
	reportCmd.Flags().StringVar(&reportBetType, "type", "", "Only bets of this type")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "Maximum bets read from the database (0 uses the service default)")
	reportCmd.Flags().Float64Var(&reportWidth, "width", analytics.OddsWidthCoarse, "Odds bucket width")
	reportCmd.Flags().IntVar(&reportMinBets, "min-bets", analytics.MinCategoryBets, "Minimum bets for a category to be ranked")

	reportCmd.MarkFlagsMutuallyExclusive("file", "dsn")
	reportCmd.MarkFlagsOneRequired("file", "dsn")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportFormat != formatTable && reportFormat != formatJSON {
		return fmt.Errorf("unknown format %q", reportFormat)
	}
	if !validSection(reportSection) {
		return fmt.Errorf("unknown section %q", reportSection)
	}
	if reportWidth <= 0 {
		return errors.New("width must be positive")
	}

	filters, err := reportFilters()
	if err != nil {
		return err
	}

	logger := logging.Component("report")

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	var records []models.Bet
	if reportFile != "" {
		records, err = readBetsFile(reportFile)
		if err == nil {
			records = applyFilters(records, filters)
		}
	} else {
		records, err = readBetsDB(ctx, reportDSN, filters, logger)
	}
	if err != nil {
		return err
	}

	logger.Info().Int("bets", len(records)).Str("section", reportSection).Msg("computing report")

	report := analytics.NewSnapshot(records).Report(analytics.Options{
		MinCategoryBets: reportMinBets,
		OddsWidth:       reportWidth,
	})

	return render(cmd.OutOrStdout(), report, reportSection, reportFormat)
}

func reportFilters() (models.BetFilters, error) {
	filters := models.BetFilters{
		Bookmaker: reportBookmaker,
		BetType:   reportBetType,
		Limit:     reportLimit,
	}

	if reportSince != "" {
		t, err := time.Parse(models.DateLayout, reportSince)
		if err != nil {
			return filters, fmt.Errorf("invalid since: %w", err)
		}
		filters.Since = &t
	}
	if reportUntil != "" {
		t, err := time.Parse(models.DateLayout, reportUntil)
		if err != nil {
			return filters, fmt.Errorf("invalid until: %w", err)
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		filters.Until = &t
	}
	if filters.Since != nil && filters.Until != nil && filters.Until.Before(*filters.Since) {
		return filters, errors.New("until is before since")
	}
	return filters, nil
}

func readBetsFile(path string) ([]models.Bet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bets file: %w", err)
	}
	defer f.Close()

	return decodeBets(f)
}

func decodeBets(r io.Reader) ([]models.Bet, error) {
	var records []models.Bet
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode bets: %w", err)
	}
	return records, nil
}

// applyFilters mirrors the database filters for file input
func applyFilters(records []models.Bet, filters models.BetFilters) []models.Bet {
	out := make([]models.Bet, 0, len(records))
	for _, b := range records {
		if filters.Since != nil && b.Date.Before(*filters.Since) {
			continue
		}
		if filters.Until != nil && b.Date.After(*filters.Until) {
			continue
		}
		if filters.Bookmaker != "" && b.Bookmaker != filters.Bookmaker {
			continue
		}
		if filters.BetType != "" && b.BetType != filters.BetType {
			continue
		}
		out = append(out, b)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out
}

func readBetsDB(ctx context.Context, dsn string, filters models.BetFilters, logger zerolog.Logger) ([]models.Bet, error) {
	cfg := config.Default()
	cfg.Database.DSN = dsn

	ledger, err := db.NewLedgerPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	records, err := db.FetchAll(ctx, ledger, filters, cfg.Analytics.PageSize, cfg.Analytics.FetchLimit)
	var partial *db.PartialError
	if errors.As(err, &partial) {
		logger.Warn().Err(partial.Err).Int("fetched", partial.Fetched).Msg("ledger read interrupted, reporting on partial data")
		return records, nil
	}
	return records, err
}
