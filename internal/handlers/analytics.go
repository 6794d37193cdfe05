package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/reports"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// GetReport returns the full dashboard for the filtered ledger
// Query params: since, until, bookmaker, type, compare=previous
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout)
	defer cancel()

	filters, err := parseFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.reports.Report(ctx, filters, wantsComparison(r))
	if err != nil {
		respondStoreError(w, "failed to compute report", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetKPIs returns the headline figures
// Query params: since, until, bookmaker, type, compare=previous
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout)
	defer cancel()

	filters, ds, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	if !wantsComparison(r) {
		respondSection(w, ds, "kpis", ds.Snapshot.KPIs())
		return
	}

	prior, closed, err := h.reports.Prior(ctx, filters)
	if err != nil {
		respondStoreError(w, "failed to load previous period", err)
		return
	}
	if closed && prior == nil {
		prior = []analytics.Bet{}
	}
	respondSection(w, ds, "kpis", analytics.ComputeKPIs(ds.Snapshot.Bets(), prior))
}

func (h *Handler) GetStreaks(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "streaks", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Streaks(), nil
	})
}

func (h *Handler) GetEquity(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "equity", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Equity(), nil
	})
}

// GetDrawdown returns the drawdown series with its summary figures
func (h *Handler) GetDrawdown(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "drawdown", func(ds *reports.Dataset) (interface{}, error) {
		risk := ds.Snapshot.Risk()
		return map[string]interface{}{
			"series":              risk.Drawdown,
			"max_drawdown":        risk.MaxDrawdown,
			"max_drawdown_amount": risk.MaxDrawdownAmount,
			"current_drawdown":    risk.CurrentDrawdown,
			"ulcer_index":         risk.UlcerIndex,
			"recovery":            risk.Recovery,
		}, nil
	})
}

func (h *Handler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "monthly", func(ds *reports.Dataset) (interface{}, error) {
		return analytics.Monthly(ds.Snapshot.Bets()), nil
	})
}

func (h *Handler) GetWeekday(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "weekday", func(ds *reports.Dataset) (interface{}, error) {
		return analytics.Weekday(ds.Snapshot.Bets()), nil
	})
}

// GetCategories ranks category tags by ROI
// Query params: min_bets
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	minBets := parseIntParam(r, "min_bets", h.reports.Options().MinCategoryBets)
	h.section(w, r, "categories", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Categories(minBets), nil
	})
}

// GetBookmakerStats ranks bookmakers by ROI
// Query params: min_bets
func (h *Handler) GetBookmakerStats(w http.ResponseWriter, r *http.Request) {
	minBets := parseIntParam(r, "min_bets", 1)
	h.section(w, r, "bookmakers", func(ds *reports.Dataset) (interface{}, error) {
		return analytics.ByBookmaker(ds.Snapshot.Bets(), minBets), nil
	})
}

// GetOdds returns odds buckets, sweet spot and calibration
// Query params: width
func (h *Handler) GetOdds(w http.ResponseWriter, r *http.Request) {
	width := h.reports.Options().OddsWidth
	if v := r.URL.Query().Get("width"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > 10 {
			respondError(w, http.StatusBadRequest, "width must be a number in (0, 10]", nil)
			return
		}
		width = parsed
	}

	h.section(w, r, "odds", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Odds(width), nil
	})
}

func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "risk", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Risk(), nil
	})
}

func (h *Handler) GetExposure(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "exposure", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Exposure(), nil
	})
}

func (h *Handler) GetTemporal(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, "temporal", func(ds *reports.Dataset) (interface{}, error) {
		return ds.Snapshot.Temporal(), nil
	})
}

// section loads the filtered ledger and responds with one computed view
func (h *Handler) section(w http.ResponseWriter, r *http.Request, key string, compute func(*reports.Dataset) (interface{}, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout)
	defer cancel()

	_, ds, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	data, err := compute(ds)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute "+key, err)
		return
	}

	respondSection(w, ds, key, data)
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.BetFilters, *reports.Dataset, bool) {
	filters, err := parseFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return filters, nil, false
	}

	ds, err := h.reports.Load(ctx, filters)
	if err != nil {
		respondStoreError(w, "failed to load bets", err)
		return filters, nil, false
	}
	return filters, ds, true
}

func respondSection(w http.ResponseWriter, ds *reports.Dataset, key string, data interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		key:       data,
		"count":   ds.Fetched,
		"partial": ds.Partial,
	})
}

func wantsComparison(r *http.Request) bool {
	return r.URL.Query().Get("compare") == "previous"
}
