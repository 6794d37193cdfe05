package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/analytics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/sizing"
)

// GetKellySizing suggests a stake for a bookmaker from its own history
// Query params: bookmaker (required), fraction (quarter|half|full|0-1), max_pct
func (h *Handler) GetKellySizing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout)
	defer cancel()

	name := r.URL.Query().Get("bookmaker")
	if name == "" {
		respondError(w, http.StatusBadRequest, "bookmaker is required", nil)
		return
	}

	params, err := parseSizingParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	book, err := h.db.GetBookmaker(ctx, name)
	if err != nil {
		respondStoreError(w, "failed to retrieve bookmaker", err)
		return
	}
	if book == nil {
		respondError(w, http.StatusNotFound, "bookmaker not found", nil)
		return
	}

	ds, err := h.reports.Load(ctx, models.BetFilters{Bookmaker: book.Name})
	if err != nil {
		respondStoreError(w, "failed to load bets", err)
		return
	}

	estimate := analytics.KellyFromHistory(ds.Snapshot.Bets())

	rec, err := sizing.Suggest(book.Balance, estimate, params)
	switch {
	case errors.Is(err, sizing.ErrNoEdge):
		respondError(w, http.StatusUnprocessableEntity, "history shows no positive edge for this bookmaker", nil)
		return
	case errors.Is(err, sizing.ErrInvalidBankroll):
		respondError(w, http.StatusUnprocessableEntity, "bookmaker balance must be positive", nil)
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rec.Bookmaker = book.Name

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendation": rec,
		"estimate":       estimate,
		"count":          ds.Fetched,
		"partial":        ds.Partial,
	})
}

func parseSizingParams(r *http.Request) (sizing.Params, error) {
	p := sizing.Params{}

	switch v := r.URL.Query().Get("fraction"); v {
	case "", "quarter":
		p.Fraction = analytics.FractionalKellyMultiplier
	case "half":
		p.Fraction = 0.5
	case "full":
		p.Fraction = 1
	default:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return p, fmt.Errorf("fraction must be quarter, half, full or a number in (0, 1], got %q", v)
		}
		p.Fraction = f
	}

	if v := r.URL.Query().Get("max_pct"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil || pct <= 0 || pct > 100 {
			return p, fmt.Errorf("max_pct must be a percentage in (0, 100], got %q", v)
		}
		p.MaxPct = pct / 100
	}

	return p, nil
}
