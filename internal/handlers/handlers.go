package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/db"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/hub"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/reports"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

const (
	defaultBetsLimit = 100
	maxBetsLimit     = 500

	analyticsTimeout = 20 * time.Second
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db      db.LedgerDB
	reports *reports.Service
	hub     *hub.Hub
	ctx     context.Context
}

// NewHandler creates a new handler with dependencies. hub may be nil when
// websocket push is disabled; ctx bounds the lifetime of websocket clients.
func NewHandler(ctx context.Context, database db.LedgerDB, svc *reports.Service, h *hub.Hub) *Handler {
	return &Handler{
		db:      database,
		reports: svc,
		hub:     h,
		ctx:     ctx,
	}
}

// Routes mounts the versioned API on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/bets", h.GetBets)
	r.Get("/bookmakers", h.GetBookmakers)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/report", h.GetReport)
		r.Get("/kpis", h.GetKPIs)
		r.Get("/streaks", h.GetStreaks)
		r.Get("/equity", h.GetEquity)
		r.Get("/drawdown", h.GetDrawdown)
		r.Get("/monthly", h.GetMonthly)
		r.Get("/weekday", h.GetWeekday)
		r.Get("/categories", h.GetCategories)
		r.Get("/bookmakers", h.GetBookmakerStats)
		r.Get("/odds", h.GetOdds)
		r.Get("/risk", h.GetRisk)
		r.Get("/exposure", h.GetExposure)
		r.Get("/temporal", h.GetTemporal)
	})

	r.Get("/sizing/kelly", h.GetKellySizing)
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "bet-ledger",
	}
	if h.hub != nil {
		health["active_clients"] = h.hub.Subscribers()
	}

	respondJSON(w, http.StatusOK, health)
}

// GetBets retrieves raw ledger records
// Query params: since, until, bookmaker, type, limit, offset
func (h *Handler) GetBets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filters, err := parseFilters(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filters.Limit = parseIntParam(r, "limit", defaultBetsLimit)
	filters.Offset = parseIntParam(r, "offset", 0)

	// Validate limit
	if filters.Limit <= 0 {
		filters.Limit = defaultBetsLimit
	}
	if filters.Limit > maxBetsLimit {
		filters.Limit = maxBetsLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	bets, err := h.db.GetBets(ctx, filters)
	if err != nil {
		respondStoreError(w, "failed to retrieve bets", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bets":   bets,
		"count":  len(bets),
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetBookmakers lists bookmakers and balances
func (h *Handler) GetBookmakers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	books, err := h.db.GetBookmakers(ctx)
	if err != nil {
		respondStoreError(w, "failed to retrieve bookmakers", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bookmakers": books,
		"count":      len(books),
	})
}

// Helper functions

// parseFilters reads since, until, bookmaker and type. Dates are either
// YYYY-MM-DD or RFC3339; a bare until date covers that whole day.
func parseFilters(r *http.Request) (models.BetFilters, error) {
	q := r.URL.Query()
	filters := models.BetFilters{
		Bookmaker: q.Get("bookmaker"),
		BetType:   q.Get("type"),
	}

	since, err := parseTimeParam(q.Get("since"), false)
	if err != nil {
		return filters, fmt.Errorf("invalid since: %w", err)
	}
	until, err := parseTimeParam(q.Get("until"), true)
	if err != nil {
		return filters, fmt.Errorf("invalid until: %w", err)
	}
	if since != nil && until != nil && until.Before(*since) {
		return filters, errors.New("until is before since")
	}

	filters.Since = since
	filters.Until = until
	return filters, nil
}

func parseTimeParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}

	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		log.Error().Err(err).Int("status", status).Msg(message)
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		log.Error().Err(err).Msg("error encoding error response")
	}
}

// respondStoreError maps ledger failures to a status code
func respondStoreError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	respondError(w, status, message, err)
}
