package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/db"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/reports"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// MockDB implements db.LedgerDB for testing
type MockDB struct {
	bets        []models.Bet
	bookmakers  []models.Bookmaker
	shouldError bool
	err         error
	failAfter   int // GetBets calls that succeed before failing; 0 never fails
	calls       int
	lastFilters models.BetFilters
}

func (m *MockDB) fail() error {
	if m.err != nil {
		return m.err
	}
	return context.DeadlineExceeded
}

func (m *MockDB) GetBets(ctx context.Context, filters models.BetFilters) ([]models.Bet, error) {
	m.calls++
	m.lastFilters = filters
	if m.shouldError || (m.failAfter > 0 && m.calls > m.failAfter) {
		return nil, m.fail()
	}

	var out []models.Bet
	for _, b := range m.bets {
		if filters.Bookmaker != "" && b.Bookmaker != filters.Bookmaker {
			continue
		}
		if filters.Since != nil && b.Date.Before(*filters.Since) {
			continue
		}
		if filters.Until != nil && b.Date.After(*filters.Until) {
			continue
		}
		out = append(out, b)
	}

	if filters.Offset >= len(out) {
		return []models.Bet{}, nil
	}
	out = out[filters.Offset:]
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *MockDB) GetBookmakers(ctx context.Context) ([]models.Bookmaker, error) {
	if m.shouldError {
		return nil, m.fail()
	}
	return m.bookmakers, nil
}

func (m *MockDB) GetBookmaker(ctx context.Context, name string) (*models.Bookmaker, error) {
	if m.shouldError {
		return nil, m.fail()
	}
	for _, b := range m.bookmakers {
		if b.Name == name {
			return &b, nil
		}
	}
	return nil, nil
}

func (m *MockDB) Close() error {
	return nil
}

func (m *MockDB) Ping(ctx context.Context) error {
	if m.shouldError {
		return m.fail()
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

func bet(id int64, book string, day int, stake, odds float64, outcome models.Outcome, profit float64) models.Bet {
	return models.Bet{
		ID:        id,
		Bookmaker: book,
		BetType:   models.BetTypeSingle,
		Category:  "Futebol",
		Stake:     stake,
		Odds:      ptr(odds),
		Outcome:   outcome,
		Profit:    ptr(profit),
		Date:      time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
	}
}

func newMockDB() *MockDB {
	return &MockDB{
		bets: []models.Bet{
			bet(1, "Betano", 1, 100, 2.0, models.OutcomeWon, 100),
			bet(2, "Betano", 2, 100, 2.0, models.OutcomeLost, -100),
			bet(3, "Betano", 3, 100, 2.0, models.OutcomeWon, 100),
			bet(4, "Betano", 4, 100, 2.0, models.OutcomeLost, -100),
			bet(5, "Betano", 5, 100, 2.0, models.OutcomeWon, 100),
			bet(6, "Bet365", 5, 50, 1.5, models.OutcomeLost, -50),
			bet(7, "Bet365", 6, 50, 3.0, models.OutcomePending, 0),
		},
		bookmakers: []models.Bookmaker{
			{ID: 1, Name: "Bet365", Balance: decimal.NewFromInt(200)},
			{ID: 2, Name: "Betano", Balance: decimal.NewFromInt(1000)},
			{ID: 3, Name: "KTO", Balance: decimal.Zero},
		},
	}
}

func newRouter(mockDB *MockDB) http.Handler {
	cfg := config.AnalyticsConfig{FetchLimit: 1000, PageSize: 3, MinCategoryBets: 1, OddsWidth: 0.5}
	svc := reports.NewService(mockDB, nil, cfg, zerolog.Nop())
	handler := handlers.NewHandler(context.Background(), mockDB, svc, nil)

	r := chi.NewRouter()
	r.Get("/health", handler.HealthCheck)
	r.Get("/ws", handler.HandleWebSocket)
	r.Route("/api/v1", handler.Routes)
	return r
}

func get(t *testing.T, h http.Handler, url string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", url, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w, body
}

func TestHealthCheck_Success(t *testing.T) {
	w, body := get(t, newRouter(newMockDB()), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "bet-ledger", body["service"])
}

func TestHealthCheck_DatabaseUnhealthy(t *testing.T) {
	mockDB := newMockDB()
	mockDB.shouldError = true

	w, body := get(t, newRouter(mockDB), "/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "database unhealthy", body["message"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["code"])
}

func TestGetBets(t *testing.T) {
	mockDB := newMockDB()
	w, body := get(t, newRouter(mockDB), "/api/v1/bets?bookmaker=Betano&limit=2&offset=1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(2), body["limit"])
	assert.Equal(t, "Betano", mockDB.lastFilters.Bookmaker)
	assert.Equal(t, 1, mockDB.lastFilters.Offset)
}

func TestGetBets_LimitClamped(t *testing.T) {
	mockDB := newMockDB()
	w, body := get(t, newRouter(mockDB), "/api/v1/bets?limit=10000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500), body["limit"])
}

func TestGetBets_DateFilters(t *testing.T) {
	mockDB := newMockDB()
	w, body := get(t, newRouter(mockDB), "/api/v1/bets?since=2024-03-02&until=2024-03-04")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["count"])
	require.NotNil(t, mockDB.lastFilters.Until)
	assert.Equal(t, 23, mockDB.lastFilters.Until.Hour(), "bare until date covers the whole day")
}

func TestGetBets_InvalidDates(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"Malformed since", "/api/v1/bets?since=yesterday"},
		{"Malformed until", "/api/v1/bets?until=03/04/2024"},
		{"Inverted range", "/api/v1/bets?since=2024-03-05&until=2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := get(t, newRouter(newMockDB()), tt.url)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetBets_DatabaseError(t *testing.T) {
	mockDB := newMockDB()
	mockDB.shouldError = true

	w, _ := get(t, newRouter(mockDB), "/api/v1/bets")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestGetBookmakers(t *testing.T) {
	w, body := get(t, newRouter(newMockDB()), "/api/v1/bookmakers")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["count"])
}

func TestAnalyticsSections(t *testing.T) {
	sections := []string{
		"kpis", "streaks", "equity", "drawdown", "monthly", "weekday",
		"categories", "bookmakers", "odds", "risk", "exposure", "temporal",
	}

	router := newRouter(newMockDB())
	for _, section := range sections {
		t.Run(section, func(t *testing.T) {
			w, body := get(t, router, "/api/v1/analytics/"+section)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, body, section)
			assert.Equal(t, float64(7), body["count"])
			assert.Equal(t, false, body["partial"])
		})
	}
}

func TestGetKPIs(t *testing.T) {
	w, body := get(t, newRouter(newMockDB()), "/api/v1/analytics/kpis?bookmaker=Betano")

	require.Equal(t, http.StatusOK, w.Code)
	kpis := body["kpis"].(map[string]interface{})
	assert.Equal(t, float64(5), kpis["total_bets"])
	assert.Equal(t, float64(100), kpis["net_profit"])
	assert.InDelta(t, 20.0, kpis["roi"], 1e-9)
	assert.Nil(t, kpis["comparison"])
}

func TestGetKPIs_CompareWithPreviousPeriod(t *testing.T) {
	url := "/api/v1/analytics/kpis?since=2024-03-04&until=2024-03-06&compare=previous"
	w, body := get(t, newRouter(newMockDB()), url)

	require.Equal(t, http.StatusOK, w.Code)
	kpis := body["kpis"].(map[string]interface{})
	require.NotNil(t, kpis["comparison"])

	comparison := kpis["comparison"].(map[string]interface{})
	assert.Contains(t, comparison, "prior_net_profit")
}

func TestGetReport(t *testing.T) {
	w, body := get(t, newRouter(newMockDB()), "/api/v1/analytics/report")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["report_id"])
	assert.Equal(t, false, body["partial"])
	assert.Equal(t, false, body["cached"])

	report := body["report"].(map[string]interface{})
	for _, key := range []string{"kpis", "streaks", "equity", "risk", "odds", "exposure", "temporal"} {
		assert.Contains(t, report, key)
	}
}

func TestGetReport_PartialFetch(t *testing.T) {
	mockDB := newMockDB()
	mockDB.failAfter = 1 // one page of three bets, then failure

	w, body := get(t, newRouter(mockDB), "/api/v1/analytics/report")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["partial"])
	assert.Equal(t, float64(3), body["fetched"])
}

func TestAnalytics_CircuitOpen(t *testing.T) {
	mockDB := newMockDB()
	mockDB.shouldError = true
	mockDB.err = fmt.Errorf("%w: get_bets", db.ErrCircuitOpen)

	w, body := get(t, newRouter(mockDB), "/api/v1/analytics/risk")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "failed to load bets", body["message"])
}

func TestGetCategories_MinBets(t *testing.T) {
	router := newRouter(newMockDB())

	_, body := get(t, router, "/api/v1/analytics/categories?min_bets=1")
	assert.Len(t, body["categories"], 1)

	_, body = get(t, router, "/api/v1/analytics/categories?min_bets=50")
	assert.Empty(t, body["categories"])
}

func TestGetOdds_Width(t *testing.T) {
	router := newRouter(newMockDB())

	w, body := get(t, router, "/api/v1/analytics/odds?width=0.25")
	require.Equal(t, http.StatusOK, w.Code)
	odds := body["odds"].(map[string]interface{})
	assert.Equal(t, 0.25, odds["width"])

	for _, bad := range []string{"abc", "0", "-1", "11"} {
		w, _ := get(t, router, "/api/v1/analytics/odds?width="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "width=%s", bad)
	}
}

func TestGetKellySizing(t *testing.T) {
	w, body := get(t, newRouter(newMockDB()), "/api/v1/sizing/kelly?bookmaker=Betano")

	require.Equal(t, http.StatusOK, w.Code)
	rec := body["recommendation"].(map[string]interface{})
	assert.Equal(t, "Betano", rec["bookmaker"])
	assert.Equal(t, "50", rec["stake"]) // 1000 * 0.20 * 1/4
	assert.Equal(t, "200", rec["full_kelly_stake"])

	estimate := body["estimate"].(map[string]interface{})
	assert.InDelta(t, 0.6, estimate["win_probability"], 1e-9)
}

func TestGetKellySizing_Fractions(t *testing.T) {
	router := newRouter(newMockDB())

	_, body := get(t, router, "/api/v1/sizing/kelly?bookmaker=Betano&fraction=full")
	assert.Equal(t, "200", body["recommendation"].(map[string]interface{})["stake"])

	_, body = get(t, router, "/api/v1/sizing/kelly?bookmaker=Betano&fraction=half&max_pct=5")
	assert.Equal(t, "50", body["recommendation"].(map[string]interface{})["stake"])
}

func TestGetKellySizing_Errors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"Missing bookmaker", "/api/v1/sizing/kelly", http.StatusBadRequest},
		{"Bad fraction", "/api/v1/sizing/kelly?bookmaker=Betano&fraction=2", http.StatusBadRequest},
		{"Bad max_pct", "/api/v1/sizing/kelly?bookmaker=Betano&max_pct=0", http.StatusBadRequest},
		{"Unknown bookmaker", "/api/v1/sizing/kelly?bookmaker=Pinnacle", http.StatusNotFound},
		{"No edge", "/api/v1/sizing/kelly?bookmaker=Bet365", http.StatusUnprocessableEntity},
		{"Empty balance", "/api/v1/sizing/kelly?bookmaker=KTO", http.StatusUnprocessableEntity},
	}

	router := newRouter(newMockDB())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, router, tt.url)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, float64(tt.status), body["code"])
		})
	}
}

func TestHandleWebSocket_Disabled(t *testing.T) {
	w, _ := get(t, newRouter(newMockDB()), "/ws")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRespondStoreError_WrappedDeadline(t *testing.T) {
	mockDB := newMockDB()
	mockDB.shouldError = true
	mockDB.err = fmt.Errorf("query bookmakers: %w", errors.Join(context.DeadlineExceeded))

	w, _ := get(t, newRouter(mockDB), "/api/v1/bookmakers")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
