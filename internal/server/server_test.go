package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktgogineni08-hub/nifty-trader/internal/database"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/portfolio"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/trading"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

type emptyHistory struct{}

func (emptyHistory) Since(days int) []portfolio.DailyEquity { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	clock, err := marketclock.New(nil, marketclock.DefaultNSESession(), zerolog.Nop())
	require.NoError(t, err)

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	repo := trading.NewTradeRepository(db.Conn(), zerolog.Nop())
	tradingHandlers := trading.NewHandlers(repo, zerolog.Nop())

	book := ledger.New(money.Rupees(100000), zerolog.Nop())
	svc := portfolio.NewService(zerolog.Nop())
	portfolioHandlers := portfolio.NewHandler(book, repo, emptyHistory{}, svc, portfolio.DefaultRiskParameters(), zerolog.Nop())

	return New(Config{
		Port:              0,
		Log:               zerolog.Nop(),
		DevMode:           true,
		Clock:             clock,
		TradingHandlers:   tradingHandlers,
		PortfolioHandlers: portfolioHandlers,
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSystemStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["session_state"])
}

func TestPortfolioEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTradesEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/trades/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturns404WithJSONBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no such route", body["error"])
}
