package portfolio

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/modules/trading"
)

// EquityHistory supplies the daily equity curve a Report is built from. The
// caller owns how that history is stored (statestore snapshots, an
// in-memory ring, or a dedicated table) — this package only consumes it.
type EquityHistory interface {
	Since(days int) []DailyEquity
}

// Handler serves read-only portfolio analytics over the live ledger and the
// recorded trade history.
type Handler struct {
	book    *ledger.Portfolio
	trades  *trading.TradeRepository
	history EquityHistory
	service *Service
	params  RiskParameters
	log     zerolog.Logger
}

func NewHandler(book *ledger.Portfolio, trades *trading.TradeRepository, history EquityHistory, service *Service, params RiskParameters, log zerolog.Logger) *Handler {
	return &Handler{
		book:    book,
		trades:  trades,
		history: history,
		service: service,
		params:  params,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPositions serves GET /api/portfolio, the current open positions
// and cash, read straight off the ledger snapshot.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	snap := h.book.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"as_of":     snap.AsOf,
		"cash":      snap.Cash,
		"equity":    snap.Equity(),
		"positions": snap.Positions,
	})
}

// HandleGetReport serves GET /api/portfolio/report?days=30, the Sharpe /
// Sortino / drawdown / win-rate report over that trailing window.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	curve := h.history.Since(days)

	end := time.Now()
	start := end.AddDate(0, 0, -days)
	trades, err := h.trades.GetAllInRange(start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load trades for report")
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	report := h.service.BuildReport(curve, trades, h.params)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
