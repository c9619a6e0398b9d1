package trading

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Handlers exposes read-only HTTP access to the trade history. Mutating the
// ledger always happens through the executor, never through this API.
type Handlers struct {
	repo *TradeRepository
	log  zerolog.Logger
}

func NewHandlers(repo *TradeRepository, log zerolog.Logger) *Handlers {
	return &Handlers{repo: repo, log: log.With().Str("handler", "trading").Logger()}
}

// HandleGetTrades serves GET /api/trades, optionally filtered by symbol and
// bounded by limit (default 50).
func (h *Handlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	var err error
	var result interface{}
	if symbol != "" {
		ts, e := h.repo.GetBySymbol(symbol, limit)
		result, err = ts, e
	} else {
		ts, e := h.repo.GetHistory(limit)
		result, err = ts, e
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get trade history")
		http.Error(w, "failed to get trade history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleGetStats serves GET /api/trades/stats, summarizing the last N days
// (default 7) of trade activity.
func (h *Handlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	trades, err := h.repo.GetAllInRange(start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get trades for stats")
		http.Error(w, "failed to get trade stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Summarize(trades))
}
