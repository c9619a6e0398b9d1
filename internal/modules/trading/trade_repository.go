package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/database/repositories"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// TradeRepository records and queries the append-only trade history table.
type TradeRepository struct {
	*repositories.BaseRepository
}

func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{BaseRepository: repositories.NewBase(db, log.With().Str("repo", "trade").Logger())}
}

// Record inserts one trade row. ClientOrderID is unique, so a duplicate
// ApplyFill replay surfaces as a constraint violation rather than a second
// row — callers should treat that as already-recorded, not an error.
func (r *TradeRepository) Record(t domain.Trade) error {
	if err := Validate(t); err != nil {
		return fmt.Errorf("invalid trade: %w", err)
	}

	_, err := r.DB().Exec(`
		INSERT INTO trades
		(client_order_id, symbol, side, quantity, price_paise, fees_paise, realized_pnl_paise, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ClientOrderID,
		strings.ToUpper(strings.TrimSpace(t.Symbol)),
		string(t.Side),
		t.Quantity,
		int64(t.Price),
		int64(t.Fees),
		int64(t.RealizedPnL),
		t.ExecutedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	r.Log().Info().
		Str("client_order_id", t.ClientOrderID).
		Str("symbol", t.Symbol).
		Str("side", string(t.Side)).
		Int("quantity", t.Quantity).
		Msg("trade recorded")

	return nil
}

// Exists reports whether a trade with the given client order id is already
// recorded, letting callers skip a redundant Record after a replayed fill.
func (r *TradeRepository) Exists(clientOrderID string) (bool, error) {
	var exists int
	err := r.DB().QueryRow(`SELECT 1 FROM trades WHERE client_order_id = ? LIMIT 1`, clientOrderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return true, nil
}

// GetHistory returns the most recent trades, newest first.
func (r *TradeRepository) GetHistory(limit int) ([]domain.Trade, error) {
	rows, err := r.DB().Query(`
		SELECT id, client_order_id, symbol, side, quantity, price_paise, fees_paise, realized_pnl_paise, executed_at
		FROM trades
		ORDER BY executed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// GetBySymbol returns trades for a single symbol, newest first.
func (r *TradeRepository) GetBySymbol(symbol string, limit int) ([]domain.Trade, error) {
	rows, err := r.DB().Query(`
		SELECT id, client_order_id, symbol, side, quantity, price_paise, fees_paise, realized_pnl_paise, executed_at
		FROM trades
		WHERE symbol = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades by symbol: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// GetAllInRange returns trades executed within [start, end], oldest first.
func (r *TradeRepository) GetAllInRange(start, end time.Time) ([]domain.Trade, error) {
	rows, err := r.DB().Query(`
		SELECT id, client_order_id, symbol, side, quantity, price_paise, fees_paise, realized_pnl_paise, executed_at
		FROM trades
		WHERE executed_at >= ? AND executed_at <= ?
		ORDER BY executed_at ASC
	`, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to get trades in range: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// GetAll returns every recorded trade, oldest first, for replaying the full
// cash history against the ledger equation at startup.
func (r *TradeRepository) GetAll() ([]domain.Trade, error) {
	rows, err := r.DB().Query(`
		SELECT id, client_order_id, symbol, side, quantity, price_paise, fees_paise, realized_pnl_paise, executed_at
		FROM trades
		ORDER BY executed_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// GetTradeCountToday counts trades executed since local midnight.
func (r *TradeRepository) GetTradeCountToday() (int, error) {
	today := time.Now().Format("2006-01-02")
	var count int
	err := r.DB().QueryRow(`SELECT COUNT(*) FROM trades WHERE DATE(executed_at) = ?`, today).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get trade count today: %w", err)
	}
	return count, nil
}

// GetTradeCountThisWeek counts trades executed in the last 7 days.
func (r *TradeRepository) GetTradeCountThisWeek() (int, error) {
	cutoff := time.Now().AddDate(0, 0, -7).Format(time.RFC3339)
	var count int
	err := r.DB().QueryRow(`SELECT COUNT(*) FROM trades WHERE executed_at >= ?`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get trade count this week: %w", err)
	}
	return count, nil
}

// GetLastTradeTimestamp returns the execution time of the most recent trade.
func (r *TradeRepository) GetLastTradeTimestamp() (*time.Time, error) {
	var executedAt string
	err := r.DB().QueryRow(`SELECT executed_at FROM trades ORDER BY executed_at DESC LIMIT 1`).Scan(&executedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last trade timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, executedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &t, nil
}

// scanTrades reads every remaining row of rows into a []domain.Trade. Shared
// by every query method above so there is exactly one place that knows the
// column order.
func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTradeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

func scanTradeRow(rows *sql.Rows) (domain.Trade, error) {
	var t domain.Trade
	var side string
	var pricePaise, feesPaise, realizedPnLPaise int64
	var executedAt string

	if err := rows.Scan(&t.ID, &t.ClientOrderID, &t.Symbol, &side, &t.Quantity, &pricePaise, &feesPaise, &realizedPnLPaise, &executedAt); err != nil {
		return t, err
	}

	t.Side = domain.Side(side)
	t.Price = money.Paise(pricePaise)
	t.Fees = money.Paise(feesPaise)
	t.RealizedPnL = money.Paise(realizedPnLPaise)

	parsed, err := time.Parse(time.RFC3339, executedAt)
	if err != nil {
		return t, fmt.Errorf("failed to parse executed_at: %w", err)
	}
	t.ExecutedAt = parsed

	return t, nil
}
