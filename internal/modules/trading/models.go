// Package trading persists the executed-trade history (one immutable row
// per ApplyFill call) and serves it back for reporting. The ledger is the
// source of truth for live position state; this package only ever appends.
package trading

import (
	"fmt"
	"strings"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
)

// Validate checks a trade is well-formed before it is persisted.
func Validate(t domain.Trade) error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade symbol cannot be empty")
	}
	if t.Side != domain.SideBuy && t.Side != domain.SideSell {
		return fmt.Errorf("invalid trade side: %q", t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("trade quantity must be positive")
	}
	if t.Price <= 0 {
		return fmt.Errorf("trade price must be positive")
	}
	if t.ClientOrderID == "" {
		return fmt.Errorf("trade client_order_id cannot be empty")
	}
	return nil
}

// Stats summarizes a slice of trades for the daily/weekly counters the
// reporting endpoints ask for.
type Stats struct {
	Count            int
	BuyCount         int
	SellCount        int
	TotalFees        int64 // paise
	TotalRealizedPnL int64 // paise
}

func Summarize(trades []domain.Trade) Stats {
	var s Stats
	for _, t := range trades {
		s.Count++
		if t.Side == domain.SideBuy {
			s.BuyCount++
		} else {
			s.SellCount++
		}
		s.TotalFees += int64(t.Fees)
		s.TotalRealizedPnL += int64(t.RealizedPnL)
	}
	return s
}
