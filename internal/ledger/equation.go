package ledger

import (
	"fmt"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// ValidateEquation checks the ledger equation: starting from initialCash,
// replaying every recorded trade's signed cash value must land exactly on
// currentCash. A mismatch means cash moved through some path other than
// ApplyFill — a missed recording, a corrupted snapshot, a stray mutation —
// and startup must abort rather than proceed on a silently drifted ledger.
func ValidateEquation(trades []domain.Trade, initialCash, currentCash money.Paise) error {
	running := initialCash
	for _, t := range trades {
		gross := t.Price.MulQty(t.Quantity)
		if t.Side == domain.SideBuy {
			running -= gross + t.Fees
		} else {
			running += gross - t.Fees
		}
	}
	if running != currentCash {
		return fmt.Errorf("ledger equation violated: initial_cash %s replayed through %d trades gives %s, want current_cash %s",
			initialCash, len(trades), running, currentCash)
	}
	return nil
}
