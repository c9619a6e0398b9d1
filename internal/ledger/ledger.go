// Package ledger implements Portfolio: the single point of truth for cash
// and positions. ApplyFill is the only call that moves cash or position
// quantities (MarkPrices updates marks, TrackOpenOrder tracks open orders,
// Restore loads a saved snapshot); every other component reads through
// Snapshot, which returns an immutable deep copy.
package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// Portfolio owns cash and every open position behind a single mutex. All
// cash and quantity changes go through ApplyFill so the ledger equation
// (initial cash + signed cash value of every fill = current cash) never
// drifts from the sequence of fills applied to it.
type Portfolio struct {
	mu             sync.Mutex
	cash           money.Paise
	positions      map[string]domain.Position
	openOrders     map[string]domain.Order
	realizedPnLDay money.Paise
	appliedFills   map[string]bool // client_order_id -> applied, for idempotency
	log            zerolog.Logger
}

func New(startingCash money.Paise, log zerolog.Logger) *Portfolio {
	return &Portfolio{
		cash:         startingCash,
		positions:    make(map[string]domain.Position),
		openOrders:   make(map[string]domain.Order),
		appliedFills: make(map[string]bool),
		log:          log.With().Str("component", "ledger").Logger(),
	}
}

// ApplyFill is the sole entry point for cash and position changes. It is idempotent per
// clientOrderID: a repeat call with the same id is a no-op, so at-least-
// once delivery from the executor's retry path can never double-apply a
// fill. Fees are deducted from cash on every call, opening or closing.
func (p *Portfolio) ApplyFill(clientOrderID, symbol string, filledQty int, avgPrice money.Paise, fees money.Paise, side domain.Side, timestamp time.Time) domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.appliedFills[clientOrderID] {
		p.log.Warn().Str("client_order_id", clientOrderID).Msg("duplicate ApplyFill ignored")
		return p.positions[symbol]
	}

	signedQty := filledQty
	if side == domain.SideSell {
		signedQty = -filledQty
	}

	pos, existed := p.positions[symbol]
	if !existed {
		pos = domain.Position{Symbol: symbol, OpenedAt: timestamp}
	}

	notional := avgPrice.MulQty(filledQty)

	switch {
	case !existed || pos.Quantity == 0:
		// opening a flat position: invested_amount is cost for a long
		// (debit + fees) or net credit for a short (credit − fees).
		pos.Quantity = signedQty
		pos.AvgPrice = avgPrice
		if side == domain.SideBuy {
			pos.InvestedAmount = notional + fees
			p.cash -= notional + fees
		} else {
			pos.InvestedAmount = notional - fees
			p.cash += notional - fees
		}

	case sameSign(pos.Quantity, signedQty):
		// adding to the existing side: recompute VWAP and invested_amount
		// from the running total, no PnL realized.
		newQty := pos.Quantity + signedQty
		if side == domain.SideBuy {
			pos.InvestedAmount += notional + fees
			p.cash -= notional + fees
		} else {
			pos.InvestedAmount += notional - fees
			p.cash += notional - fees
		}
		pos.AvgPrice = pos.InvestedAmount.Abs().ProportionOf(1, abs(newQty))
		pos.Quantity = newQty

	case abs(signedQty) <= abs(pos.Quantity):
		// full or partial close, no reversal: realize PnL against the
		// proportional share of invested_amount being closed.
		closingQty := filledQty
		priorQtyAbs := abs(pos.Quantity)
		closedInvested := pos.InvestedAmount.ProportionOf(closingQty, priorQtyAbs)

		var realized money.Paise
		if pos.Quantity > 0 {
			proceeds := notional - fees
			realized = proceeds - closedInvested
			p.cash += proceeds
		} else {
			cost := notional + fees
			realized = closedInvested - cost
			p.cash -= cost
		}
		pos.RealizedPnL += realized
		p.realizedPnLDay += realized
		pos.InvestedAmount -= closedInvested
		pos.Quantity += signedQty

	default:
		// reversal: close the existing side fully (realizing PnL against
		// its entire invested_amount), then open the remainder on the new
		// side at the same fill price in one atomic step.
		closedQty := abs(pos.Quantity)
		closedInvested := pos.InvestedAmount

		var realized money.Paise
		closedNotional := avgPrice.MulQty(closedQty)
		closedFees := fees.ProportionOf(closedQty, filledQty)
		if pos.Quantity > 0 {
			proceeds := closedNotional - closedFees
			realized = proceeds - closedInvested
			p.cash += proceeds
		} else {
			cost := closedNotional + closedFees
			realized = closedInvested - cost
			p.cash -= cost
		}
		pos.RealizedPnL += realized
		p.realizedPnLDay += realized

		remainderQty := signedQty + pos.Quantity // signed residual on the new side
		remainderAbs := abs(remainderQty)
		remainderNotional := avgPrice.MulQty(remainderAbs)
		remainderFees := fees - closedFees
		if remainderQty > 0 {
			pos.InvestedAmount = remainderNotional + remainderFees
			p.cash -= remainderNotional + remainderFees
		} else {
			pos.InvestedAmount = remainderNotional - remainderFees
			p.cash += remainderNotional - remainderFees
		}
		pos.Quantity = remainderQty
		pos.AvgPrice = avgPrice
	}
	pos.LastPrice = avgPrice

	pos.LastUpdatedAt = timestamp
	p.appliedFills[clientOrderID] = true

	if pos.Quantity == 0 {
		delete(p.positions, symbol)
	} else {
		p.positions[symbol] = pos
	}

	p.log.Info().
		Str("client_order_id", clientOrderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Int("qty", filledQty).
		Str("avg_price", avgPrice.String()).
		Str("fees", fees.String()).
		Msg("fill applied")

	return pos
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(q int) int {
	if q < 0 {
		return -q
	}
	return q
}

// PositionRealizedPnL returns the cumulative realized PnL recorded against
// symbol so far, or zero if it has no open position. Callers use this to
// compute a single fill's realized-PnL delta by diffing against the value
// returned after ApplyFill.
func (p *Portfolio) PositionRealizedPnL(symbol string) money.Paise {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol].RealizedPnL
}

// MarkPrices updates LastPrice on every open position for unrealized PnL
// reporting; it never touches cash or realized PnL.
func (p *Portfolio) MarkPrices(prices map[string]money.Paise) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for symbol, price := range prices {
		if pos, ok := p.positions[symbol]; ok {
			pos.LastPrice = price
			p.positions[symbol] = pos
		}
	}
}

// TrackOpenOrder records an order as open (pending a terminal state) so
// it survives into StateStore snapshots and startup reconciliation.
func (p *Portfolio) TrackOpenOrder(o domain.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.State.Terminal() {
		delete(p.openOrders, o.ClientOrderID)
		return
	}
	p.openOrders[o.ClientOrderID] = o
}

// Snapshot returns an immutable deep copy of cash, positions and open
// orders. Callers may read it freely without holding the ledger's lock.
func (p *Portfolio) Snapshot() domain.PortfolioSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, pos)
	}
	orders := make([]domain.Order, 0, len(p.openOrders))
	for _, o := range p.openOrders {
		orders = append(orders, o)
	}

	return domain.PortfolioSnapshot{
		AsOf:           time.Now(),
		Cash:           p.cash,
		Positions:      positions,
		OpenOrders:     orders,
		RealizedPnLDay: p.realizedPnLDay,
	}
}

// Restore replaces the ledger's entire state, used once at startup when
// loading from StateStore. It is never called mid-session.
func (p *Portfolio) Restore(snap domain.PortfolioSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cash = snap.Cash
	p.realizedPnLDay = snap.RealizedPnLDay
	p.positions = make(map[string]domain.Position, len(snap.Positions))
	for _, pos := range snap.Positions {
		p.positions[pos.Symbol] = pos
	}
	p.openOrders = make(map[string]domain.Order, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		p.openOrders[o.ClientOrderID] = o
	}
}
