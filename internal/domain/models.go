// Package domain holds the plain value types shared across the trading
// engine: instruments, positions, orders and portfolio snapshots. None of
// these types carry behavior beyond simple derived accessors — mutation
// lives in the owning components (ledger, executor).
package domain

import (
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// InstrumentKind distinguishes the few NSE F&O instrument shapes this
// engine trades.
type InstrumentKind string

const (
	KindEquity InstrumentKind = "EQUITY"
	KindFuture InstrumentKind = "FUTURE"
	KindOption InstrumentKind = "OPTION"
)

// OptionType for option instruments.
type OptionType string

const (
	Call OptionType = "CE"
	Put  OptionType = "PE"
)

// Instrument is a single tradable contract as known to the catalog.
type Instrument struct {
	Token      int64          `json:"token"`
	Symbol     string         `json:"symbol"`     // exchange tradingsymbol, e.g. NIFTY24JUL25000CE
	Underlying string         `json:"underlying"` // NIFTY, BANKNIFTY, FINNIFTY, or equity symbol
	Kind       InstrumentKind `json:"kind"`
	Expiry     time.Time      `json:"expiry,omitempty"`
	Strike     money.Paise    `json:"strike,omitempty"`
	OptionType OptionType     `json:"option_type,omitempty"`
	LotSize    int            `json:"lot_size"`
	TickSize   money.Paise    `json:"tick_size"`
}

// Side of a position or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position is a single open holding in a symbol. Quantity is signed:
// positive means long, negative means short. Zero-quantity positions are
// removed from the ledger, never kept around as a placeholder.
type Position struct {
	Symbol         string      `json:"symbol"`
	Quantity       int         `json:"quantity"`
	AvgPrice       money.Paise `json:"avg_price"` // VWAP of the open side, always positive
	InvestedAmount money.Paise `json:"invested_amount"` // longs: cost paid incl fees; shorts: net credit received after fees
	RealizedPnL    money.Paise `json:"realized_pnl"`
	LastPrice      money.Paise `json:"last_price"`
	StopPrice      money.Paise `json:"stop_price,omitempty"`
	TargetPrice    money.Paise `json:"target_price,omitempty"`
	OpenedAt       time.Time   `json:"opened_at"`
	LastUpdatedAt  time.Time   `json:"last_updated_at"`
}

// IsLong reports whether the position is net long.
func (p Position) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is net short.
func (p Position) IsShort() bool { return p.Quantity < 0 }

// UnrealizedPnL marks the position against its last known price. Quantity
// carries the sign, so this is correct for both long and short without a
// branch: a short position profits when LastPrice falls below AvgPrice.
func (p Position) UnrealizedPnL() money.Paise {
	if p.Quantity == 0 {
		return 0
	}
	return (p.LastPrice - p.AvgPrice).MulQty(p.Quantity)
}

// OrderState is the lifecycle state of a single order as tracked by the
// executor. Only FILLED, REJECTED, CANCELLED and TIMED_OUT are terminal.
type OrderState string

const (
	PendingPlacement OrderState = "PENDING_PLACEMENT"
	Placed           OrderState = "PLACED"
	PartiallyFilled  OrderState = "PARTIALLY_FILLED"
	Filled           OrderState = "FILLED"
	Rejected         OrderState = "REJECTED"
	Cancelled        OrderState = "CANCELLED"
	TimedOut         OrderState = "TIMED_OUT"
)

// Terminal reports whether the state will not change further.
func (s OrderState) Terminal() bool {
	switch s {
	case Filled, Rejected, Cancelled, TimedOut:
		return true
	}
	return false
}

// Order is the executor's view of a single broker order across its
// lifetime, keyed by ClientOrderID (idempotency key for ApplyFill).
type Order struct {
	ClientOrderID   string      `json:"client_order_id"`
	BrokerOrderID   string      `json:"broker_order_id,omitempty"`
	Symbol          string      `json:"symbol"`
	Side            Side        `json:"side"`
	Product         money.Product `json:"product"`
	Quantity        int         `json:"quantity"`
	LimitPrice      money.Paise `json:"limit_price,omitempty"`
	State           OrderState  `json:"state"`
	FilledQuantity  int         `json:"filled_quantity"`
	AveragePrice    money.Paise `json:"average_price,omitempty"`
	Fees            money.Paise `json:"fees,omitempty"`
	PlacedAt        time.Time   `json:"placed_at"`
	LastCheckedAt   time.Time   `json:"last_checked_at,omitempty"`
}

// Trade is an immutable record of a single ApplyFill call, used for the
// trade history table and analytics — never mutated after insertion.
type Trade struct {
	ID            int64       `json:"id"`
	ClientOrderID string      `json:"client_order_id"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Quantity      int         `json:"quantity"`
	Price         money.Paise `json:"price"`
	Fees          money.Paise `json:"fees"`
	RealizedPnL   money.Paise `json:"realized_pnl"`
	ExecutedAt    time.Time   `json:"executed_at"`
}

// PortfolioSnapshot is an immutable deep copy returned by Portfolio.Snapshot.
// Callers may read it freely without holding any lock.
type PortfolioSnapshot struct {
	AsOf           time.Time    `json:"as_of"`
	Cash           money.Paise  `json:"cash_paise"`
	Positions      []Position   `json:"positions"`
	OpenOrders     []Order      `json:"open_orders"`
	RealizedPnLDay money.Paise  `json:"realized_pnl_day_paise"`
}

// Equity returns cash plus the marked value (LastPrice × Quantity) of all
// open positions.
func (s PortfolioSnapshot) Equity() money.Paise {
	total := s.Cash
	for _, p := range s.Positions {
		total += p.LastPrice.MulQty(p.Quantity)
	}
	return total
}
