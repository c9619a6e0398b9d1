// Package broker defines the BrokerAdapter boundary between the trading
// engine and the outside market: order placement, order status polling,
// quote subscription and the paper-trading simulator that implements the
// same interface for dry runs.
package broker

import (
	"context"
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// OrderRequest is what OrderExecutor hands to a broker to place a new order.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          domain.Side
	Product       money.Product
	Quantity      int
	LimitPrice    money.Paise // zero means market order
}

// OrderStatus is a point-in-time read of an order's state on the broker
// side, returned by GetOrder polling.
type OrderStatus struct {
	BrokerOrderID  string
	ClientOrderID  string
	State          domain.OrderState
	FilledQuantity int
	AveragePrice   money.Paise
	Fees           money.Paise
	UpdatedAt      time.Time
}

// Quote is a single top-of-book snapshot.
type Quote struct {
	Symbol    string
	LTP       money.Paise
	Bid       money.Paise
	Ask       money.Paise
	Timestamp time.Time
}

// Broker is the adapter surface the rest of the engine drives. Every
// method must honor ctx cancellation/deadline — the trading loop relies
// on that to bound each tick.
type Broker interface {
	// PlaceOrder submits a new order and returns the broker's order id.
	// It must not apply any fill itself — OrderExecutor polls for the
	// terminal state separately.
	PlaceOrder(ctx context.Context, req OrderRequest) (brokerOrderID string, err error)

	// GetOrder returns the current status of a previously placed order.
	GetOrder(ctx context.Context, brokerOrderID string) (OrderStatus, error)

	// CancelOrder requests cancellation; it does not guarantee the order
	// reaches CANCELLED — callers must poll GetOrder afterward.
	CancelOrder(ctx context.Context, brokerOrderID string) error

	// GetOpenOrders lists everything the broker still considers live,
	// used during startup reconciliation.
	GetOpenOrders(ctx context.Context) ([]OrderStatus, error)

	// Quote returns the latest cached top-of-book for symbol. Prefer
	// Quotes for more than one symbol — it is a single round trip, this
	// is not.
	Quote(ctx context.Context, symbol string) (Quote, error)

	// Quotes is the batched form of Quote: one round trip for every
	// symbol the caller needs, used by QuoteCache.MGet to refresh a
	// whole watch list without a call per symbol.
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)

	// MarginFor returns the margin the broker would require to place
	// req, which varies by product: full notional for delivery equity,
	// a leveraged fraction for intraday equity and F&O. The risk gate
	// sizes against this, never a blanket full-notional check.
	MarginFor(ctx context.Context, req OrderRequest) (money.Paise, error)

	// Margins returns available cash/margin for sizing and the risk gate.
	Margins(ctx context.Context) (Margins, error)

	Name() string
}

// Margins is the subset of broker margin data the risk gate and sizer need.
type Margins struct {
	AvailableCash money.Paise
	UsedMargin    money.Paise
}
