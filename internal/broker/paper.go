package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// QuoteSource is the minimal read interface PaperBroker needs from the
// quote cache to synthesize fills without a real exchange connection.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// PaperBroker simulates instant fills against cached quotes, slippage-
// adjusted and tick-aligned, so paper mode exercises the same executor
// path as live trading without ever touching a real exchange.
type PaperBroker struct {
	mu            sync.Mutex
	cash          money.Paise
	orders        map[string]OrderStatus // keyed by broker order id
	quotes        QuoteSource
	fees          money.FeeModel
	slippageBps   int // basis points of LTP applied against the taker
	tickSize      money.Paise
}

func NewPaperBroker(startingCash money.Paise, quotes QuoteSource, fees money.FeeModel, slippageBps int, tickSize money.Paise) *PaperBroker {
	if tickSize <= 0 {
		tickSize = 5 // paise, i.e. 0.05 rupee default NSE tick
	}
	return &PaperBroker{
		cash:        startingCash,
		orders:      make(map[string]OrderStatus),
		quotes:      quotes,
		fees:        fees,
		slippageBps: slippageBps,
		tickSize:    tickSize,
	}
}

func (p *PaperBroker) Name() string { return "paper" }

func (p *PaperBroker) roundToTick(price money.Paise) money.Paise {
	if p.tickSize <= 0 {
		return price
	}
	ticks := (int64(price) + int64(p.tickSize)/2) / int64(p.tickSize)
	return money.Paise(ticks) * p.tickSize
}

// fillPrice applies slippage against the taker: a buy starts from the ask
// (LTP when no ask is known) and pays slippageBps more, a sell starts from
// the bid (LTP when no bid is known) and receives slippageBps less; the
// result is tick-rounded and is not clamped to the bid/ask.
func (p *PaperBroker) fillPrice(q Quote, side domain.Side) money.Paise {
	base := q.LTP
	if side == domain.SideBuy && q.Ask > 0 {
		base = q.Ask
	} else if side == domain.SideSell && q.Bid > 0 {
		base = q.Bid
	}

	slip := base.ProportionOf(p.slippageBps, 10000)
	if side == domain.SideBuy {
		base += slip
	} else {
		base -= slip
	}
	return p.roundToTick(base)
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	q, err := p.quotes.Quote(ctx, req.Symbol)
	if err != nil {
		return "", errs.New(errs.TransientBroker, "paper.PlaceOrder", err)
	}

	fill := p.fillPrice(q, req.Side)
	fee := p.fees.Compute(money.FillContext{
		Product:  req.Product,
		Side:     money.Side(req.Side),
		Price:    fill,
		Quantity: req.Quantity,
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := fill.MulQty(req.Quantity)
	if req.Side == domain.SideBuy {
		required := notional + fee
		if required > p.cash {
			return "", errs.New(errs.OrderRejected, "paper.PlaceOrder", fmt.Errorf("insufficient paper cash: need %s have %s", required, p.cash))
		}
	}

	brokerOrderID := "paper-" + uuid.NewString()
	p.orders[brokerOrderID] = OrderStatus{
		BrokerOrderID:  brokerOrderID,
		ClientOrderID:  req.ClientOrderID,
		State:          domain.Filled,
		FilledQuantity: req.Quantity,
		AveragePrice:   fill,
		Fees:           fee,
		UpdatedAt:      time.Now(),
	}
	return brokerOrderID, nil
}

func (p *PaperBroker) GetOrder(ctx context.Context, brokerOrderID string) (OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.orders[brokerOrderID]
	if !ok {
		return OrderStatus{}, errs.New(errs.ValidationError, "paper.GetOrder", fmt.Errorf("unknown order %s", brokerOrderID))
	}
	return status, nil
}

// CancelOrder is a no-op in paper mode: fills are synthesized instantly at
// placement, so nothing is ever left open to cancel.
func (p *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return nil
}

func (p *PaperBroker) GetOpenOrders(ctx context.Context) ([]OrderStatus, error) {
	return nil, nil
}

func (p *PaperBroker) Quote(ctx context.Context, symbol string) (Quote, error) {
	return p.quotes.Quote(ctx, symbol)
}

// Quotes is a best-effort batched lookup against the same QuoteSource:
// a symbol with no cached quote is simply omitted rather than failing
// the whole call.
func (p *PaperBroker) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := p.quotes.Quote(ctx, symbol)
		if err != nil {
			continue
		}
		out[symbol] = q
	}
	return out, nil
}

// MarginFor mirrors a simple broker leverage model: full notional for
// delivery equity, 20% for intraday equity, 15% for F&O (options and
// futures carry the lowest margin requirement of the three).
func (p *PaperBroker) MarginFor(ctx context.Context, req OrderRequest) (money.Paise, error) {
	price := req.LimitPrice
	if price <= 0 {
		q, err := p.quotes.Quote(ctx, req.Symbol)
		if err != nil {
			return 0, errs.New(errs.TransientBroker, "paper.MarginFor", err)
		}
		price = q.LTP
	}
	notional := price.MulQty(req.Quantity)

	switch req.Product {
	case money.ProductEquityDelivery:
		return notional, nil
	case money.ProductEquityIntraday:
		return notional.ProportionOf(20, 100), nil
	default: // NRML_OPT, NRML_FUT
		return notional.ProportionOf(15, 100), nil
	}
}

func (p *PaperBroker) Margins(ctx context.Context) (Margins, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Margins{AvailableCash: p.cash}, nil
}

// ApplyCashDelta lets the ledger keep PaperBroker's internal cash view in
// sync after each fill, so later margin checks see a realistic balance.
func (p *PaperBroker) ApplyCashDelta(delta money.Paise) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash += delta
}
