// Package executor implements OrderExecutor: validate, run the risk gate,
// place the order, poll for a terminal state with increasing backoff, and
// apply the fill to the ledger exactly once. Per-symbol locking prevents
// two goroutines from racing to open the same symbol twice.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/events"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/internal/risk"
)

// Config tunes the poll/backoff/timeout protocol.
type Config struct {
	InitialPollInterval time.Duration
	MaxPollInterval     time.Duration
	OverallTimeout      time.Duration
	CancelGracePeriod   time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialPollInterval: 200 * time.Millisecond,
		MaxPollInterval:     2 * time.Second,
		OverallTimeout:      15 * time.Second,
		CancelGracePeriod:   2 * time.Second,
	}
}

// Request is a fully-sized, risk-approved trade ready for submission.
type Request struct {
	ClientOrderID string
	Symbol        string
	Underlying    string
	Side          domain.Side
	Product       money.Product
	Quantity      int
	LimitPrice    money.Paise
	StopPrice     money.Paise
	TargetPrice   money.Paise
	Sector        string
}

// Result reports what happened to a submitted order.
type Result struct {
	ClientOrderID string
	State         domain.OrderState
	Position      domain.Position
}

// TradeRecorder persists a single fill as an immutable trade-history row.
// A nil TradeRecorder is valid and simply skips recording, which keeps
// unit tests that don't care about trade history terse.
type TradeRecorder interface {
	Record(t domain.Trade) error
}

// Executor wires RiskGate, a Broker, a per-symbol lock table and the ledger
// together into the exact place->poll->apply protocol.
type Executor struct {
	br      broker.Broker
	gate    *risk.Gate
	book    *ledger.Portfolio
	fees    money.FeeModel
	trades  TradeRecorder
	events  *events.Manager
	cfg     Config
	log     zerolog.Logger
	symLock sync.Map // symbol -> *sync.Mutex
}

func New(br broker.Broker, gate *risk.Gate, book *ledger.Portfolio, fees money.FeeModel, trades TradeRecorder, evt *events.Manager, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{br: br, gate: gate, book: book, fees: fees, trades: trades, events: evt, cfg: cfg, log: log.With().Str("component", "executor").Logger()}
}

func (e *Executor) lockFor(symbol string) *sync.Mutex {
	v, _ := e.symLock.LoadOrStore(symbol, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Submit runs the full protocol for one proposed trade: risk gate, place,
// poll-with-backoff, and on terminal FILLED, ApplyFill. It blocks until a
// terminal outcome (filled, rejected, cancelled, timed out) or ctx expires.
func (e *Executor) Submit(ctx context.Context, req Request, pv risk.PortfolioView) (Result, error) {
	lock := e.lockFor(req.Symbol)
	lock.Lock()
	defer lock.Unlock()

	estimatedFee := e.fees.Compute(money.FillContext{
		Product:  req.Product,
		Side:     money.Side(req.Side),
		Price:    req.LimitPrice,
		Quantity: req.Quantity,
	})

	requiredMargin, err := e.br.MarginFor(ctx, broker.OrderRequest{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Product:    req.Product,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("client_order_id", req.ClientOrderID).Msg("margin lookup failed, falling back to full notional")
		requiredMargin = req.LimitPrice.MulQty(req.Quantity)
	}

	decision, err := e.gate.Evaluate(risk.Proposal{
		Symbol:         req.Symbol,
		Underlying:     req.Underlying,
		Side:           req.Side,
		Quantity:       req.Quantity,
		EntryPrice:     req.LimitPrice,
		StopPrice:      req.StopPrice,
		TargetPrice:    req.TargetPrice,
		Sector:         req.Sector,
		EstimatedFee:   estimatedFee,
		RequiredMargin: requiredMargin,
	}, pv)
	if err != nil || !decision.Approved {
		e.emit(events.RiskRejected, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "reason": decision.Reason})
		return Result{ClientOrderID: req.ClientOrderID, State: domain.Rejected}, err
	}

	placeCtx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	brokerOrderID, err := e.br.PlaceOrder(placeCtx, broker.OrderRequest{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Product:       req.Product,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
	})
	if err != nil {
		return Result{ClientOrderID: req.ClientOrderID, State: domain.Rejected}, err
	}
	e.emit(events.OrderPlaced, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "broker_order_id": brokerOrderID})

	status, err := e.pollUntilTerminal(placeCtx, brokerOrderID)
	if err != nil {
		return e.handleTimeout(ctx, req, brokerOrderID)
	}

	return e.finalize(req, status)
}

// pollUntilTerminal polls GetOrder with increasing backoff
// (InitialPollInterval doubling up to MaxPollInterval) until a terminal
// state is reached or ctx expires.
func (e *Executor) pollUntilTerminal(ctx context.Context, brokerOrderID string) (broker.OrderStatus, error) {
	interval := e.cfg.InitialPollInterval
	for {
		status, err := e.br.GetOrder(ctx, brokerOrderID)
		if err == nil && status.State.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return broker.OrderStatus{}, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > e.cfg.MaxPollInterval {
			interval = e.cfg.MaxPollInterval
		}
	}
}

// handleTimeout runs when pollUntilTerminal never saw a terminal state
// within OverallTimeout: cancel, then poll briefly for the cancel to land.
func (e *Executor) handleTimeout(ctx context.Context, req Request, brokerOrderID string) (Result, error) {
	e.log.Warn().Str("client_order_id", req.ClientOrderID).Msg("order timed out, attempting cancel")

	if err := e.br.CancelOrder(ctx, brokerOrderID); err != nil {
		e.log.Error().Err(err).Str("client_order_id", req.ClientOrderID).Msg("cancel request failed after timeout")
	}

	graceCtx, cancel := context.WithTimeout(ctx, e.cfg.CancelGracePeriod)
	defer cancel()

	status, err := e.pollUntilTerminal(graceCtx, brokerOrderID)
	if err != nil {
		// still non-terminal: this requires a human to reconcile, the
		// order must not be assumed filled or cancelled.
		e.log.Error().Str("client_order_id", req.ClientOrderID).Msg("RECONCILIATION_REQUIRED: order state unknown after cancel attempt")
		e.emit(events.ReconciliationRequired, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "broker_order_id": brokerOrderID})
		return Result{ClientOrderID: req.ClientOrderID, State: domain.PartiallyFilled},
			errs.New(errs.ReconciliationRequired, "executor.handleTimeout", fmt.Errorf("order %s still non-terminal after cancel attempt", brokerOrderID))
	}

	if status.State == domain.Filled {
		return e.finalize(req, status)
	}

	e.emit(events.OrderTimedOut, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "broker_order_id": brokerOrderID})
	return Result{ClientOrderID: req.ClientOrderID, State: domain.TimedOut},
		errs.New(errs.OrderTimeout, "executor.handleTimeout", fmt.Errorf("order %s timed out and was cancelled", brokerOrderID))
}

func (e *Executor) finalize(req Request, status broker.OrderStatus) (Result, error) {
	switch status.State {
	case domain.Filled:
		priorRealized := e.book.PositionRealizedPnL(req.Symbol)
		pos := e.book.ApplyFill(req.ClientOrderID, req.Symbol, status.FilledQuantity, status.AveragePrice, status.Fees, req.Side, time.Now())
		e.recordTrade(req, status, pos.RealizedPnL-priorRealized)
		e.emit(events.OrderFilled, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "qty": status.FilledQuantity, "price_paise": int64(status.AveragePrice)})
		return Result{ClientOrderID: req.ClientOrderID, State: domain.Filled, Position: pos}, nil

	case domain.Rejected:
		e.emit(events.OrderRejected, req.Symbol, map[string]interface{}{"client_order_id": req.ClientOrderID, "broker_order_id": status.BrokerOrderID})
		return Result{ClientOrderID: req.ClientOrderID, State: domain.Rejected},
			errs.New(errs.OrderRejected, "executor.finalize", fmt.Errorf("broker rejected order %s", status.BrokerOrderID))

	case domain.Cancelled:
		return Result{ClientOrderID: req.ClientOrderID, State: domain.Cancelled},
			errs.New(errs.OrderTimeout, "executor.finalize", fmt.Errorf("order %s cancelled", status.BrokerOrderID))

	default:
		return Result{ClientOrderID: req.ClientOrderID, State: status.State}, nil
	}
}

// ForceClose submits a market exit for an existing position, used on
// EXPIRY_FLATTEN and session-end transitions. It bypasses the risk gate's
// entry checks (they only veto new entries) but still runs the full
// place->poll->apply protocol.
func (e *Executor) ForceClose(ctx context.Context, pos domain.Position, product money.Product) (Result, error) {
	side := domain.SideSell
	if pos.Quantity < 0 {
		side = domain.SideBuy
	}
	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}

	lock := e.lockFor(pos.Symbol)
	lock.Lock()
	defer lock.Unlock()

	clientOrderID := fmt.Sprintf("flatten-%s-%d", pos.Symbol, time.Now().UnixNano())

	placeCtx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	brokerOrderID, err := e.br.PlaceOrder(placeCtx, broker.OrderRequest{
		ClientOrderID: clientOrderID,
		Symbol:        pos.Symbol,
		Side:          side,
		Product:       product,
		Quantity:      qty,
	})
	if err != nil {
		return Result{ClientOrderID: clientOrderID, State: domain.Rejected}, err
	}

	status, err := e.pollUntilTerminal(placeCtx, brokerOrderID)
	if err != nil {
		return e.handleTimeout(ctx, Request{ClientOrderID: clientOrderID, Symbol: pos.Symbol, Side: side, Product: product, Quantity: qty}, brokerOrderID)
	}

	return e.finalize(Request{ClientOrderID: clientOrderID, Symbol: pos.Symbol, Side: side, Product: product, Quantity: qty}, status)
}

// recordTrade persists the fill as trade history. It is a no-op when the
// executor was constructed without a TradeRecorder; a recording failure is
// logged, not propagated, since the fill has already been applied to the
// ledger and cannot be rolled back.
func (e *Executor) recordTrade(req Request, status broker.OrderStatus, realizedPnL money.Paise) {
	if e.trades == nil {
		return
	}
	trade := domain.Trade{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      status.FilledQuantity,
		Price:         status.AveragePrice,
		Fees:          status.Fees,
		RealizedPnL:   realizedPnL,
		ExecutedAt:    time.Now(),
	}
	if err := e.trades.Record(trade); err != nil {
		e.log.Error().Err(err).Str("client_order_id", req.ClientOrderID).Msg("trade history recording failed")
	}
}

// emit is a no-op when the executor was constructed without an events
// manager, which keeps tests that don't care about the event stream terse.
func (e *Executor) emit(t events.EventType, symbol string, data map[string]interface{}) {
	if e.events == nil {
		return
	}
	data["symbol"] = symbol
	e.events.Emit(t, "executor", data)
}
