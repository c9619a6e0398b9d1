package executor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/internal/risk"
)

// alwaysOpenGate builds a Gate whose clock reports OPEN for effectively the
// entire day (its session spans 00:00-23:59), so the mode-and-hours check
// never blocks a submission regardless of when the test runs.
func alwaysOpenGate(t *testing.T, cfg risk.Config) *risk.Gate {
	t.Helper()
	session := marketclock.Session{OpenHour: 0, OpenMinute: 0, CloseHour: 23, CloseMinute: 59}
	clock, err := marketclock.New(nil, session, zerolog.Nop())
	require.NoError(t, err)
	return risk.New(cfg, clock, zerolog.Nop())
}

func emptyPortfolioView(equity, cash money.Paise) risk.PortfolioView {
	return risk.PortfolioView{
		Equity:                equity,
		AvailableCash:         cash,
		PositionsByUnderlying: map[string]int{},
		SectorExposurePaise:   map[string]money.Paise{},
	}
}

type fakeQuoteSource struct{ q broker.Quote }

func (f fakeQuoteSource) Quote(ctx context.Context, symbol string) (broker.Quote, error) {
	return f.q, nil
}

// TestLongRoundTrip_OpenThenForceCloseNetsRealizedPnL exercises a buy
// followed by a price move and a close, the same signal sequence as a
// simple long round trip: enter at one price, exit at a higher one.
func TestLongRoundTrip_OpenThenForceCloseNetsRealizedPnL(t *testing.T) {
	startingCash := money.Rupees(1000000)
	book := ledger.New(startingCash, zerolog.Nop())
	fees := money.FlatFeeModel{Flat: money.Paise(20)}

	quotes := fakeQuoteSource{q: broker.Quote{Symbol: "RELIANCE", LTP: money.Rupees(2000)}}
	br := broker.NewPaperBroker(startingCash, quotes, fees, 0, 1)

	gate := alwaysOpenGate(t, risk.DefaultConfig())
	exec := New(br, gate, book, fees, nil, nil, fastConfig(), zerolog.Nop())

	openReq := Request{
		ClientOrderID: "co-open", Symbol: "RELIANCE", Side: domain.SideBuy,
		Product: money.ProductEquityDelivery, Quantity: 10,
		LimitPrice: money.Rupees(2000), StopPrice: money.Rupees(1900), TargetPrice: money.Rupees(2150),
	}
	pv := emptyPortfolioView(startingCash, startingCash)

	res, err := exec.Submit(context.Background(), openReq, pv)
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, res.State)

	openFee := money.Paise(20)
	expectedCashAfterOpen := startingCash - openFee - money.Rupees(2000).MulQty(10)
	snapAfterOpen := book.Snapshot()
	assert.Equal(t, expectedCashAfterOpen, snapAfterOpen.Cash)
	require.Len(t, snapAfterOpen.Positions, 1)
	assert.Equal(t, 10, snapAfterOpen.Positions[0].Quantity)
	assert.Equal(t, money.Rupees(2000), snapAfterOpen.Positions[0].AvgPrice)

	// price moves up; the monitor pass would exit this via ForceClose,
	// which bypasses the gate's duplicate-position check (it only vetoes
	// new entries, not exits of an existing one).
	quotes.q.LTP = money.Rupees(2050)
	br2 := broker.NewPaperBroker(0, quotes, fees, 0, 1) // cash irrelevant on the sell side
	exec2 := New(br2, gate, book, fees, nil, nil, fastConfig(), zerolog.Nop())

	closeRes, err := exec2.ForceClose(context.Background(), snapAfterOpen.Positions[0], money.ProductEquityDelivery)
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, closeRes.State)

	closeFee := money.Paise(20)
	expectedCashAfterClose := expectedCashAfterOpen + money.Rupees(2050).MulQty(10) - closeFee
	// realized_pnl nets both legs' fees out of the price-delta PnL: a
	// same-price round trip must realize -(open_fees+close_fees), never a
	// clean price-only delta.
	expectedRealizedPnL := money.Rupees(2050-2000).MulQty(10) - openFee - closeFee

	snapFinal := book.Snapshot()
	assert.Equal(t, expectedCashAfterClose, snapFinal.Cash)
	assert.Len(t, snapFinal.Positions, 0) // fully closed
	assert.Equal(t, expectedRealizedPnL, snapFinal.RealizedPnLDay)
}

// TestInsufficientCashRejection_LeavesCashAndPositionsUntouched covers the
// "no phantom cash" invariant: a risk rejection must not move the ledger at
// all, and the broker must never even see a place-order call.
func TestInsufficientCashRejection_LeavesCashAndPositionsUntouched(t *testing.T) {
	startingCash := money.Rupees(10000)
	book := ledger.New(startingCash, zerolog.Nop())

	br := &fakeBroker{orderID: "bo-b", getOrder: filledStatus(100, money.Rupees(4000))}
	gate := alwaysOpenGate(t, risk.DefaultConfig())
	exec := New(br, gate, book, money.FlatFeeModel{Flat: money.Paise(20)}, nil, nil, fastConfig(), zerolog.Nop())

	req := Request{
		ClientOrderID: "co-reject", Symbol: "TCS", Side: domain.SideBuy,
		Product: money.ProductEquityDelivery, Quantity: 100,
		LimitPrice: money.Rupees(4000), StopPrice: money.Rupees(3999), TargetPrice: money.Rupees(4002),
	}
	// risk is Rs1 x 100 = Rs100, within the 1% per-trade cap on Rs10,000, so
	// the margin/cash check is the one that rejects.
	pv := emptyPortfolioView(startingCash, startingCash) // cash(10,000) < required margin(400,000)

	res, err := exec.Submit(context.Background(), req, pv)
	require.Error(t, err)
	assert.Equal(t, domain.Rejected, res.State)

	snap := book.Snapshot()
	assert.Equal(t, startingCash, snap.Cash)
	assert.Len(t, snap.Positions, 0)
	assert.Equal(t, int32(0), br.placeCalls)
}

// TestSubmit_MarginRejectionAccountsForEstimatedFee covers cash that covers
// the notional exactly but not the fee on top of it: Submit must estimate
// the fee via its own FeeModel before the gate ever runs, so the margin
// check rejects on the fee alone.
func TestSubmit_MarginRejectionAccountsForEstimatedFee(t *testing.T) {
	startingCash := money.Rupees(4000) * 10 // exactly covers 10 qty @ Rs4000, nothing left for fees
	book := ledger.New(startingCash, zerolog.Nop())

	br := &fakeBroker{orderID: "bo-fee", getOrder: filledStatus(10, money.Rupees(4000))}
	gate := alwaysOpenGate(t, risk.DefaultConfig())
	exec := New(br, gate, book, money.FlatFeeModel{Flat: money.Paise(20)}, nil, nil, fastConfig(), zerolog.Nop())

	req := Request{
		ClientOrderID: "co-fee-edge", Symbol: "INFY", Side: domain.SideBuy,
		Product: money.ProductEquityDelivery, Quantity: 10,
		// risk is Rs10 x 10 = Rs100, within the 1% per-trade cap on Rs40,000.
		LimitPrice: money.Rupees(4000), StopPrice: money.Rupees(3990), TargetPrice: money.Rupees(4020),
	}
	pv := emptyPortfolioView(startingCash, startingCash)

	res, err := exec.Submit(context.Background(), req, pv)
	require.Error(t, err)
	assert.Equal(t, domain.Rejected, res.State)
	assert.Equal(t, int32(0), br.placeCalls)
}

// TestSubmit_TimeoutThenCancelLeavesLedgerUntouched covers an order that is
// placed successfully, never reaches a terminal state within the poll
// window, is cancelled, and lands as TimedOut without ever touching cash
// or positions.
func TestSubmit_TimeoutThenCancelLeavesLedgerUntouched(t *testing.T) {
	startingCash := money.Rupees(1000000)
	book := ledger.New(startingCash, zerolog.Nop())

	br := &fakeBroker{orderID: "bo-c"}
	br.getOrder = func(n int) (broker.OrderStatus, error) {
		if br.cancelled.Load() {
			return broker.OrderStatus{State: domain.Cancelled}, nil
		}
		return broker.OrderStatus{State: domain.Placed}, nil
	}

	gate := alwaysOpenGate(t, risk.DefaultConfig())
	exec := New(br, gate, book, money.FlatFeeModel{Flat: money.Paise(20)}, nil, nil, fastConfig(), zerolog.Nop())

	req := Request{
		ClientOrderID: "co-timeout", Symbol: "NIFTY24DEC24000CE", Side: domain.SideBuy,
		Product: money.ProductIndexOptions, Quantity: 50,
		LimitPrice: money.Rupees(100), StopPrice: money.Rupees(95), TargetPrice: money.Rupees(107.5),
	}
	pv := emptyPortfolioView(startingCash, startingCash)

	res, err := exec.Submit(context.Background(), req, pv)
	require.Error(t, err)
	assert.Equal(t, domain.TimedOut, res.State)
	assert.True(t, br.cancelled.Load())

	snap := book.Snapshot()
	assert.Equal(t, startingCash, snap.Cash)
	assert.Len(t, snap.Positions, 0)
}
