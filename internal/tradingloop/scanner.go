package tradingloop

import (
	"context"
	"fmt"
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/executor"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/internal/signal"
	"github.com/ktgogineni08-hub/nifty-trader/internal/sizing"
)

// Candidate is one symbol's worth of strategy opinion plus the price
// history PositionSizer needs. Strategy signal generation itself is out of
// scope for this engine — VoteSource is the seam an external process feeds
// through, supplying already-computed votes rather than raw market data.
type Candidate struct {
	Symbol      string
	Underlying  string
	LotSize     int
	EntryPrice  money.Paise
	StopPrice   money.Paise
	TargetPrice money.Paise
	Sector      string
	Highs, Lows, Closes []float64 // newest last
	Votes       []signal.Vote
}

// VoteSource supplies the current tick's candidates. Implementations live
// outside this engine (a separate strategy process, a backtester replay,
// a test double) — DefaultScanner only consumes the contract.
type VoteSource interface {
	Candidates(ctx context.Context, now time.Time) ([]Candidate, error)
}

// DefaultScanner turns VoteSource candidates into risk-gate-ready
// executor.Request values by running each through SignalAggregator then
// PositionSizer.
type DefaultScanner struct {
	votes      VoteSource
	aggregator *signal.Aggregator
	sizer      *sizing.Sizer
	book       *ledger.Portfolio
}

func NewDefaultScanner(votes VoteSource, aggregator *signal.Aggregator, sizer *sizing.Sizer, book *ledger.Portfolio) *DefaultScanner {
	return &DefaultScanner{votes: votes, aggregator: aggregator, sizer: sizer, book: book}
}

func (s *DefaultScanner) Scan(ctx context.Context, now time.Time) ([]executor.Request, error) {
	candidates, err := s.votes.Candidates(ctx, now)
	if err != nil {
		return nil, err
	}

	equity := s.book.Snapshot().Equity()

	var requests []executor.Request
	for _, c := range candidates {
		sig := s.aggregator.Aggregate(c.Symbol, c.Votes)
		if sig.Dropped {
			continue
		}

		qty := s.sizer.Size(sizing.Input{
			Equity:     equity,
			EntryPrice: c.EntryPrice,
			StopPrice:  c.StopPrice,
			Confidence: sig.Confidence,
			LotSize:    c.LotSize,
			Highs:      c.Highs,
			Lows:       c.Lows,
			Closes:     c.Closes,
		})
		if qty <= 0 {
			continue
		}

		requests = append(requests, executor.Request{
			ClientOrderID: fmt.Sprintf("entry-%s-%d", c.Symbol, now.UnixNano()),
			Symbol:        c.Symbol,
			Underlying:    c.Underlying,
			Side:          sig.Direction,
			Product:       money.ProductIndexOptions,
			Quantity:      qty,
			LimitPrice:    c.EntryPrice,
			StopPrice:     c.StopPrice,
			TargetPrice:   c.TargetPrice,
			Sector:        c.Sector,
		})
	}
	return requests, nil
}

// StopTargetExitChecker closes a position once price crosses its recorded
// stop or target — the default ExitChecker every deployment needs,
// independent of whatever strategy opened the position.
type StopTargetExitChecker struct{}

func (StopTargetExitChecker) ShouldExit(pos domain.Position, now time.Time) (bool, string) {
	if pos.StopPrice == 0 && pos.TargetPrice == 0 {
		return false, ""
	}
	if pos.IsLong() {
		if pos.StopPrice != 0 && pos.LastPrice <= pos.StopPrice {
			return true, "stop-loss hit"
		}
		if pos.TargetPrice != 0 && pos.LastPrice >= pos.TargetPrice {
			return true, "target hit"
		}
	} else if pos.IsShort() {
		if pos.StopPrice != 0 && pos.LastPrice >= pos.StopPrice {
			return true, "stop-loss hit"
		}
		if pos.TargetPrice != 0 && pos.LastPrice <= pos.TargetPrice {
			return true, "target hit"
		}
	}
	return false, ""
}
