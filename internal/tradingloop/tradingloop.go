// Package tradingloop orchestrates one tick of the trading day: monitor
// open positions for exits first, then scan for new entries, skipping the
// scan entirely once the session enters EXPIRY_FLATTEN or closes.
package tradingloop

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/executor"
	"github.com/ktgogineni08-hub/nifty-trader/internal/ledger"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/internal/quotecache"
	"github.com/ktgogineni08-hub/nifty-trader/internal/risk"
	"github.com/ktgogineni08-hub/nifty-trader/internal/statestore"
)

// Config tunes the loop's cadence.
type Config struct {
	TickInterval    time.Duration
	PersistInterval time.Duration
	Product         money.Product
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    30 * time.Second,
		PersistInterval: 30 * time.Second,
		Product:         money.ProductIndexOptions,
	}
}

// ExitChecker decides whether an open position should be closed this tick
// (stop-loss, take-profit, expiry-time-exit, or a strategy-driven exit).
// The first matching reason wins; implementations are tried in order.
type ExitChecker interface {
	ShouldExit(pos domain.Position, now time.Time) (exit bool, reason string)
}

// EntryScanner produces risk-gate-ready proposals for the current tick,
// already passed through SignalAggregator and PositionSizer.
type EntryScanner interface {
	Scan(ctx context.Context, now time.Time) ([]executor.Request, error)
}

// EquityRecorder receives one closing-equity sample per tick, keyed by
// calendar date. The reporting side (portfolio.EquityLog) overwrites same-day
// entries, so ticking multiple times a day is harmless.
type EquityRecorder interface {
	Append(date string, equityPaise int64)
}

// Loop is the top-level tick driver.
type Loop struct {
	clock   *marketclock.Clock
	book    *ledger.Portfolio
	exec    *executor.Executor
	exits   []ExitChecker
	scanner EntryScanner
	store   *statestore.Store
	equity  EquityRecorder
	quotes  *quotecache.Cache
	feed    quotecache.Source
	cfg     Config
	log     zerolog.Logger
}

func New(clock *marketclock.Clock, book *ledger.Portfolio, exec *executor.Executor, exits []ExitChecker, scanner EntryScanner, store *statestore.Store, equity EquityRecorder, quotes *quotecache.Cache, feed quotecache.Source, cfg Config, log zerolog.Logger) *Loop {
	return &Loop{clock: clock, book: book, exec: exec, exits: exits, scanner: scanner, store: store, equity: equity, quotes: quotes, feed: feed, cfg: cfg, log: log.With().Str("component", "tradingloop").Logger()}
}

// Run blocks, ticking every cfg.TickInterval until ctx is cancelled. A
// cancellation mid-tick lets the current iteration finish before Run
// returns — shutdown never aborts a partially-applied tick.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.persist(l.clock.Now(), true)
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	now := l.clock.Now()
	state := l.clock.State(now)

	l.refreshOpenPositionQuotes(ctx)
	l.runMonitorPass(ctx, now)

	switch state {
	case marketclock.ExpiryFlatten, marketclock.PreClose, marketclock.Closed, marketclock.ClosedHoliday:
		l.forceFlattenAll(ctx)
	case marketclock.Open:
		l.runScanPass(ctx, now)
	}

	l.persist(now, false)
}

// refreshOpenPositionQuotes batch-fetches the latest quote for every open
// position's symbol and marks the portfolio with it, so the monitor pass
// below evaluates stop/target against a current price instead of the
// price last seen at fill time. A refresh failure is logged, not fatal —
// the monitor pass simply falls back to whatever price was last marked.
func (l *Loop) refreshOpenPositionQuotes(ctx context.Context) {
	if l.quotes == nil || l.feed == nil {
		return
	}
	snap := l.book.Snapshot()
	if len(snap.Positions) == 0 {
		return
	}
	symbols := make([]string, 0, len(snap.Positions))
	for _, pos := range snap.Positions {
		symbols = append(symbols, pos.Symbol)
	}

	quotes, err := l.quotes.MGet(ctx, l.feed, symbols)
	if err != nil {
		l.log.Warn().Err(err).Msg("quote refresh failed, monitor pass may use stale prices")
	}
	prices := make(map[string]money.Paise, len(quotes))
	for symbol, q := range quotes {
		prices[symbol] = q.LTP
	}
	l.book.MarkPrices(prices)
}

// runMonitorPass checks every open position against the configured exit
// checkers, first match wins, and force-closes on a hit.
func (l *Loop) runMonitorPass(ctx context.Context, now time.Time) {
	snap := l.book.Snapshot()
	for _, pos := range snap.Positions {
		for _, checker := range l.exits {
			if exit, reason := checker.ShouldExit(pos, now); exit {
				l.log.Info().Str("symbol", pos.Symbol).Str("reason", reason).Msg("monitor pass triggering exit")
				if _, err := l.exec.ForceClose(ctx, pos, l.cfg.Product); err != nil {
					l.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("forced exit failed")
				}
				break
			}
		}
	}
}

// runScanPass looks for new entries via the configured scanner, which has
// already run SignalAggregator and PositionSizer internally.
func (l *Loop) runScanPass(ctx context.Context, now time.Time) {
	requests, err := l.scanner.Scan(ctx, now)
	if err != nil {
		l.log.Error().Err(err).Msg("entry scan failed")
		return
	}

	if l.quotes != nil && l.feed != nil && len(requests) > 0 {
		symbols := make([]string, 0, len(requests))
		for _, req := range requests {
			symbols = append(symbols, req.Symbol)
		}
		if _, err := l.quotes.MGet(ctx, l.feed, symbols); err != nil {
			l.log.Warn().Err(err).Msg("quote refresh for scan candidates failed")
		}
	}

	snap := l.book.Snapshot()
	pv := portfolioViewFromSnapshot(snap)

	for _, req := range requests {
		if _, err := l.exec.Submit(ctx, req, pv); err != nil {
			l.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("entry submission did not fill")
		}
	}
}

// forceFlattenAll closes every open position, used once the session
// transitions into EXPIRY_FLATTEN or closes for the day.
func (l *Loop) forceFlattenAll(ctx context.Context) {
	snap := l.book.Snapshot()
	for _, pos := range snap.Positions {
		if pos.Quantity == 0 {
			continue
		}
		l.log.Info().Str("symbol", pos.Symbol).Msg("session-end flatten")
		if _, err := l.exec.ForceClose(ctx, pos, l.cfg.Product); err != nil {
			l.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("session-end flatten failed")
		}
	}
}

func (l *Loop) persist(now time.Time, force bool) {
	snap := l.book.Snapshot()
	if err := l.store.Save(snap, force); err != nil {
		l.log.Error().Err(err).Msg("failed to persist portfolio snapshot")
	}
	if l.equity != nil && !now.IsZero() {
		l.equity.Append(now.Format("2006-01-02"), int64(snap.Equity()))
	}
}

func portfolioViewFromSnapshot(snap domain.PortfolioSnapshot) risk.PortfolioView {
	byUnderlying := make(map[string]int)
	sectorExposure := make(map[string]money.Paise)
	for _, pos := range snap.Positions {
		byUnderlying[underlyingOf(pos.Symbol)]++
	}
	return risk.PortfolioView{
		Equity:                snap.Equity(),
		AvailableCash:         snap.Cash,
		OpenPositions:         snap.Positions,
		PositionsByUnderlying: byUnderlying,
		SectorExposurePaise:   sectorExposure,
	}
}

// underlyingOf is a placeholder until the catalog-backed lookup is wired
// in by the caller that owns both catalog and symbol.
func underlyingOf(symbol string) string { return symbol }
