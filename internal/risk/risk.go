// Package risk implements the pre-trade RiskGate: eight ordered checks,
// first failure wins, every approval and rejection logged for audit.
package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
	"github.com/ktgogineni08-hub/nifty-trader/internal/marketclock"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

// Config holds every tunable threshold the gate checks against, loaded
// once at startup — never read from the environment mid-tick.
type Config struct {
	TradingEnabled        bool
	MaxPositionsPerIndex   int
	MaxRiskPctPerTrade     float64 // of equity
	MinRiskRewardRatio     float64 // default 1.5
	MaxSectorExposurePct   float64
	BannedSymbols          map[string]bool
}

func DefaultConfig() Config {
	return Config{
		TradingEnabled:       true,
		MaxPositionsPerIndex: 3,
		MaxRiskPctPerTrade:   0.01,
		MinRiskRewardRatio:   1.5,
		MaxSectorExposurePct: 0.30,
		BannedSymbols:        map[string]bool{},
	}
}

// Proposal is a candidate trade the gate evaluates before it reaches the executor.
type Proposal struct {
	Symbol         string
	Underlying     string
	Side           domain.Side
	Quantity       int
	EntryPrice     money.Paise
	StopPrice      money.Paise
	TargetPrice    money.Paise
	Sector         string
	EstimatedFee   money.Paise
	RequiredMargin money.Paise
}

// PortfolioView is the minimal read-only slice of ledger state the gate needs.
type PortfolioView struct {
	Equity             money.Paise
	AvailableCash       money.Paise
	OpenPositions       []domain.Position
	PositionsByUnderlying map[string]int
	SectorExposurePaise map[string]money.Paise
}

// Gate runs the eight ordered pre-trade checks.
type Gate struct {
	mu     sync.Mutex
	cfg    Config
	clock  *marketclock.Clock
	log    zerolog.Logger
}

func New(cfg Config, clock *marketclock.Clock, log zerolog.Logger) *Gate {
	return &Gate{cfg: cfg, clock: clock, log: log.With().Str("component", "risk").Logger()}
}

// Decision is the outcome of Evaluate: either approved, or rejected with
// the specific check name that failed.
type Decision struct {
	Approved bool
	Reason   string
}

// Evaluate runs all eight checks in order and returns on the first failure.
func (g *Gate) Evaluate(p Proposal, pv PortfolioView) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	checks := []func(Proposal, PortfolioView) error{
		g.checkModeAndHours,
		g.checkBanList,
		g.checkDuplicatePosition,
		g.checkPerIndexCap,
		g.checkPerTradeRisk,
		g.checkRiskReward,
		g.checkSectorExposure,
		g.checkMarginCash,
	}

	for _, check := range checks {
		if err := check(p, pv); err != nil {
			g.log.Warn().Str("symbol", p.Symbol).Err(err).Msg("risk gate rejected proposal")
			return Decision{Approved: false, Reason: err.Error()}, errs.New(errs.RiskRejected, "risk.Evaluate", err)
		}
	}

	g.log.Info().Str("symbol", p.Symbol).Int("qty", p.Quantity).Msg("risk gate approved proposal")
	return Decision{Approved: true}, nil
}

func (g *Gate) checkModeAndHours(p Proposal, pv PortfolioView) error {
	if !g.cfg.TradingEnabled {
		return fmt.Errorf("trading disabled by config")
	}
	state := g.clock.CurrentState()
	if !state.IsTradable() {
		return fmt.Errorf("market not open for entries (state=%s)", state)
	}
	return nil
}

func (g *Gate) checkBanList(p Proposal, pv PortfolioView) error {
	if g.cfg.BannedSymbols[p.Symbol] || g.cfg.BannedSymbols[p.Underlying] {
		return fmt.Errorf("%s is on the ban list", p.Symbol)
	}
	return nil
}

func (g *Gate) checkDuplicatePosition(p Proposal, pv PortfolioView) error {
	for _, pos := range pv.OpenPositions {
		if pos.Symbol == p.Symbol && pos.Quantity != 0 {
			return fmt.Errorf("already holding a position in %s", p.Symbol)
		}
	}
	return nil
}

func (g *Gate) checkPerIndexCap(p Proposal, pv PortfolioView) error {
	if pv.PositionsByUnderlying[p.Underlying] >= g.cfg.MaxPositionsPerIndex {
		return fmt.Errorf("max positions per index (%d) reached for %s", g.cfg.MaxPositionsPerIndex, p.Underlying)
	}
	return nil
}

func (g *Gate) checkPerTradeRisk(p Proposal, pv PortfolioView) error {
	stopDistance := (p.EntryPrice - p.StopPrice).Abs()
	riskAmount := stopDistance.MulQty(p.Quantity)
	maxRisk := pv.Equity.ProportionOf(int(g.cfg.MaxRiskPctPerTrade*1e6), 1e6)
	if riskAmount > maxRisk {
		return fmt.Errorf("trade risk %s exceeds per-trade cap %s", riskAmount, maxRisk)
	}
	return nil
}

func (g *Gate) checkRiskReward(p Proposal, pv PortfolioView) error {
	stopDistance := (p.EntryPrice - p.StopPrice).Abs()
	rewardDistance := (p.TargetPrice - p.EntryPrice).Abs()
	if stopDistance == 0 {
		return fmt.Errorf("zero stop distance, cannot evaluate risk:reward")
	}
	ratio := float64(rewardDistance) / float64(stopDistance)
	if ratio < g.cfg.MinRiskRewardRatio {
		return fmt.Errorf("risk:reward %.2f below minimum %.2f", ratio, g.cfg.MinRiskRewardRatio)
	}
	return nil
}

func (g *Gate) checkSectorExposure(p Proposal, pv PortfolioView) error {
	if p.Sector == "" {
		return nil
	}
	current := pv.SectorExposurePaise[p.Sector]
	proposed := current + p.EntryPrice.MulQty(p.Quantity)
	maxExposure := pv.Equity.ProportionOf(int(g.cfg.MaxSectorExposurePct*1e6), 1e6)
	if proposed > maxExposure {
		return fmt.Errorf("sector %s exposure %s would exceed cap %s", p.Sector, proposed, maxExposure)
	}
	return nil
}

// checkMarginCash gates against the broker's own product-specific margin
// requirement (full notional for delivery equity, a leveraged fraction for
// intraday equity and F&O), not a blanket full-notional check.
func (g *Gate) checkMarginCash(p Proposal, pv PortfolioView) error {
	required := p.RequiredMargin + p.EstimatedFee
	if required > pv.AvailableCash {
		return fmt.Errorf("required margin %s exceeds available cash %s", required, pv.AvailableCash)
	}
	return nil
}

// UpdateConfig swaps the active config, e.g. a ban-list refresh job.
func (g *Gate) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}
