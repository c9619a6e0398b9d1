package portfolio

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/pkg/formulas"
)

// RiskParameters are the constants CalculateMetrics needs but the equity
// curve alone doesn't carry.
type RiskParameters struct {
	RiskFreeRate float64
	SortinoMAR   float64
}

func DefaultRiskParameters() RiskParameters {
	return RiskParameters{RiskFreeRate: 0.065, SortinoMAR: 0.0} // 6.5% ~ RBI repo-linked short rate
}

// Service computes risk and trade-outcome metrics from an equity curve and
// trade history the caller already has in hand — it never queries storage
// itself, so it has no circular dependency on ledger or the trade repository.
type Service struct {
	log zerolog.Logger
}

func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("service", "portfolio").Logger()}
}

// BuildReport computes a full Report over curve (oldest first) and trades
// executed within the same window.
func (s *Service) BuildReport(curve []DailyEquity, trades []domain.Trade, params RiskParameters) Report {
	var period PeriodInfo
	if len(curve) > 0 {
		period = PeriodInfo{StartDate: curve[0].Date, EndDate: curve[len(curve)-1].Date, Days: len(curve)}
	}

	return Report{
		Period: period,
		Risk:   calculateRiskMetrics(curve, params),
		Trades: calculateTradeMetrics(trades),
		AsOf:   time.Now(),
	}
}

// calculateRiskMetrics derives daily returns from the equity curve and runs
// them through the Sharpe/Sortino/drawdown formulas.
func calculateRiskMetrics(curve []DailyEquity, params RiskParameters) RiskMetrics {
	if len(curve) < 2 {
		return RiskMetrics{}
	}

	prices := make([]float64, len(curve))
	for i, d := range curve {
		prices[i] = float64(d.Equity)
	}
	returns := formulas.CalculateReturns(prices)

	volatility := sanitize(formulas.AnnualizedVolatility(returns))

	sharpeVal := 0.0
	if sharpe := formulas.CalculateSharpeRatio(returns, params.RiskFreeRate, 252); sharpe != nil {
		sharpeVal = sanitize(*sharpe)
	}

	sortinoVal := 0.0
	if sortino := formulas.CalculateSortinoRatio(returns, params.RiskFreeRate, params.SortinoMAR, 252); sortino != nil {
		sortinoVal = sanitize(*sortino)
	}

	maxDDVal := 0.0
	if maxDD := formulas.CalculateMaxDrawdown(prices); maxDD != nil {
		maxDDVal = sanitize(*maxDD)
	}

	annualReturn := sanitize(formulas.Mean(returns) * 252)
	calmarVal := 0.0
	if maxDDVal != 0 {
		calmarVal = sanitize(annualReturn / math.Abs(maxDDVal))
	}

	return RiskMetrics{
		SharpeRatio:  sharpeVal,
		SortinoRatio: sortinoVal,
		CalmarRatio:  calmarVal,
		Volatility:   volatility,
		MaxDrawdown:  maxDDVal,
	}
}

// calculateTradeMetrics counts wins/losses by realized P&L sign, the
// ApplyFill-level realized P&L booked against each closing fill.
func calculateTradeMetrics(trades []domain.Trade) TradeMetrics {
	var m TradeMetrics
	for _, t := range trades {
		m.TradeCount++
		m.TotalFees += int64(t.Fees)
		if t.RealizedPnL == 0 {
			continue // opening fill, nothing realized yet
		}
		m.GrossPnLPaise += int64(t.RealizedPnL)
		if t.RealizedPnL > 0 {
			m.WinCount++
		} else {
			m.LossCount++
		}
	}
	if decided := m.WinCount + m.LossCount; decided > 0 {
		m.WinRatePct = 100 * float64(m.WinCount) / float64(decided)
	}
	return m
}

func sanitize(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
