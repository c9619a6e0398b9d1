package portfolio

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, 0.0, sanitize(math.Inf(1)))
	assert.Equal(t, 0.0, sanitize(math.Inf(-1)))
	assert.Equal(t, 0.0, sanitize(math.NaN()))
	assert.Equal(t, 5.0, sanitize(5.0))
}

func TestCalculateRiskMetrics_TooShortCurveIsZeroValue(t *testing.T) {
	assert.Equal(t, RiskMetrics{}, calculateRiskMetrics(nil, DefaultRiskParameters()))
	assert.Equal(t, RiskMetrics{}, calculateRiskMetrics([]DailyEquity{{Date: "2024-01-01", Equity: 100}}, DefaultRiskParameters()))
}

func TestCalculateRiskMetrics_MaxDrawdown(t *testing.T) {
	curve := []DailyEquity{
		{Date: "2024-01-01", Equity: 10000000},
		{Date: "2024-01-02", Equity: 12000000},
		{Date: "2024-01-03", Equity: 8000000},
		{Date: "2024-01-04", Equity: 11000000},
	}

	m := calculateRiskMetrics(curve, DefaultRiskParameters())
	// peak 12000000 reached on day 2, trough 8000000 on day 3: (12M-8M)/12M = 1/3
	assert.InDelta(t, 1.0/3.0, m.MaxDrawdown, 0.0001)
	// a curve with both a rally and a drop has nonzero volatility
	assert.Greater(t, m.Volatility, 0.0)
}

func TestCalculateTradeMetrics(t *testing.T) {
	trades := []domain.Trade{
		{Side: domain.SideBuy, Fees: money.Rupees(1), RealizedPnL: 0},                    // opening fill, not counted as win/loss
		{Side: domain.SideSell, Fees: money.Rupees(1), RealizedPnL: money.Rupees(100)},   // win
		{Side: domain.SideSell, Fees: money.Rupees(1), RealizedPnL: -money.Rupees(40)},   // loss
		{Side: domain.SideSell, Fees: money.Rupees(1), RealizedPnL: money.Rupees(20)},    // win
	}

	m := calculateTradeMetrics(trades)
	assert.Equal(t, 4, m.TradeCount)
	assert.Equal(t, 2, m.WinCount)
	assert.Equal(t, 1, m.LossCount)
	assert.InDelta(t, 200.0/3.0, m.WinRatePct, 0.001) // 2 of 3 decided trades
	assert.Equal(t, int64(money.Rupees(80)), m.GrossPnLPaise)
	assert.Equal(t, int64(money.Rupees(4)), m.TotalFees)
}

func TestCalculateTradeMetrics_NoDecidedTradesHasZeroWinRate(t *testing.T) {
	trades := []domain.Trade{{Side: domain.SideBuy, RealizedPnL: 0}}
	m := calculateTradeMetrics(trades)
	assert.Equal(t, 0.0, m.WinRatePct)
}

func TestBuildReport_PeriodFromCurve(t *testing.T) {
	s := NewService(zerolog.Nop())
	curve := []DailyEquity{
		{Date: "2024-01-01", Equity: 10000000},
		{Date: "2024-01-02", Equity: 10500000},
		{Date: "2024-01-03", Equity: 10200000},
	}
	trades := []domain.Trade{
		{Side: domain.SideSell, RealizedPnL: money.Rupees(50), Fees: money.Rupees(1)},
	}

	report := s.BuildReport(curve, trades, DefaultRiskParameters())
	require.Equal(t, "2024-01-01", report.Period.StartDate)
	require.Equal(t, "2024-01-03", report.Period.EndDate)
	assert.Equal(t, 3, report.Period.Days)
	assert.Equal(t, 1, report.Trades.TradeCount)
	assert.False(t, report.AsOf.IsZero())
}

func TestBuildReport_EmptyCurveHasZeroPeriod(t *testing.T) {
	s := NewService(zerolog.Nop())
	report := s.BuildReport(nil, nil, DefaultRiskParameters())
	assert.Equal(t, PeriodInfo{}, report.Period)
	assert.Equal(t, RiskMetrics{}, report.Risk)
}
