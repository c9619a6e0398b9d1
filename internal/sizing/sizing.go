// Package sizing implements PositionSizer: translates a signal's
// confidence and a stop distance into a lot-aligned order quantity, capped
// by both a max-position-percentage rule and ATR-based volatility.
package sizing

import (
	"github.com/ktgogineni08-hub/nifty-trader/internal/money"
	"github.com/ktgogineni08-hub/nifty-trader/pkg/formulas"
)

// Config holds the sizing thresholds, loaded once at startup.
type Config struct {
	RiskPctPerTrade float64 // fraction of equity risked per trade
	MaxPositionPct  float64 // fraction of equity one position may occupy
	ATRPeriod       int
	ATRVolCapMultiplier float64 // caps quantity when ATR is high relative to price
}

func DefaultConfig() Config {
	return Config{
		RiskPctPerTrade:     0.01,
		MaxPositionPct:      0.20,
		ATRPeriod:           14,
		ATRVolCapMultiplier: 2.0,
	}
}

// Input carries everything the sizer needs for one candidate trade.
type Input struct {
	Equity       money.Paise
	EntryPrice   money.Paise
	StopPrice    money.Paise
	Confidence   float64 // 0..1, from SignalAggregator
	LotSize      int
	Highs, Lows, Closes []float64 // recent OHLC for ATR, newest last
}

// Sizer computes a lot-aligned quantity from risk and volatility bounds.
type Sizer struct {
	cfg Config
}

func New(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the final lot-aligned quantity, or 0 if the inputs don't
// support any position (zero stop distance, zero lot size).
func (s *Sizer) Size(in Input) int {
	if in.LotSize <= 0 {
		return 0
	}
	stopDistance := (in.EntryPrice - in.StopPrice).Abs()
	if stopDistance == 0 {
		return 0
	}

	baseRisk := in.Equity.ProportionOf(int(s.cfg.RiskPctPerTrade*1e6), 1e6)

	confidenceScale := 0.5 + 0.5*in.Confidence
	scaledRisk := money.Paise(float64(baseRisk) * confidenceScale)

	rawQty := int(int64(scaledRisk) / int64(stopDistance))
	if rawQty <= 0 {
		return 0
	}

	qty := lotAlign(rawQty, in.LotSize)
	if qty <= 0 {
		return 0
	}

	// cap by max-position-percentage of equity
	maxNotional := in.Equity.ProportionOf(int(s.cfg.MaxPositionPct*1e6), 1e6)
	maxQtyByNotional := lotAlign(int(int64(maxNotional)/int64(in.EntryPrice)), in.LotSize)
	if maxQtyByNotional < qty {
		qty = maxQtyByNotional
	}

	// cap by ATR-based volatility: when ATR/price is elevated, shrink the
	// position inversely so higher-volatility symbols get smaller size.
	if atr := formulas.CalculateATR(in.Highs, in.Lows, in.Closes, s.cfg.ATRPeriod); atr != nil && *atr > 0 {
		priceFloat := in.EntryPrice.Float()
		if priceFloat > 0 {
			volRatio := *atr / priceFloat
			if volRatio > 0 {
				capQty := int(float64(qty) / (volRatio * s.cfg.ATRVolCapMultiplier * 100))
				capQty = lotAlign(capQty, in.LotSize)
				if capQty > 0 && capQty < qty {
					qty = capQty
				}
			}
		}
	}

	return qty
}

// lotAlign floors qty to the nearest whole number of lots.
func lotAlign(qty, lotSize int) int {
	if lotSize <= 0 {
		return 0
	}
	lots := qty / lotSize
	return lots * lotSize
}
