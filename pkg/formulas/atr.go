package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateATR calculates the Average True Range over highs/lows/closes,
// used by PositionSizer to scale position size down in volatile symbols.
//
// Returns the current ATR value or nil if insufficient data.
func CalculateATR(highs, lows, closes []float64, length int) *float64 {
	if len(highs) < length+1 || len(lows) < length+1 || len(closes) < length+1 {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, length)

	if len(atr) > 0 && !isNaN(atr[len(atr)-1]) {
		result := atr[len(atr)-1]
		return &result
	}

	return nil
}
