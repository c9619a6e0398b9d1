// Package signal implements SignalAggregator: combines independent
// strategy votes into one direction/confidence pair via a weighted sum,
// dropping anything that doesn't clear the confidence and agreement bars.
package signal

import "github.com/ktgogineni08-hub/nifty-trader/internal/domain"

// Vote is one strategy's opinion on one symbol.
type Vote struct {
	Strategy string
	Symbol   string
	Direction int     // +1 long, -1 short, 0 no opinion
	Strength  float64 // 0..1, the strategy's own confidence in this call
	Weight    float64 // configured weight for this strategy
}

// Config holds the aggregation thresholds.
type Config struct {
	MinConfidence      float64
	MinAgreeingStrategies int
}

func DefaultConfig() Config {
	return Config{MinConfidence: 0.7, MinAgreeingStrategies: 2}
}

// Signal is the aggregated outcome for one symbol, ready for PositionSizer.
type Signal struct {
	Symbol     string
	Direction  domain.Side
	Confidence float64
	Dropped    bool
	DropReason string
}

// Aggregator combines votes per symbol.
type Aggregator struct {
	cfg Config
}

func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate combines all votes for a single symbol. Callers group votes by
// symbol before calling this.
func (a *Aggregator) Aggregate(symbol string, votes []Vote) Signal {
	var weightedSum, totalWeight float64
	agreeing := 0

	for _, v := range votes {
		if v.Direction == 0 {
			continue
		}
		weightedSum += float64(v.Direction) * v.Strength * v.Weight
		totalWeight += v.Weight
	}

	if totalWeight == 0 {
		return Signal{Symbol: symbol, Dropped: true, DropReason: "no strategy expressed an opinion"}
	}

	score := weightedSum / totalWeight
	confidence := abs(score)
	direction := 1
	if score < 0 {
		direction = -1
	}

	for _, v := range votes {
		if v.Direction == direction {
			agreeing++
		}
	}

	if confidence < a.cfg.MinConfidence {
		return Signal{Symbol: symbol, Dropped: true, DropReason: "confidence below minimum"}
	}
	if agreeing < a.cfg.MinAgreeingStrategies {
		return Signal{Symbol: symbol, Dropped: true, DropReason: "not enough agreeing strategies"}
	}

	side := domain.SideBuy
	if direction < 0 {
		side = domain.SideSell
	}

	return Signal{Symbol: symbol, Direction: side, Confidence: confidence}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
