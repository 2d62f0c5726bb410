// Package fragility computes the market fragility score from open interest,
// order book depth, funding history and the spot/perp basis. All functions
// are pure: inputs in, score out, no I/O.
package fragility

import (
	"math"

	"liqflow/internal/models"
)

// Depth2Pct sums the USD notional resting within two percent of the mid
// price: bids down to mid*0.98 and asks up to mid*1.02.
func Depth2Pct(book *models.OrderBookDepth, mid float64) float64 {
	if book == nil || mid <= 0 {
		return 0
	}
	lower := mid * 0.98
	upper := mid * 1.02

	var depth float64
	for _, bid := range book.Bids {
		if bid.Price >= lower {
			depth += bid.Price * bid.Quantity
		}
	}
	for _, ask := range book.Asks {
		if ask.Price <= upper {
			depth += ask.Price * ask.Quantity
		}
	}
	return depth
}

// LiquidityDepthScore compares open interest against near-book liquidity.
// A thin book relative to the leveraged positions sitting on it scores high.
// Zero or negative depth means no cushion at all.
func LiquidityDepthScore(oiUSD, depthUSD float64) float64 {
	if depthUSD <= 0 {
		return 100
	}
	return math.Min(100, oiUSD/(depthUSD*10))
}

// FundingStressScore measures how far the current funding rate sits from its
// recent history, in standard deviations. Fewer than three observations or a
// flat history give the neutral midpoint.
func FundingStressScore(current float64, history []float64) float64 {
	if len(history) < 3 {
		return 50
	}

	var sum float64
	for _, f := range history {
		sum += f
	}
	mean := sum / float64(len(history))

	var variance float64
	for _, f := range history {
		d := f - mean
		variance += d * d
	}
	variance /= float64(len(history))
	std := math.Sqrt(variance)
	if std == 0 {
		return 50
	}

	return math.Min(100, math.Abs(current-mean)/std*20)
}

// BasisScore measures spot/perp divergence in tenths of a percent. A missing
// spot price gives the neutral midpoint.
func BasisScore(spot, perp float64) float64 {
	if spot <= 0 {
		return 50
	}
	return math.Min(100, math.Abs(spot-perp)/spot*1000)
}

// Inputs carries everything the scorer needs for one symbol.
type Inputs struct {
	OpenInterestUSD float64
	DepthUSD        float64
	CurrentFunding  float64
	FundingHistory  []float64
	SpotPrice       float64
	PerpPrice       float64
}

// Score combines the three components into the composite fragility score,
// rounded to one decimal.
func Score(in Inputs) *models.FragilityScore {
	ld := LiquidityDepthScore(in.OpenInterestUSD, in.DepthUSD)
	fs := FundingStressScore(in.CurrentFunding, in.FundingHistory)
	bz := BasisScore(in.SpotPrice, in.PerpPrice)

	composite := math.Round((ld+fs+bz)/3*10) / 10
	level, color := classify(composite)

	return &models.FragilityScore{
		Score: composite,
		Level: level,
		Color: color,
		Components: map[string]models.FragilityComponent{
			"liquidity_depth": {
				Value:       ld,
				Label:       "Liquidity Depth",
				Description: "Open interest vs order book depth within 2% of mid",
			},
			"funding_stress": {
				Value:       fs,
				Label:       "Funding Stress",
				Description: "Current funding rate deviation from 7-day history",
			},
			"basis_divergence": {
				Value:       bz,
				Label:       "Basis Divergence",
				Description: "Spot vs perpetual price divergence",
			},
		},
		Formula: "mean(liquidity_depth, funding_stress, basis_divergence)",
	}
}

func classify(score float64) (level, color string) {
	switch {
	case score <= 25:
		return models.LevelStable, "#00ff88"
	case score <= 50:
		return models.LevelCaution, "#ffaa00"
	case score <= 75:
		return models.LevelFragile, "#ff6b35"
	default:
		return models.LevelCritical, "#ff4444"
	}
}
