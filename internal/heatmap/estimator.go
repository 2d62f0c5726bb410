// Package heatmap models where leveraged positions would liquidate and
// assembles the composite heatmap from live and estimated data.
package heatmap

import (
	"fmt"
	"math"
	"sort"

	"liqflow/internal/models"
)

// leverageTiers approximates how open interest distributes across leverage
// levels on retail-heavy perp venues.
var leverageTiers = map[int]float64{
	5:   0.10,
	10:  0.25,
	20:  0.30,
	50:  0.25,
	100: 0.10,
}

// LeverageDistribution returns a copy of the assumed leverage tier weights.
func LeverageDistribution() map[int]float64 {
	out := make(map[int]float64, len(leverageTiers))
	for k, v := range leverageTiers {
		out[k] = v
	}
	return out
}

// LiquidationPrice computes where a position entered at entry with the given
// leverage liquidates, assuming ~90% of margin consumed at liquidation.
func LiquidationPrice(entry float64, leverage int, side models.Side) float64 {
	if leverage <= 0 {
		return entry
	}
	move := 0.9 / float64(leverage)
	if side == models.SideLong {
		return entry * (1 - move)
	}
	return entry * (1 + move)
}

// LongShortRatio infers the long/short split of open interest from the
// funding rate. Positive funding means longs pay shorts, so longs crowd in.
func LongShortRatio(funding float64) (longRatio, shortRatio float64) {
	switch {
	case funding > 0.0005:
		return 0.60, 0.40
	case funding > 0.0002:
		return 0.55, 0.45
	case funding < -0.0005:
		return 0.40, 0.60
	case funding < -0.0002:
		return 0.45, 0.55
	default:
		return 0.50, 0.50
	}
}

// Bucket snaps a price to its $1000 bucket, rounding half away from zero.
func Bucket(price float64) int {
	return int(math.Round(price/1000)) * 1000
}

// Estimate models the liquidation heatmap from current price, open interest
// and funding. Liquidation prices outside ±20% of the current price are
// ignored; everything else lands in $1000 buckets.
func Estimate(currentPrice, oiUSD, funding float64) *models.EstimatedHeatmap {
	longRatio, shortRatio := LongShortRatio(funding)

	h := &models.EstimatedHeatmap{
		LongLiquidations:  make(map[int]float64),
		ShortLiquidations: make(map[int]float64),
		DataType:          "estimated",
		Disclaimer:        "Modeled from open interest and funding, not observed liquidation orders",
		LongRatio:         longRatio,
		ShortRatio:        shortRatio,
	}
	if currentPrice <= 0 || oiUSD <= 0 {
		return h
	}

	lower := currentPrice * 0.8
	upper := currentPrice * 1.2

	for leverage, fraction := range leverageTiers {
		longLiq := LiquidationPrice(currentPrice, leverage, models.SideLong)
		if longLiq >= lower && longLiq <= upper {
			usd := oiUSD * longRatio * fraction
			h.LongLiquidations[Bucket(longLiq)] += usd
			h.TotalLongAtRisk += usd
		}

		shortLiq := LiquidationPrice(currentPrice, leverage, models.SideShort)
		if shortLiq >= lower && shortLiq <= upper {
			usd := oiUSD * shortRatio * fraction
			h.ShortLiquidations[Bucket(shortLiq)] += usd
			h.TotalShortAtRisk += usd
		}
	}
	return h
}

// majorZoneThreshold is the notional above which a bucket counts as a major
// liquidation zone.
const majorZoneThreshold = 500_000_000

// MajorZones extracts buckets holding at least $500M, ordered by distance
// from the current price, closest first, capped at five.
func MajorZones(longLiqs, shortLiqs map[int]float64, currentPrice float64) []models.LiquidationZone {
	if currentPrice <= 0 {
		return nil
	}

	var zones []models.LiquidationZone
	appendZones := func(liqs map[int]float64, side models.Side) {
		for price, usd := range liqs {
			if usd < majorZoneThreshold {
				continue
			}
			zones = append(zones, models.LiquidationZone{
				Price:       price,
				USDValue:    usd,
				Side:        side,
				DistancePct: math.Abs(float64(price)-currentPrice) / currentPrice * 100,
			})
		}
	}
	appendZones(longLiqs, models.SideLong)
	appendZones(shortLiqs, models.SideShort)

	sort.Slice(zones, func(i, j int) bool { return zones[i].DistancePct < zones[j].DistancePct })
	if len(zones) > 5 {
		zones = zones[:5]
	}
	return zones
}

// BuildInsight turns the score and zone layout into a trader-facing summary.
func BuildInsight(score *models.FragilityScore, zones []models.LiquidationZone, est *models.EstimatedHeatmap) *models.HeatmapInsight {
	insight := &models.HeatmapInsight{}

	switch {
	case score.Score >= 75:
		insight.Summary = "CRITICAL: High probability of flash crash/squeeze"
	case score.Score >= 50:
		insight.Summary = "FRAGILE: Expect wicky price action"
	case score.Score >= 25:
		insight.Summary = "CAUTION: Standard market conditions"
	default:
		insight.Summary = "STABLE: Safe for larger positions"
	}

	if len(zones) > 0 {
		nearest := zones[0]
		if nearest.DistancePct < 5 {
			insight.Details = append(insight.Details, fmt.Sprintf(
				"Major %s liquidation zone at $%d, only %.1f%% from price", lower(nearest.Side), nearest.Price, nearest.DistancePct))
		} else if nearest.DistancePct < 10 {
			insight.Details = append(insight.Details, fmt.Sprintf(
				"Liquidation cluster at $%d within 10%% of price", nearest.Price))
		}
	}

	if est != nil {
		if est.TotalShortAtRisk > 0 && est.TotalLongAtRisk > 2*est.TotalShortAtRisk {
			insight.Details = append(insight.Details, "Long liquidations outweigh shorts 2:1, downside cascade risk")
		}
		if est.TotalLongAtRisk > 0 && est.TotalShortAtRisk > 2*est.TotalLongAtRisk {
			insight.Details = append(insight.Details, "Short liquidations outweigh longs 2:1, upside squeeze risk")
		}
	}

	switch {
	case score.Score >= 75:
		insight.Recommendation = "Reduce leverage. Expect high volatility."
	case score.Score >= 50:
		insight.Recommendation = "Use tight stops. Major liq zones nearby."
	case len(zones) > 0 && zones[0].DistancePct < 5:
		insight.Recommendation = "Watch for liquidity sweep at major zone."
	default:
		insight.Recommendation = "Normal trading conditions."
	}

	return insight
}

func lower(side models.Side) string {
	if side == models.SideLong {
		return "long"
	}
	return "short"
}
