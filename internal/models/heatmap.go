package models

import "time"

// Fragility levels ordered by severity.
const (
	LevelStable   = "Stable"
	LevelCaution  = "Caution"
	LevelFragile  = "Fragile"
	LevelCritical = "Critical"
)

// FragilityComponent is one of the three sub-scores with display metadata.
type FragilityComponent struct {
	Value       float64 `json:"value"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// FragilityScore is the composite market-stress score. Score and every
// component value are clamped to [0,100].
type FragilityScore struct {
	Score      float64                       `json:"score"`
	Level      string                        `json:"level"`
	Color      string                        `json:"color"`
	Components map[string]FragilityComponent `json:"components"`
	Formula    string                        `json:"formula"`
}

// EstimatedHeatmap maps $1000 price levels to estimated USD at risk per side.
type EstimatedHeatmap struct {
	LongLiquidations  map[int]float64 `json:"long_liquidations"`
	ShortLiquidations map[int]float64 `json:"short_liquidations"`
	TotalLongAtRisk   float64         `json:"total_long_at_risk"`
	TotalShortAtRisk  float64         `json:"total_short_at_risk"`
	DataType          string          `json:"data_type"`
	Disclaimer        string          `json:"disclaimer"`
	LongRatio         float64         `json:"long_ratio"`
	ShortRatio        float64         `json:"short_ratio"`
}

// LiquidationZone is a price bucket whose aggregated at-risk value crossed
// the major-zone threshold.
type LiquidationZone struct {
	Price       int     `json:"price"`
	USDValue    float64 `json:"usd_value"`
	Side        Side    `json:"side"`
	DistancePct float64 `json:"distance_pct"`
}

// HeatmapInsight is derived commentary on the current heatmap.
type HeatmapInsight struct {
	Summary        string   `json:"summary"`
	Details        []string `json:"details"`
	Recommendation string   `json:"recommendation"`
}

// Provenance tags attached to heatmap results.
const (
	SourceBinanceLive       = "binance_live"
	SourceEstimatedFallback = "estimated_fallback"
	SourceHourlyCached      = "hourly_cached"
)

// HeatmapResult is the full output of the heatmap pipeline for one symbol.
// Realized is nil when the liquidation store has no events for the window.
type HeatmapResult struct {
	Symbol       string                  `json:"symbol"`
	CurrentPrice float64                 `json:"current_price"`
	Timestamp    time.Time               `json:"timestamp"`
	Fragility    *FragilityScore         `json:"fragility"`
	Estimated    *EstimatedHeatmap       `json:"estimated_liquidations"`
	Realized     *AggregatedLiquidations `json:"realized_liquidations,omitempty"`
	MajorZones   []LiquidationZone       `json:"major_zones"`
	Insight      *HeatmapInsight         `json:"insight"`
	Source       string                  `json:"source"`
}

// MultiHeatmapResult groups per-symbol results of one sweep.
type MultiHeatmapResult struct {
	Symbols   map[string]*HeatmapResult `json:"symbols"`
	Timestamp time.Time                 `json:"timestamp"`
}
