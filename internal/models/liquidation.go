package models

import "time"

// Side identifies which position type was force-closed.
type Side string

const (
	// SideLong marks a liquidated long: the engine force-sold the position.
	SideLong Side = "LONG"
	// SideShort marks a liquidated short: the engine force-bought it back.
	SideShort Side = "SHORT"
)

// LiquidationEvent is a single force-liquidation order normalized from an
// exchange stream. Events are immutable once created; after ingestion they
// are owned by the memory store.
type LiquidationEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Exchange   string    `json:"exchange"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	USDValue   float64   `json:"usd_value"`
	PriceLevel int       `json:"price_level"`
	HourBucket time.Time `json:"hour_bucket"`
}

// CollectorStats are the running counters maintained by a stream collector.
type CollectorStats struct {
	TotalReceived     int64   `json:"total_received"`
	LongLiquidations  int64   `json:"long_liquidations"`
	ShortLiquidations int64   `json:"short_liquidations"`
	TotalUSD          float64 `json:"total_usd"`
	BufferSize        int     `json:"buffer_size"`
	Running           bool    `json:"running"`
}

// AggregatedLiquidations buckets realized liquidations by $1000 price level
// and side over a query window. It is the observed counterpart of the
// estimated heatmap.
type AggregatedLiquidations struct {
	LongLiquidations  map[int]float64 `json:"long_liquidations"`
	ShortLiquidations map[int]float64 `json:"short_liquidations"`
	DataType          string          `json:"data_type"`
	PeriodHours       int             `json:"period_hours"`
	Count             int             `json:"count"`
	TotalUSD          float64         `json:"total_usd"`
}
