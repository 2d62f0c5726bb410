package models

import "time"

// PriceQuote is a normalized 24h ticker snapshot for a logical coin. The
// Source field records which provider produced the data so downstream
// consumers can weigh its quality.
type PriceQuote struct {
	Coin      string    `json:"coin"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Volume24h float64   `json:"volume_24h"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// FundingSnapshot is the current funding state of a perpetual contract.
type FundingSnapshot struct {
	Symbol          string    `json:"symbol"`
	FundingRate     float64   `json:"funding_rate"`
	MarkPrice       float64   `json:"mark_price"`
	NextFundingTime time.Time `json:"next_funding_time"`
	Source          string    `json:"source"`
}

// FundingHistory holds past funding rates ordered oldest first. Binance pays
// every 8 hours, so 21 entries cover roughly seven days.
type FundingHistory []float64

// OpenInterestSnapshot is open interest in base-asset units at a point in time.
type OpenInterestSnapshot struct {
	Symbol       string    `json:"symbol"`
	OpenInterest float64   `json:"open_interest"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
}

// PriceLevel is a single order book entry.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookDepth holds bids sorted descending and asks ascending, as returned
// by the exchange.
type OrderBookDepth struct {
	Symbol       string       `json:"symbol"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	LastUpdateID int64        `json:"last_update_id"`
}

// PricePair couples the spot and perpetual price of the same underlying.
type PricePair struct {
	Spot     float64 `json:"spot"`
	Perp     float64 `json:"perp"`
	Basis    float64 `json:"basis"`
	BasisPct float64 `json:"basis_pct"`
}

// Candle is a single OHLCV bar. Only the fields the pipeline consumes are
// retained after normalization.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceBatch is the result of a multi-coin price fetch. A failed coin lands
// in Errors without affecting the others.
type PriceBatch struct {
	Prices    map[string]*PriceQuote `json:"prices"`
	Errors    []CoinError            `json:"errors"`
	Timestamp time.Time              `json:"timestamp"`
}

// CoinError records why a single coin could not be fetched.
type CoinError struct {
	Coin  string `json:"coin"`
	Error string `json:"error"`
}
