package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"liqflow/internal/models"
	"liqflow/internal/ratelimit"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// BinanceClient talks to the Binance spot and USD-M futures REST APIs. All
// calls flow through the shared rate-limited executor so the combined request
// weight stays inside the per-minute budget.
type BinanceClient struct {
	spotURL    string
	futuresURL string
	http       *http.Client
	exec       *ratelimit.Executor
	log        *logger.Log
}

// NewBinanceClient builds a client against the given base URLs.
func NewBinanceClient(spotURL, futuresURL string, timeout time.Duration, exec *ratelimit.Executor) *BinanceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinanceClient{
		spotURL:    spotURL,
		futuresURL: futuresURL,
		http:       &http.Client{Timeout: timeout},
		exec:       exec,
		log:        logger.GetLogger(),
	}
}

func (c *BinanceClient) get(ctx context.Context, endpoint, url string, out interface{}) error {
	return c.exec.Execute(ctx, endpoint, func(ctx context.Context) error {
		return getJSON(ctx, c.http, endpoint, url, out)
	})
}

type binanceTicker24hResp struct {
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Ticker24h fetches the 24 hour spot ticker for a coin.
func (c *BinanceClient) Ticker24h(ctx context.Context, coin string) (*models.PriceQuote, error) {
	const endpoint = "api/v3/ticker/24hr"
	symbol := symbols.BinancePair(coin)
	url := fmt.Sprintf("%s/%s?symbol=%s", c.spotURL, endpoint, symbol)

	var resp binanceTicker24hResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}

	price, err := parseFloat(endpoint, "lastPrice", resp.LastPrice)
	if err != nil {
		return nil, err
	}
	change, err := parseFloat(endpoint, "priceChangePercent", resp.PriceChangePercent)
	if err != nil {
		return nil, err
	}
	high, _ := parseFloat(endpoint, "highPrice", resp.HighPrice)
	low, _ := parseFloat(endpoint, "lowPrice", resp.LowPrice)
	volume, _ := parseFloat(endpoint, "quoteVolume", resp.QuoteVolume)

	return &models.PriceQuote{
		Coin:      coin,
		Price:     price,
		Change24h: change,
		High24h:   high,
		Low24h:    low,
		Volume24h: volume,
		Source:    "binance",
		Timestamp: time.Now().UTC(),
	}, nil
}

// Klines fetches spot candles. Rows arrive as mixed-type JSON arrays; only
// the fields the pipeline consumes are extracted.
func (c *BinanceClient) Klines(ctx context.Context, coin, interval string, limit int) ([]models.Candle, error) {
	const endpoint = "api/v3/klines"
	symbol := symbols.BinancePair(coin)
	url := fmt.Sprintf("%s/%s?symbol=%s&interval=%s&limit=%d", c.spotURL, endpoint, symbol, interval, limit)

	var rows [][]interface{}
	if err := c.get(ctx, endpoint, url, &rows); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, _ := asFloat(row[0])
		open, _ := asFloat(row[1])
		high, _ := asFloat(row[2])
		low, _ := asFloat(row[3])
		closePx, ok := asFloat(row[4])
		if !ok {
			continue
		}
		volume, _ := asFloat(row[5])
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePx,
			Volume:   volume,
		})
	}
	return candles, nil
}

// SevenDayReturn computes the percentage move over the last seven daily
// closes from spot klines.
func (c *BinanceClient) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	candles, err := c.Klines(ctx, coin, "1d", 8)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("binance klines: need at least 2 candles for %s, got %d", coin, len(candles))
	}
	first := candles[0].Close
	last := candles[len(candles)-1].Close
	if first == 0 {
		return 0, fmt.Errorf("binance klines: zero base close for %s", coin)
	}
	return (last - first) / first * 100, nil
}

type binancePriceResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// SpotPrice fetches the current spot price for a symbol.
func (c *BinanceClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	const endpoint = "api/v3/ticker/price"
	url := fmt.Sprintf("%s/%s?symbol=%s", c.spotURL, endpoint, symbol)

	var resp binancePriceResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return 0, err
	}
	return parseFloat(endpoint, "price", resp.Price)
}

// PerpPrice fetches the current perpetual futures price for a symbol.
func (c *BinanceClient) PerpPrice(ctx context.Context, symbol string) (float64, error) {
	const endpoint = "fapi/v1/ticker/price"
	url := fmt.Sprintf("%s/%s?symbol=%s", c.futuresURL, endpoint, symbol)

	var resp binancePriceResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return 0, err
	}
	return parseFloat(endpoint, "price", resp.Price)
}

// PricePair fetches spot and perp prices and derives the basis.
func (c *BinanceClient) PricePair(ctx context.Context, symbol string) (*models.PricePair, error) {
	spot, err := c.SpotPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	perp, err := c.PerpPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	pair := &models.PricePair{Spot: spot, Perp: perp, Basis: perp - spot}
	if spot > 0 {
		pair.BasisPct = (perp - spot) / spot * 100
	}
	return pair, nil
}

type binanceOpenInterestResp struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}

// OpenInterest fetches the current futures open interest in contracts.
func (c *BinanceClient) OpenInterest(ctx context.Context, symbol string) (*models.OpenInterestSnapshot, error) {
	const endpoint = "fapi/v1/openInterest"
	url := fmt.Sprintf("%s/%s?symbol=%s", c.futuresURL, endpoint, symbol)

	var resp binanceOpenInterestResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	oi, err := parseFloat(endpoint, "openInterest", resp.OpenInterest)
	if err != nil {
		return nil, err
	}
	return &models.OpenInterestSnapshot{
		Symbol:       symbol,
		OpenInterest: oi,
		Source:       "binance",
		Timestamp:    time.UnixMilli(resp.Time).UTC(),
	}, nil
}

type binancePremiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// PremiumIndex fetches the current funding rate and mark price.
func (c *BinanceClient) PremiumIndex(ctx context.Context, symbol string) (*models.FundingSnapshot, error) {
	const endpoint = "fapi/v1/premiumIndex"
	url := fmt.Sprintf("%s/%s?symbol=%s", c.futuresURL, endpoint, symbol)

	var resp binancePremiumIndexResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	rateVal, err := parseFloat(endpoint, "lastFundingRate", resp.LastFundingRate)
	if err != nil {
		return nil, err
	}
	mark, _ := parseFloat(endpoint, "markPrice", resp.MarkPrice)

	return &models.FundingSnapshot{
		Symbol:          symbol,
		FundingRate:     rateVal,
		MarkPrice:       mark,
		NextFundingTime: time.UnixMilli(resp.NextFundingTime).UTC(),
		Source:          "binance",
	}, nil
}

type binanceFundingRateEntry struct {
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// FundingHistory fetches the most recent historical funding rates, oldest
// first. Binance pays funding every 8 hours, so 21 entries cover a week.
func (c *BinanceClient) FundingHistory(ctx context.Context, symbol string, limit int) (models.FundingHistory, error) {
	const endpoint = "fapi/v1/fundingRate"
	if limit <= 0 {
		limit = 21
	}
	url := fmt.Sprintf("%s/%s?symbol=%s&limit=%d", c.futuresURL, endpoint, symbol, limit)

	var rows []binanceFundingRateEntry
	if err := c.get(ctx, endpoint, url, &rows); err != nil {
		return nil, err
	}

	history := make(models.FundingHistory, 0, len(rows))
	for _, row := range rows {
		f, err := parseFloat(endpoint, "fundingRate", row.FundingRate)
		if err != nil {
			continue
		}
		history = append(history, f)
	}
	return history, nil
}

type binanceDepthResp struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Depth fetches the futures order book. This is the heaviest REST call the
// pipeline makes (weight 10 at limit 1000).
func (c *BinanceClient) Depth(ctx context.Context, symbol string, limit int) (*models.OrderBookDepth, error) {
	const endpoint = "fapi/v1/depth"
	if limit <= 0 {
		limit = 1000
	}
	url := fmt.Sprintf("%s/%s?symbol=%s&limit=%d", c.futuresURL, endpoint, symbol, limit)

	var resp binanceDepthResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}

	book := &models.OrderBookDepth{
		Symbol:       symbol,
		LastUpdateID: resp.LastUpdateID,
		Bids:         parseLevels(resp.Bids),
		Asks:         parseLevels(resp.Asks),
	}
	return book, nil
}

func parseLevels(raw [][]string) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, ok1 := asFloat(pair[0])
		qty, ok2 := asFloat(pair[1])
		if !ok1 || !ok2 {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
