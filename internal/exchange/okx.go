package exchange

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"liqflow/internal/apierr"
	"liqflow/internal/models"
	"liqflow/internal/ratelimit"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// OkxClient talks to the OKX public market data REST API. It is the first
// fallback when Binance is unavailable.
type OkxClient struct {
	baseURL string
	http    *http.Client
	exec    *ratelimit.Executor
	log     *logger.Log
}

// NewOkxClient builds a client against the given base URL.
func NewOkxClient(baseURL string, timeout time.Duration, exec *ratelimit.Executor) *OkxClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OkxClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		exec:    exec,
		log:     logger.GetLogger(),
	}
}

func (c *OkxClient) get(ctx context.Context, endpoint, url string, out interface{}) error {
	return c.exec.Execute(ctx, endpoint, func(ctx context.Context) error {
		return getJSON(ctx, c.http, endpoint, url, out)
	})
}

type okxTickerResp struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Last    string `json:"last"`
		Open24h string `json:"open24h"`
		High24h string `json:"high24h"`
		Low24h  string `json:"low24h"`
		VolCcy  string `json:"volCcy24h"`
	} `json:"data"`
}

// Ticker fetches the spot ticker for a coin. OKX wraps errors inside a 200
// response, so the body code is checked as well as the HTTP status.
func (c *OkxClient) Ticker(ctx context.Context, coin string) (*models.PriceQuote, error) {
	const endpoint = "api/v5/market/ticker"
	url := fmt.Sprintf("%s/%s?instId=%s", c.baseURL, endpoint, symbols.OkxInstID(coin))

	var resp okxTickerResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return nil, apierr.Wrap(endpoint, fmt.Errorf("okx code %s: %s", resp.Code, resp.Msg))
	}

	d := resp.Data[0]
	last, err := parseFloat(endpoint, "last", d.Last)
	if err != nil {
		return nil, err
	}
	open, _ := parseFloat(endpoint, "open24h", d.Open24h)
	high, _ := parseFloat(endpoint, "high24h", d.High24h)
	low, _ := parseFloat(endpoint, "low24h", d.Low24h)
	volume, _ := parseFloat(endpoint, "volCcy24h", d.VolCcy)

	var change float64
	if open > 0 {
		change = (last - open) / open * 100
	}

	return &models.PriceQuote{
		Coin:      coin,
		Price:     last,
		Change24h: change,
		High24h:   high,
		Low24h:    low,
		Volume24h: volume,
		Source:    "okx",
		Timestamp: time.Now().UTC(),
	}, nil
}

type okxCandlesResp struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// DailyCandles fetches daily candles, oldest first. OKX returns rows newest
// first, so the result is re-sorted.
func (c *OkxClient) DailyCandles(ctx context.Context, coin string, limit int) ([]models.Candle, error) {
	const endpoint = "api/v5/market/candles"
	url := fmt.Sprintf("%s/%s?instId=%s&bar=1D&limit=%d", c.baseURL, endpoint, symbols.OkxInstID(coin), limit)

	var resp okxCandlesResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, apierr.Wrap(endpoint, fmt.Errorf("okx code %s: %s", resp.Code, resp.Msg))
	}

	candles := make([]models.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 5 {
			continue
		}
		ts, _ := asFloat(row[0])
		open, _ := asFloat(row[1])
		high, _ := asFloat(row[2])
		low, _ := asFloat(row[3])
		closePx, ok := asFloat(row[4])
		if !ok {
			continue
		}
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(int64(ts)).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePx,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

// SevenDayReturn computes the seven day percentage move from daily candles.
func (c *OkxClient) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	candles, err := c.DailyCandles(ctx, coin, 8)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("okx candles: need at least 2 candles for %s, got %d", coin, len(candles))
	}
	first := candles[0].Close
	last := candles[len(candles)-1].Close
	if first == 0 {
		return 0, fmt.Errorf("okx candles: zero base close for %s", coin)
	}
	return (last - first) / first * 100, nil
}
