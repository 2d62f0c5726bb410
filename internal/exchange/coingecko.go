package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"liqflow/internal/apierr"
	"liqflow/internal/models"
	"liqflow/internal/ratelimit"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// CoingeckoClient is the last-resort price source. It covers coins with no
// derivatives listing but offers no high/low or order book data.
type CoingeckoClient struct {
	baseURL string
	http    *http.Client
	exec    *ratelimit.Executor
	log     *logger.Log
}

// NewCoingeckoClient builds a client against the given base URL.
func NewCoingeckoClient(baseURL string, timeout time.Duration, exec *ratelimit.Executor) *CoingeckoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoingeckoClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		exec:    exec,
		log:     logger.GetLogger(),
	}
}

func (c *CoingeckoClient) get(ctx context.Context, endpoint, url string, out interface{}) error {
	return c.exec.Execute(ctx, endpoint, func(ctx context.Context) error {
		return getJSON(ctx, c.http, endpoint, url, out)
	})
}

// SimplePrice fetches the current USD price and 24h change for a coin.
func (c *CoingeckoClient) SimplePrice(ctx context.Context, coin string) (*models.PriceQuote, error) {
	const endpoint = "simple/price"
	id := symbols.CoingeckoID(coin)
	url := fmt.Sprintf("%s/%s?ids=%s&vs_currencies=usd&include_24hr_change=true&include_24hr_vol=true",
		c.baseURL, endpoint, id)

	var resp map[string]struct {
		USD       float64 `json:"usd"`
		Change24h float64 `json:"usd_24h_change"`
		Vol24h    float64 `json:"usd_24h_vol"`
	}
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}

	entry, ok := resp[id]
	if !ok || entry.USD == 0 {
		return nil, apierr.Wrap(endpoint, fmt.Errorf("no price data for %s", id))
	}

	return &models.PriceQuote{
		Coin:      coin,
		Price:     entry.USD,
		Change24h: entry.Change24h,
		Volume24h: entry.Vol24h,
		Source:    "coingecko",
		Timestamp: time.Now().UTC(),
	}, nil
}

type coingeckoMarketChartResp struct {
	Prices [][]float64 `json:"prices"`
}

// SevenDayReturn computes the seven day percentage move from the daily
// market chart.
func (c *CoingeckoClient) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	endpoint := fmt.Sprintf("coins/%s/market_chart", symbols.CoingeckoID(coin))
	url := fmt.Sprintf("%s/%s?vs_currency=usd&days=7&interval=daily", c.baseURL, endpoint)

	var resp coingeckoMarketChartResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return 0, err
	}
	if len(resp.Prices) < 2 {
		return 0, fmt.Errorf("coingecko market chart: need at least 2 points for %s, got %d", coin, len(resp.Prices))
	}

	first := resp.Prices[0]
	last := resp.Prices[len(resp.Prices)-1]
	if len(first) < 2 || len(last) < 2 || first[1] == 0 {
		return 0, fmt.Errorf("coingecko market chart: malformed price points for %s", coin)
	}
	return (last[1] - first[1]) / first[1] * 100, nil
}
