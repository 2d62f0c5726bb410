package exchange

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	sdkapi "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	futuresmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/futures/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"

	"liqflow/internal/apierr"
	"liqflow/internal/models"
	"liqflow/internal/ratelimit"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// KucoinClient talks to the KuCoin spot REST API for price and candle data.
type KucoinClient struct {
	baseURL string
	http    *http.Client
	exec    *ratelimit.Executor
	log     *logger.Log
}

// NewKucoinClient builds a spot client against the given base URL.
func NewKucoinClient(baseURL string, timeout time.Duration, exec *ratelimit.Executor) *KucoinClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KucoinClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		exec:    exec,
		log:     logger.GetLogger(),
	}
}

func (c *KucoinClient) get(ctx context.Context, endpoint, url string, out interface{}) error {
	return c.exec.Execute(ctx, endpoint, func(ctx context.Context) error {
		return getJSON(ctx, c.http, endpoint, url, out)
	})
}

type kucoinStatsResp struct {
	Code string `json:"code"`
	Data struct {
		Last       string `json:"last"`
		ChangeRate string `json:"changeRate"`
		High       string `json:"high"`
		Low        string `json:"low"`
		VolValue   string `json:"volValue"`
	} `json:"data"`
}

// Stats fetches the 24 hour market statistics for a coin.
func (c *KucoinClient) Stats(ctx context.Context, coin string) (*models.PriceQuote, error) {
	const endpoint = "api/v1/market/stats"
	url := fmt.Sprintf("%s/%s?symbol=%s", c.baseURL, endpoint, symbols.KucoinPair(coin))

	var resp kucoinStatsResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, apierr.Wrap(endpoint, fmt.Errorf("kucoin code %s", resp.Code))
	}

	last, err := parseFloat(endpoint, "last", resp.Data.Last)
	if err != nil {
		return nil, err
	}
	changeRate, _ := parseFloat(endpoint, "changeRate", resp.Data.ChangeRate)
	high, _ := parseFloat(endpoint, "high", resp.Data.High)
	low, _ := parseFloat(endpoint, "low", resp.Data.Low)
	volume, _ := parseFloat(endpoint, "volValue", resp.Data.VolValue)

	return &models.PriceQuote{
		Coin:      coin,
		Price:     last,
		Change24h: changeRate * 100,
		High24h:   high,
		Low24h:    low,
		Volume24h: volume,
		Source:    "kucoin",
		Timestamp: time.Now().UTC(),
	}, nil
}

type kucoinCandlesResp struct {
	Code string     `json:"code"`
	Data [][]string `json:"data"`
}

// DailyCandles fetches daily candles, oldest first. KuCoin returns rows
// newest first with string fields [ts, open, close, high, low, volume,
// turnover]; note close sits at index 2.
func (c *KucoinClient) DailyCandles(ctx context.Context, coin string, days int) ([]models.Candle, error) {
	const endpoint = "api/v1/market/candles"
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	url := fmt.Sprintf("%s/%s?type=1day&symbol=%s&startAt=%d&endAt=%d",
		c.baseURL, endpoint, symbols.KucoinPair(coin), start.Unix(), end.Unix())

	var resp kucoinCandlesResp
	if err := c.get(ctx, endpoint, url, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, apierr.Wrap(endpoint, fmt.Errorf("kucoin code %s", resp.Code))
	}

	candles := make([]models.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 6 {
			continue
		}
		ts, _ := asFloat(row[0])
		open, _ := asFloat(row[1])
		closePx, ok := asFloat(row[2])
		if !ok {
			continue
		}
		high, _ := asFloat(row[3])
		low, _ := asFloat(row[4])
		volume, _ := asFloat(row[5])
		candles = append(candles, models.Candle{
			OpenTime: time.Unix(int64(ts), 0).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePx,
			Volume:   volume,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

// SevenDayReturn computes the seven day percentage move from daily candles.
func (c *KucoinClient) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	candles, err := c.DailyCandles(ctx, coin, 8)
	if err != nil {
		return 0, err
	}
	if len(candles) < 2 {
		return 0, fmt.Errorf("kucoin candles: need at least 2 candles for %s, got %d", coin, len(candles))
	}
	first := candles[0].Close
	last := candles[len(candles)-1].Close
	if first == 0 {
		return 0, fmt.Errorf("kucoin candles: zero base close for %s", coin)
	}
	return (last - first) / first * 100, nil
}

// KucoinFuturesClient reads open interest from the KuCoin futures API via
// the official SDK. Used as the fallback when Binance open interest is
// unavailable.
type KucoinFuturesClient struct {
	marketAPI futuresmarket.MarketAPI
	exec      *ratelimit.Executor
	log       *logger.Log
}

// NewKucoinFuturesClient initialises the SDK-backed futures client.
func NewKucoinFuturesClient(baseURL string, timeout time.Duration, exec *ratelimit.Executor) *KucoinFuturesClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(10).
		SetMaxIdleConnsPerHost(10).
		SetMaxConnsPerHost(10).
		SetIdleConnTimeout(90 * time.Second).
		SetTimeout(timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithFuturesEndpoint(baseURL).
		WithTransportOption(transportOpt).
		Build()

	client := sdkapi.NewClient(option)

	return &KucoinFuturesClient{
		marketAPI: client.RestService().GetFuturesService().GetMarketAPI(),
		exec:      exec,
		log:       logger.GetLogger(),
	}
}

// OpenInterest fetches the perpetual contract open interest for a coin.
func (c *KucoinFuturesClient) OpenInterest(ctx context.Context, coin string) (*models.OpenInterestSnapshot, error) {
	const endpoint = "kucoin/futures/symbol"
	symbol := symbols.KucoinFuturesSymbol(coin)

	var snapshot *models.OpenInterestSnapshot
	err := c.exec.Execute(ctx, endpoint, func(ctx context.Context) error {
		req := futuresmarket.NewGetSymbolReqBuilder().SetSymbol(symbol).Build()
		resp, err := c.marketAPI.GetSymbol(req, ctx)
		if err != nil {
			return apierr.Wrap(endpoint, err)
		}
		if resp == nil {
			return apierr.Wrap(endpoint, fmt.Errorf("empty response for symbol %s", symbol))
		}
		oi, err := parseFloat(endpoint, "openInterest", resp.OpenInterest)
		if err != nil {
			return err
		}
		snapshot = &models.OpenInterestSnapshot{
			Symbol:       symbols.ToBinance("kucoin", resp.Symbol),
			OpenInterest: oi,
			Source:       "kucoin",
			Timestamp:    time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
