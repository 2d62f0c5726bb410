// Package aggregator resolves market data across providers with strict
// priority fallback and a short-lived cache.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"liqflow/internal/exchange"
	"liqflow/internal/models"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// Aggregator fans requests out to the configured sources in priority order.
// A successful answer from any source is cached; a lower-priority source is
// only consulted after every higher-priority one has failed.
type Aggregator struct {
	sources []PriceSource
	oi      []OpenInterestSource
	funding *exchange.BinanceClient
	ttl     time.Duration
	log     *logger.Log

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	quote   *models.PriceQuote
	expires time.Time
}

// New builds an aggregator over the given fallback chain. funding may be nil
// when no Binance client is available; funding-rate lookups then fail fast.
func New(sources []PriceSource, oi []OpenInterestSource, funding *exchange.BinanceClient, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Aggregator{
		sources: sources,
		oi:      oi,
		funding: funding,
		ttl:     ttl,
		log:     logger.GetLogger(),
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (a *Aggregator) cached(coin string) *models.PriceQuote {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[coin]
	if !ok || a.now().After(entry.expires) {
		return nil
	}
	return entry.quote
}

func (a *Aggregator) store(coin string, quote *models.PriceQuote) {
	a.mu.Lock()
	a.cache[coin] = cacheEntry{quote: quote, expires: a.now().Add(a.ttl)}
	a.mu.Unlock()
}

// FetchPrice resolves the current price for a coin, trying each source in
// priority order. The first success wins and is cached for the TTL.
func (a *Aggregator) FetchPrice(ctx context.Context, coin string) (*models.PriceQuote, error) {
	coin = strings.ToUpper(coin)
	if quote := a.cached(coin); quote != nil {
		return quote, nil
	}

	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"coin": coin})

	var errs []string
	for _, src := range a.sources {
		quote, err := src.Price(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
			log.WithError(err).WithFields(logger.Fields{"source": src.Name()}).Debug("price source failed, trying next")
			continue
		}
		a.store(coin, quote)
		return quote, nil
	}

	return nil, fmt.Errorf("all price sources failed for %s: %s", coin, strings.Join(errs, "; "))
}

// FetchMultiplePrices resolves prices for several coins concurrently. Per-coin
// failures land in the batch error list instead of failing the whole call.
func (a *Aggregator) FetchMultiplePrices(ctx context.Context, coins []string) *models.PriceBatch {
	batch := &models.PriceBatch{
		Prices:    make(map[string]*models.PriceQuote, len(coins)),
		Timestamp: a.now().UTC(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, coin := range coins {
		coin := strings.ToUpper(coin)
		wg.Add(1)
		go func() {
			defer wg.Done()
			quote, err := a.FetchPrice(ctx, coin)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Errors = append(batch.Errors, models.CoinError{Coin: coin, Error: err.Error()})
				return
			}
			batch.Prices[coin] = quote
		}()
	}
	wg.Wait()
	return batch
}

// FetchFundingRate resolves the current funding rate for a Binance symbol.
// Funding has no cross-exchange fallback: rates are venue-specific.
func (a *Aggregator) FetchFundingRate(ctx context.Context, symbol string) (*models.FundingSnapshot, error) {
	if a.funding == nil {
		return nil, fmt.Errorf("no funding rate source configured")
	}
	return a.funding.PremiumIndex(ctx, symbol)
}

// FetchOpenInterest resolves futures open interest for a coin, falling back
// through the configured sources.
func (a *Aggregator) FetchOpenInterest(ctx context.Context, coin string) (*models.OpenInterestSnapshot, error) {
	coin = strings.ToUpper(coin)
	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"coin": coin})

	var errs []string
	for _, src := range a.oi {
		snap, err := src.OpenInterest(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
			log.WithError(err).WithFields(logger.Fields{"source": src.Name()}).Debug("open interest source failed, trying next")
			continue
		}
		return snap, nil
	}
	return nil, fmt.Errorf("all open interest sources failed for %s: %s", coin, strings.Join(errs, "; "))
}

// Fetch7dReturn resolves the weekly percentage move for a coin through the
// same priority chain as prices.
func (a *Aggregator) Fetch7dReturn(ctx context.Context, coin string) (float64, error) {
	coin = strings.ToUpper(coin)
	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"coin": coin})

	var errs []string
	for _, src := range a.sources {
		ret, err := src.SevenDayReturn(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
			log.WithError(err).WithFields(logger.Fields{"source": src.Name()}).Debug("7d return source failed, trying next")
			continue
		}
		return ret, nil
	}
	return 0, fmt.Errorf("all 7d return sources failed for %s: %s", coin, strings.Join(errs, "; "))
}

// BinanceOISource adapts the Binance client into the open interest chain.
type BinanceOISource struct{ C *exchange.BinanceClient }

func (s BinanceOISource) Name() string { return "binance" }
func (s BinanceOISource) OpenInterest(ctx context.Context, coin string) (*models.OpenInterestSnapshot, error) {
	return s.C.OpenInterest(ctx, symbols.BinancePair(coin))
}

// KucoinOISource adapts the KuCoin futures client into the open interest chain.
type KucoinOISource struct{ C *exchange.KucoinFuturesClient }

func (s KucoinOISource) Name() string { return "kucoin" }
func (s KucoinOISource) OpenInterest(ctx context.Context, coin string) (*models.OpenInterestSnapshot, error) {
	return s.C.OpenInterest(ctx, coin)
}
