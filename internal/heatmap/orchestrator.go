package heatmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"liqflow/internal/fragility"
	"liqflow/internal/models"
	"liqflow/logger"
)

// MarketData is the slice of exchange surface the orchestrator needs to
// compose one heatmap. The Binance futures client satisfies it.
type MarketData interface {
	OpenInterest(ctx context.Context, symbol string) (*models.OpenInterestSnapshot, error)
	PremiumIndex(ctx context.Context, symbol string) (*models.FundingSnapshot, error)
	PricePair(ctx context.Context, symbol string) (*models.PricePair, error)
	Depth(ctx context.Context, symbol string, limit int) (*models.OrderBookDepth, error)
	FundingHistory(ctx context.Context, symbol string, limit int) (models.FundingHistory, error)
}

// RealizedStore serves aggregated liquidations observed on the live stream.
type RealizedStore interface {
	Aggregated(symbol string, period time.Duration) *models.AggregatedLiquidations
}

// Options tune orchestrator caching and pacing.
type Options struct {
	// LiveTTL is how long a successfully built heatmap stays fresh.
	LiveTTL time.Duration
	// FallbackTTL is how long a fallback result stays cached, kept short so
	// recovery is quick.
	FallbackTTL time.Duration
	// FetchStagger spaces the REST calls of one composition.
	FetchStagger time.Duration
	// MultiSpacing spaces symbol builds during a sweep.
	MultiSpacing time.Duration
}

func (o Options) withDefaults() Options {
	if o.LiveTTL <= 0 {
		o.LiveTTL = 5 * time.Minute
	}
	if o.FallbackTTL <= 0 {
		o.FallbackTTL = time.Minute
	}
	if o.FetchStagger <= 0 {
		o.FetchStagger = 200 * time.Millisecond
	}
	if o.MultiSpacing <= 0 {
		o.MultiSpacing = time.Second
	}
	return o
}

// Orchestrator composes fragility scores and liquidation heatmaps from live
// market data, with a per-symbol cache and static fallback.
type Orchestrator struct {
	market MarketData
	store  RealizedStore
	opts   Options
	log    *logger.Log

	mu    sync.Mutex
	cache map[string]cacheEntry

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type cacheEntry struct {
	result  *models.HeatmapResult
	expires time.Time
}

// NewOrchestrator builds an orchestrator. store may be nil when no stream
// collector is running; results then carry no realized data.
func NewOrchestrator(market MarketData, store RealizedStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		market: market,
		store:  store,
		opts:   opts.withDefaults(),
		log:    logger.GetLogger(),
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Build composes a fresh heatmap for a symbol from live market data. All
// required inputs must succeed; a missing funding history degrades to a flat
// series instead of failing.
func (o *Orchestrator) Build(ctx context.Context, symbol string) (*models.HeatmapResult, error) {
	log := o.log.WithComponent("heatmap").WithFields(logger.Fields{"symbol": symbol})

	oi, err := o.market.OpenInterest(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("open interest: %w", err)
	}
	if err := o.sleep(ctx, o.opts.FetchStagger); err != nil {
		return nil, err
	}

	funding, err := o.market.PremiumIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("funding: %w", err)
	}
	if err := o.sleep(ctx, o.opts.FetchStagger); err != nil {
		return nil, err
	}

	pair, err := o.market.PricePair(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}
	if err := o.sleep(ctx, o.opts.FetchStagger); err != nil {
		return nil, err
	}

	book, err := o.market.Depth(ctx, symbol, 1000)
	if err != nil {
		return nil, fmt.Errorf("depth: %w", err)
	}
	if err := o.sleep(ctx, o.opts.FetchStagger); err != nil {
		return nil, err
	}

	history, err := o.market.FundingHistory(ctx, symbol, 21)
	if err != nil || len(history) == 0 {
		// funding history is the one optional input: degrade to a flat
		// series around the current rate
		log.WithError(err).Debug("funding history unavailable, using flat series")
		history = models.FundingHistory{}
		for i := 0; i < 7; i++ {
			history = append(history, funding.FundingRate)
		}
	}

	oiUSD := oi.OpenInterest * pair.Perp
	mid := (pair.Spot + pair.Perp) / 2
	depthUSD := fragility.Depth2Pct(book, mid)

	score := fragility.Score(fragility.Inputs{
		OpenInterestUSD: oiUSD,
		DepthUSD:        depthUSD,
		CurrentFunding:  funding.FundingRate,
		FundingHistory:  history,
		SpotPrice:       pair.Spot,
		PerpPrice:       pair.Perp,
	})

	est := Estimate(pair.Perp, oiUSD, funding.FundingRate)
	zones := MajorZones(est.LongLiquidations, est.ShortLiquidations, pair.Perp)

	result := &models.HeatmapResult{
		Symbol:       symbol,
		CurrentPrice: pair.Perp,
		Timestamp:    o.now().UTC(),
		Fragility:    score,
		Estimated:    est,
		MajorZones:   zones,
		Insight:      BuildInsight(score, zones, est),
		Source:       models.SourceBinanceLive,
	}

	if o.store != nil {
		realized := o.store.Aggregated(symbol, 24*time.Hour)
		if realized != nil && realized.Count > 0 {
			result.Realized = realized
		}
	}

	return result, nil
}

// GetHeatmap returns the heatmap for a symbol, serving from cache while
// fresh. When a live build fails the previous result is served as cached
// data if one exists, otherwise a static fallback takes its place.
func (o *Orchestrator) GetHeatmap(ctx context.Context, symbol string) (*models.HeatmapResult, error) {
	o.mu.Lock()
	entry, ok := o.cache[symbol]
	o.mu.Unlock()
	if ok && o.now().Before(entry.expires) {
		return entry.result, nil
	}

	result, err := o.Build(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.log.WithComponent("heatmap").WithFields(logger.Fields{"symbol": symbol}).
			WithError(err).Warn("live heatmap build failed, degrading")

		if ok {
			// serve the stale result rather than inventing data
			stale := *entry.result
			stale.Source = models.SourceHourlyCached
			o.put(symbol, &stale, o.opts.FallbackTTL)
			return &stale, nil
		}

		fallback := o.fallbackResult(symbol)
		o.put(symbol, fallback, o.opts.FallbackTTL)
		return fallback, nil
	}

	o.put(symbol, result, o.opts.LiveTTL)
	return result, nil
}

func (o *Orchestrator) put(symbol string, result *models.HeatmapResult, ttl time.Duration) {
	o.mu.Lock()
	o.cache[symbol] = cacheEntry{result: result, expires: o.now().Add(ttl)}
	o.mu.Unlock()
}

// fallbackDefaults feed the static heatmap when no market data is reachable
// and nothing is cached.
const (
	fallbackPrice = 95000.0
	fallbackOIUSD = 5e9
)

func (o *Orchestrator) fallbackResult(symbol string) *models.HeatmapResult {
	est := Estimate(fallbackPrice, fallbackOIUSD, 0.0001)
	score := fragility.Score(fragility.Inputs{})
	zones := MajorZones(est.LongLiquidations, est.ShortLiquidations, fallbackPrice)

	return &models.HeatmapResult{
		Symbol:       symbol,
		CurrentPrice: fallbackPrice,
		Timestamp:    o.now().UTC(),
		Fragility:    score,
		Estimated:    est,
		MajorZones:   zones,
		Insight:      BuildInsight(score, zones, est),
		Source:       models.SourceEstimatedFallback,
	}
}

// GetMultiHeatmap sweeps several symbols, spacing the builds so the weight
// budget is not drained in one burst. Per-symbol failures are logged and
// skipped.
func (o *Orchestrator) GetMultiHeatmap(ctx context.Context, symbols []string) *models.MultiHeatmapResult {
	out := &models.MultiHeatmapResult{
		Symbols:   make(map[string]*models.HeatmapResult, len(symbols)),
		Timestamp: o.now().UTC(),
	}

	for i, symbol := range symbols {
		if i > 0 {
			if err := o.sleep(ctx, o.opts.MultiSpacing); err != nil {
				return out
			}
		}
		result, err := o.GetHeatmap(ctx, symbol)
		if err != nil {
			o.log.WithComponent("heatmap").WithFields(logger.Fields{"symbol": symbol}).
				WithError(err).Warn("heatmap unavailable during sweep")
			continue
		}
		out.Symbols[symbol] = result
	}
	return out
}

// Refresh rebuilds every symbol and stores the results tagged as cached, so
// later reads within the TTL surface their refresher origin. Run hourly.
func (o *Orchestrator) Refresh(ctx context.Context, symbols []string) {
	log := o.log.WithComponent("heatmap")
	for i, symbol := range symbols {
		if i > 0 {
			if err := o.sleep(ctx, o.opts.MultiSpacing); err != nil {
				return
			}
		}
		result, err := o.Build(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithFields(logger.Fields{"symbol": symbol}).WithError(err).Warn("hourly refresh failed")
			continue
		}
		result.Source = models.SourceHourlyCached
		o.put(symbol, result, o.opts.LiveTTL)
	}
	log.WithFields(logger.Fields{"symbols": len(symbols)}).Info("hourly heatmap refresh complete")
}
