package aggregator

import (
	"context"

	"liqflow/internal/exchange"
	"liqflow/internal/models"
)

// PriceSource is one provider in the fallback chain. Price returns a spot
// quote; SevenDayReturn returns the weekly percentage move.
type PriceSource interface {
	Name() string
	Price(ctx context.Context, coin string) (*models.PriceQuote, error)
	SevenDayReturn(ctx context.Context, coin string) (float64, error)
}

// OpenInterestSource is one provider of futures open interest.
type OpenInterestSource interface {
	Name() string
	OpenInterest(ctx context.Context, coin string) (*models.OpenInterestSnapshot, error)
}

type binanceSource struct{ c *exchange.BinanceClient }

func (s binanceSource) Name() string { return "binance" }
func (s binanceSource) Price(ctx context.Context, coin string) (*models.PriceQuote, error) {
	return s.c.Ticker24h(ctx, coin)
}
func (s binanceSource) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	return s.c.SevenDayReturn(ctx, coin)
}

type okxSource struct{ c *exchange.OkxClient }

func (s okxSource) Name() string { return "okx" }
func (s okxSource) Price(ctx context.Context, coin string) (*models.PriceQuote, error) {
	return s.c.Ticker(ctx, coin)
}
func (s okxSource) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	return s.c.SevenDayReturn(ctx, coin)
}

type kucoinSource struct{ c *exchange.KucoinClient }

func (s kucoinSource) Name() string { return "kucoin" }
func (s kucoinSource) Price(ctx context.Context, coin string) (*models.PriceQuote, error) {
	return s.c.Stats(ctx, coin)
}
func (s kucoinSource) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	return s.c.SevenDayReturn(ctx, coin)
}

type coingeckoSource struct{ c *exchange.CoingeckoClient }

func (s coingeckoSource) Name() string { return "coingecko" }
func (s coingeckoSource) Price(ctx context.Context, coin string) (*models.PriceQuote, error) {
	return s.c.SimplePrice(ctx, coin)
}
func (s coingeckoSource) SevenDayReturn(ctx context.Context, coin string) (float64, error) {
	return s.c.SevenDayReturn(ctx, coin)
}

// BuildSources assembles the fallback chain in the configured priority
// order. Unknown names are skipped; nil clients are skipped too so a partial
// wiring still works.
func BuildSources(priority []string, b *exchange.BinanceClient, o *exchange.OkxClient, k *exchange.KucoinClient, g *exchange.CoingeckoClient) []PriceSource {
	sources := make([]PriceSource, 0, len(priority))
	for _, name := range priority {
		switch name {
		case "binance":
			if b != nil {
				sources = append(sources, binanceSource{b})
			}
		case "okx":
			if o != nil {
				sources = append(sources, okxSource{o})
			}
		case "kucoin":
			if k != nil {
				sources = append(sources, kucoinSource{k})
			}
		case "coingecko":
			if g != nil {
				sources = append(sources, coingeckoSource{g})
			}
		}
	}
	return sources
}
