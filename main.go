package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/joho/godotenv"

	"liqflow/config"
	"liqflow/internal/aggregator"
	"liqflow/internal/exchange"
	"liqflow/internal/heatmap"
	"liqflow/internal/liquidation"
	"liqflow/internal/ratelimit"
	"liqflow/internal/symbols"
	"liqflow/internal/writer"
	"liqflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Liqflow.Name,
		"version":     cfg.Liqflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting liqflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
		logger.CreateDefaultDashboard(ctx)
	}

	exec := ratelimit.NewExecutor(ratelimit.Config{
		MaxWeightPerMinute: cfg.RateLimit.MaxWeightPerMinute,
		SafeFraction:       cfg.RateLimit.SafeFraction,
		MinDelay:           cfg.RateLimit.MinDelay,
		MaxRetries:         cfg.RateLimit.MaxRetries,
		RetryBase:          cfg.RateLimit.RetryBase,
	})

	if cfg.RateLimit.AutoDetect {
		detectCtx, detectCancel := context.WithTimeout(ctx, 15*time.Second)
		limit, err := ratelimit.DetectWeightLimit(detectCtx, futures.NewClient("", ""))
		detectCancel()
		if err != nil {
			log.WithError(err).Warn("weight limit detection failed, keeping configured limit")
		} else if limit > 0 {
			exec.SetWeightLimit(limit)
		}
	}

	binanceClient := exchange.NewBinanceClient(cfg.Exchange.BinanceSpotURL, cfg.Exchange.BinanceFuturesURL, cfg.Exchange.Timeout, exec)
	okxClient := exchange.NewOkxClient(cfg.Exchange.OkxURL, cfg.Exchange.Timeout, exec)
	kucoinClient := exchange.NewKucoinClient(cfg.Exchange.KucoinURL, cfg.Exchange.Timeout, exec)
	kucoinFutures := exchange.NewKucoinFuturesClient(cfg.Exchange.KucoinFuturesURL, cfg.Exchange.Timeout, exec)
	coingeckoClient := exchange.NewCoingeckoClient(cfg.Exchange.CoingeckoURL, cfg.Exchange.Timeout, exec)

	sources := aggregator.BuildSources(cfg.Aggregator.Priority, binanceClient, okxClient, kucoinClient, coingeckoClient)
	oiSources := []aggregator.OpenInterestSource{
		aggregator.BinanceOISource{C: binanceClient},
		aggregator.KucoinOISource{C: kucoinFutures},
	}
	agg := aggregator.New(sources, oiSources, binanceClient, cfg.Aggregator.CacheTTL)

	store := liquidation.NewStore(cfg.Liquidation.StoreCapacity)

	var sink liquidation.FlushSink
	if cfg.Storage.S3.Enabled {
		s3Sink, err := writer.NewS3Sink(cfg.Storage.S3)
		if err != nil {
			log.WithError(err).Error("failed to create S3 sink")
			os.Exit(1)
		}
		sink = s3Sink
	} else {
		log.WithComponent("main").Info("S3 storage disabled; flushing batches to the log")
		sink = writer.NewLogSink()
	}

	var collector *liquidation.Collector
	if cfg.Liquidation.Enabled {
		collector = liquidation.NewCollector(liquidation.CollectorConfig{
			URL:           cfg.Liquidation.StreamURL,
			BufferSize:    cfg.Liquidation.BufferSize,
			FlushInterval: cfg.Liquidation.FlushInterval,
			Symbols:       cfg.Liquidation.Symbols,
		}, store, sink)
		if err := collector.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start liquidation collector")
			os.Exit(1)
		}
	}

	var bybitCollector *liquidation.BybitCollector
	if cfg.Liquidation.Bybit.Enabled {
		bybitCollector = liquidation.NewBybitCollector(liquidation.BybitConfig{
			URL:     cfg.Liquidation.Bybit.URL,
			Symbols: cfg.Liquidation.Bybit.Symbols,
		}, store)
		if err := bybitCollector.Start(ctx); err != nil {
			log.WithError(err).Warn("bybit liquidation collector failed to start")
			bybitCollector = nil
		}
	}

	orchestrator := heatmap.NewOrchestrator(binanceClient, store, heatmap.Options{
		LiveTTL:      cfg.Heatmap.LiveTTL,
		FallbackTTL:  cfg.Heatmap.FallbackTTL,
		FetchStagger: cfg.Heatmap.FetchStagger,
		MultiSpacing: cfg.Heatmap.MultiSpacing,
	})

	// Warm the price cache for the tracked coins before the first sweep
	coins := make([]string, 0, len(cfg.Heatmap.Symbols))
	for _, sym := range cfg.Heatmap.Symbols {
		coins = append(coins, symbols.Coin(sym))
	}
	batch := agg.FetchMultiplePrices(ctx, coins)
	log.WithComponent("main").WithFields(logger.Fields{
		"prices": len(batch.Prices),
		"errors": len(batch.Errors),
	}).Info("initial price fetch completed")

	multi := orchestrator.GetMultiHeatmap(ctx, cfg.Heatmap.Symbols)
	log.WithComponent("main").WithFields(logger.Fields{
		"symbols": len(multi.Symbols),
	}).Info("initial heatmap sweep completed")

	refreshTicker := time.NewTicker(cfg.Heatmap.RefreshEvery)
	defer refreshTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-refreshTicker.C:
				orchestrator.Refresh(ctx, cfg.Heatmap.Symbols)
			}
		}
	}()

	if cfg.Metrics.UsedWeight {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					log.LogMetric("ratelimit", "used_weight", exec.UsedWeight(), "gauge", nil)
					if collector != nil {
						stats := collector.Stats()
						log.LogMetric("liq_collector", "liquidations_received", stats.TotalReceived, "counter", logger.Fields{
							"buffer_size": stats.BufferSize,
							"total_usd":   stats.TotalUSD,
						})
					}
				}
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		if bybitCollector != nil {
			log.Info("stopping bybit liquidation collector")
			bybitCollector.Stop()
		}
		if collector != nil {
			log.Info("stopping liquidation collector")
			collector.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("liqflow stopped")
}
