package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Liqflow     LiqflowConfig     `yaml:"liqflow"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Aggregator  AggregatorConfig  `yaml:"aggregator"`
	Liquidation LiquidationConfig `yaml:"liquidation"`
	Heatmap     HeatmapConfig     `yaml:"heatmap"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Storage     StorageConfig     `yaml:"storage"`
}

type LiqflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	UsedWeight bool             `yaml:"used_weight"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type RateLimitConfig struct {
	MaxWeightPerMinute int64         `yaml:"max_weight_per_minute"`
	SafeFraction       float64       `yaml:"safe_fraction"`
	MinDelay           time.Duration `yaml:"min_delay"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryBase          time.Duration `yaml:"retry_base"`
	AutoDetect         bool          `yaml:"auto_detect"`
}

type AggregatorConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Priority []string      `yaml:"priority"`
}

type LiquidationConfig struct {
	Enabled       bool              `yaml:"enabled"`
	StreamURL     string            `yaml:"stream_url"`
	BufferSize    int               `yaml:"buffer_size"`
	FlushInterval time.Duration     `yaml:"flush_interval"`
	StoreCapacity int               `yaml:"store_capacity"`
	Symbols       []string          `yaml:"symbols"`
	Bybit         BybitStreamConfig `yaml:"bybit"`
}

type BybitStreamConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

type HeatmapConfig struct {
	Symbols      []string      `yaml:"symbols"`
	LiveTTL      time.Duration `yaml:"live_ttl"`
	FallbackTTL  time.Duration `yaml:"fallback_ttl"`
	FetchStagger time.Duration `yaml:"fetch_stagger"`
	MultiSpacing time.Duration `yaml:"multi_spacing"`
	RefreshEvery time.Duration `yaml:"refresh_every"`
}

type ExchangeConfig struct {
	BinanceSpotURL    string        `yaml:"binance_spot_url"`
	BinanceFuturesURL string        `yaml:"binance_futures_url"`
	OkxURL            string        `yaml:"okx_url"`
	KucoinURL         string        `yaml:"kucoin_url"`
	KucoinFuturesURL  string        `yaml:"kucoin_futures_url"`
	CoingeckoURL      string        `yaml:"coingecko_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{UsedWeight: true},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RateLimit.MaxWeightPerMinute <= 0 {
		cfg.RateLimit.MaxWeightPerMinute = 1200
	}
	if cfg.RateLimit.SafeFraction <= 0 {
		cfg.RateLimit.SafeFraction = 0.8
	}
	if cfg.RateLimit.MinDelay <= 0 {
		cfg.RateLimit.MinDelay = 50 * time.Millisecond
	}
	if cfg.RateLimit.MaxRetries <= 0 {
		cfg.RateLimit.MaxRetries = 3
	}
	if cfg.RateLimit.RetryBase <= 0 {
		cfg.RateLimit.RetryBase = time.Second
	}
	if cfg.Aggregator.CacheTTL <= 0 {
		cfg.Aggregator.CacheTTL = 5 * time.Minute
	}
	if len(cfg.Aggregator.Priority) == 0 {
		cfg.Aggregator.Priority = []string{"binance", "okx", "coingecko"}
	}
	if cfg.Liquidation.StreamURL == "" {
		cfg.Liquidation.StreamURL = "wss://fstream.binance.com/ws/!forceOrder@arr"
	}
	if cfg.Liquidation.BufferSize <= 0 {
		cfg.Liquidation.BufferSize = 50
	}
	if cfg.Liquidation.FlushInterval <= 0 {
		cfg.Liquidation.FlushInterval = 10 * time.Second
	}
	if cfg.Liquidation.StoreCapacity <= 0 {
		cfg.Liquidation.StoreCapacity = 1000
	}
	if cfg.Liquidation.Bybit.URL == "" {
		cfg.Liquidation.Bybit.URL = "wss://stream.bybit.com/v5/public/linear"
	}
	if len(cfg.Heatmap.Symbols) == 0 {
		cfg.Heatmap.Symbols = []string{"BTCUSDT"}
	}
	if cfg.Heatmap.LiveTTL <= 0 {
		cfg.Heatmap.LiveTTL = 5 * time.Minute
	}
	if cfg.Heatmap.FallbackTTL <= 0 {
		cfg.Heatmap.FallbackTTL = time.Minute
	}
	if cfg.Heatmap.FetchStagger <= 0 {
		cfg.Heatmap.FetchStagger = 200 * time.Millisecond
	}
	if cfg.Heatmap.MultiSpacing <= 0 {
		cfg.Heatmap.MultiSpacing = time.Second
	}
	if cfg.Heatmap.RefreshEvery <= 0 {
		cfg.Heatmap.RefreshEvery = time.Hour
	}
	if cfg.Exchange.BinanceSpotURL == "" {
		cfg.Exchange.BinanceSpotURL = "https://api.binance.com"
	}
	if cfg.Exchange.BinanceFuturesURL == "" {
		cfg.Exchange.BinanceFuturesURL = "https://fapi.binance.com"
	}
	if cfg.Exchange.OkxURL == "" {
		cfg.Exchange.OkxURL = "https://www.okx.com"
	}
	if cfg.Exchange.KucoinURL == "" {
		cfg.Exchange.KucoinURL = "https://api.kucoin.com"
	}
	if cfg.Exchange.KucoinFuturesURL == "" {
		cfg.Exchange.KucoinFuturesURL = "https://api-futures.kucoin.com"
	}
	if cfg.Exchange.CoingeckoURL == "" {
		cfg.Exchange.CoingeckoURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Exchange.Timeout <= 0 {
		cfg.Exchange.Timeout = 10 * time.Second
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Liqflow.Name == "" {
		return fmt.Errorf("liqflow.name is required")
	}

	if cfg.Liqflow.Version == "" {
		return fmt.Errorf("liqflow.version is required")
	}

	if cfg.RateLimit.SafeFraction > 1 {
		return fmt.Errorf("rate_limit.safe_fraction must not exceed 1.0")
	}

	for _, src := range cfg.Aggregator.Priority {
		switch src {
		case "binance", "okx", "kucoin", "coingecko":
		default:
			return fmt.Errorf("aggregator.priority contains unknown source '%s'", src)
		}
	}

	if cfg.Heatmap.FallbackTTL > cfg.Heatmap.LiveTTL {
		return fmt.Errorf("heatmap.fallback_ttl must not exceed heatmap.live_ttl")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
