package ratelimit

import (
	"context"

	futures "github.com/adshao/go-binance/v2/futures"
)

// DetectWeightLimit queries the Binance futures exchangeInfo endpoint for the
// REQUEST_WEIGHT per-minute limit. Returns 0 when the limit cannot be
// determined, in which case the configured default stays in effect.
func DetectWeightLimit(ctx context.Context, client *futures.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}
