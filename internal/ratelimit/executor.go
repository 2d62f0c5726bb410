// Package ratelimit provides weight-aware admission control and retry for
// outbound exchange requests.
package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"liqflow/internal/apierr"
	"liqflow/logger"
)

// Config controls the executor. Zero fields fall back to the defaults used
// for the Binance futures API.
type Config struct {
	// MaxWeightPerMinute is the provider's stated per-minute weight limit.
	MaxWeightPerMinute int64
	// SafeFraction of the stated limit the executor is allowed to consume.
	SafeFraction float64
	// MinDelay is the minimum spacing between consecutive requests.
	MinDelay time.Duration
	// MaxRetries caps attempts per Execute call.
	MaxRetries int
	// RetryBase is the backoff unit.
	RetryBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWeightPerMinute <= 0 {
		c.MaxWeightPerMinute = 1200
	}
	if c.SafeFraction <= 0 || c.SafeFraction > 1 {
		c.SafeFraction = 0.8
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 50 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	return c
}

// SafeLimit is the weight budget actually honoured per window.
func (c Config) SafeLimit() int64 {
	return int64(float64(c.MaxWeightPerMinute) * c.SafeFraction)
}

// endpointWeights maps endpoint name fragments to request weight. Unlisted
// endpoints cost 1. Order book depth is by far the heaviest call.
var endpointWeights = map[string]int64{
	"ticker/price": 1,
	"openInterest": 1,
	"premiumIndex": 1,
	"fundingRate":  1,
	"depth":        10,
	"klines":       2,
}

// WeightFor returns the weight charged for an endpoint name.
func WeightFor(endpoint string) int64 {
	for key, weight := range endpointWeights {
		if strings.Contains(endpoint, key) {
			return weight
		}
	}
	return 1
}

// Executor serializes admission to a shared per-minute weight budget and
// retries failed operations with reason-dependent backoff. It is safe for
// concurrent use; the weight window is the one piece of state shared by all
// requests flowing through one instance.
type Executor struct {
	cfg   Config
	log   *logger.Log
	pacer *rate.Limiter

	mu          sync.Mutex
	windowStart time.Time
	usedWeight  int64

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewExecutor builds an executor with the given config.
func NewExecutor(cfg Config) *Executor {
	cfg = cfg.withDefaults()
	e := &Executor{
		cfg:   cfg,
		log:   logger.GetLogger(),
		pacer: rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		now:   time.Now,
		sleep: sleepCtx,
	}
	e.windowStart = e.now()
	return e
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

// SetWeightLimit replaces the per-minute limit, keeping the safe fraction.
// Used after auto-detection against the live exchange.
func (e *Executor) SetWeightLimit(limit int64) {
	if limit <= 0 {
		return
	}
	e.mu.Lock()
	e.cfg.MaxWeightPerMinute = limit
	e.mu.Unlock()

	e.log.WithComponent("ratelimit").WithFields(logger.Fields{
		"max_weight_per_minute": limit,
		"safe_limit":            e.cfg.SafeLimit(),
	}).Info("request weight limit updated")
}

// UsedWeight reports the weight consumed in the current window.
func (e *Executor) UsedWeight() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetWindowLocked()
	return e.usedWeight
}

func (e *Executor) resetWindowLocked() {
	if e.now().Sub(e.windowStart) >= time.Minute {
		e.usedWeight = 0
		e.windowStart = e.now()
	}
}

// acquire blocks until the call may proceed: it enforces the minimum
// inter-request delay and the per-minute weight budget. Admission is
// serialized, so a caller waiting out a full window holds back everyone
// behind it, which is exactly the intent.
func (e *Executor) acquire(ctx context.Context, endpoint string) error {
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}

	weight := WeightFor(endpoint)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetWindowLocked()

	if e.usedWeight+weight > e.cfg.SafeLimit() {
		wait := time.Minute - e.now().Sub(e.windowStart) + time.Second
		e.log.WithComponent("ratelimit").WithFields(logger.Fields{
			"endpoint":    endpoint,
			"used_weight": e.usedWeight,
			"safe_limit":  e.cfg.SafeLimit(),
			"wait":        wait.String(),
		}).Warn("approaching weight limit, waiting for window rollover")

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
		e.usedWeight = 0
		e.windowStart = e.now()
	}

	e.usedWeight += weight
	return nil
}

// resetBudget zeroes the window after a throttle response: the provider just
// told us our accounting was wrong.
func (e *Executor) resetBudget() {
	e.mu.Lock()
	e.usedWeight = 0
	e.windowStart = e.now()
	e.mu.Unlock()
}

// Execute runs op under rate limiting, retrying per the error taxonomy:
// rate-limit responses back off exponentially and reset the weight window,
// transient errors back off more gently, and non-retryable errors propagate
// immediately. The last error is returned once the retry ceiling is hit.
func (e *Executor) Execute(ctx context.Context, endpoint string, op func(context.Context) error) error {
	log := e.log.WithComponent("ratelimit").WithFields(logger.Fields{"endpoint": endpoint})

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if err := e.acquire(ctx, endpoint); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		switch apierr.ReasonOf(err) {
		case apierr.ReasonRateLimited:
			wait := time.Duration(float64(e.cfg.RetryBase) * math.Pow(2, float64(attempt)))
			log.WithError(err).WithFields(logger.Fields{
				"attempt": attempt + 1,
				"wait":    wait.String(),
			}).Warn("rate limited, backing off and resetting weight window")
			e.resetBudget()
			if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
				return sleepErr
			}
		case apierr.ReasonNotFound:
			return err
		default:
			if attempt == e.cfg.MaxRetries-1 {
				break
			}
			wait := time.Duration(float64(e.cfg.RetryBase) * math.Pow(1.5, float64(attempt)))
			log.WithError(err).WithFields(logger.Fields{
				"attempt": attempt + 1,
				"wait":    wait.String(),
			}).Warn("transient error, retrying")
			if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return lastErr
}
