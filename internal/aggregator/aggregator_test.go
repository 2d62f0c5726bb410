package aggregator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"liqflow/internal/models"
)

type fakeSource struct {
	name    string
	quote   *models.PriceQuote
	ret     float64
	err     error
	calls   int64
	retErr  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Price(_ context.Context, coin string) (*models.PriceQuote, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	q := *f.quote
	q.Coin = coin
	return &q, nil
}

func (f *fakeSource) SevenDayReturn(context.Context, string) (float64, error) {
	if f.retErr != nil {
		return 0, f.retErr
	}
	return f.ret, nil
}

func quote(source string, price float64) *models.PriceQuote {
	return &models.PriceQuote{Price: price, Source: source, Timestamp: time.Now().UTC()}
}

func TestFetchPriceFallsThroughInPriorityOrder(t *testing.T) {
	primary := &fakeSource{name: "binance", err: errors.New("down")}
	secondary := &fakeSource{name: "okx", quote: quote("okx", 95000)}
	tertiary := &fakeSource{name: "coingecko", quote: quote("coingecko", 94990)}

	a := New([]PriceSource{primary, secondary, tertiary}, nil, nil, time.Minute)

	got, err := a.FetchPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if got.Source != "okx" {
		t.Fatalf("expected okx to answer, got %s", got.Source)
	}
	if atomic.LoadInt64(&tertiary.calls) != 0 {
		t.Fatalf("tertiary source must not be consulted when secondary succeeds")
	}
}

func TestFetchPriceAllSourcesFail(t *testing.T) {
	a := New([]PriceSource{
		&fakeSource{name: "binance", err: errors.New("429")},
		&fakeSource{name: "okx", err: errors.New("timeout")},
	}, nil, nil, time.Minute)

	_, err := a.FetchPrice(context.Background(), "BTC")
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if !strings.Contains(err.Error(), "binance") || !strings.Contains(err.Error(), "okx") {
		t.Fatalf("error should name the failed sources: %v", err)
	}
}

func TestFetchPriceCacheHit(t *testing.T) {
	src := &fakeSource{name: "binance", quote: quote("binance", 95000)}
	a := New([]PriceSource{src}, nil, nil, time.Minute)

	if _, err := a.FetchPrice(context.Background(), "BTC"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if _, err := a.FetchPrice(context.Background(), "BTC"); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if atomic.LoadInt64(&src.calls) != 1 {
		t.Fatalf("expected cache to absorb second fetch, source saw %d calls", src.calls)
	}
}

func TestFetchPriceCacheExpires(t *testing.T) {
	src := &fakeSource{name: "binance", quote: quote("binance", 95000)}
	a := New([]PriceSource{src}, nil, nil, time.Minute)

	current := time.Unix(1_700_000_000, 0)
	a.now = func() time.Time { return current }

	if _, err := a.FetchPrice(context.Background(), "BTC"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := a.FetchPrice(context.Background(), "BTC"); err != nil {
		t.Fatalf("post-expiry fetch failed: %v", err)
	}
	if atomic.LoadInt64(&src.calls) != 2 {
		t.Fatalf("expected expired entry to refetch, source saw %d calls", src.calls)
	}
}

func TestFetchMultiplePricesCollectsErrors(t *testing.T) {
	src := &fakeSource{name: "binance", quote: quote("binance", 95000)}
	a := New([]PriceSource{src}, nil, nil, time.Minute)

	// second aggregator with a failing source for one coin is awkward;
	// instead make the single source fail for everything and confirm the
	// batch carries errors rather than panicking.
	failing := New([]PriceSource{&fakeSource{name: "binance", err: errors.New("down")}}, nil, nil, time.Minute)

	batch := a.FetchMultiplePrices(context.Background(), []string{"BTC", "ETH"})
	if len(batch.Prices) != 2 || len(batch.Errors) != 0 {
		t.Fatalf("expected 2 prices and no errors, got %d/%d", len(batch.Prices), len(batch.Errors))
	}

	batch = failing.FetchMultiplePrices(context.Background(), []string{"BTC", "ETH"})
	if len(batch.Prices) != 0 || len(batch.Errors) != 2 {
		t.Fatalf("expected 2 errors and no prices, got %d/%d", len(batch.Prices), len(batch.Errors))
	}
}

type fakeOISource struct {
	name string
	snap *models.OpenInterestSnapshot
	err  error
}

func (f *fakeOISource) Name() string { return f.name }
func (f *fakeOISource) OpenInterest(context.Context, string) (*models.OpenInterestSnapshot, error) {
	return f.snap, f.err
}

func TestFetchOpenInterestFallback(t *testing.T) {
	a := New(nil, []OpenInterestSource{
		&fakeOISource{name: "binance", err: errors.New("down")},
		&fakeOISource{name: "kucoin", snap: &models.OpenInterestSnapshot{Symbol: "BTCUSDT", OpenInterest: 80000, Source: "kucoin"}},
	}, nil, time.Minute)

	snap, err := a.FetchOpenInterest(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("FetchOpenInterest failed: %v", err)
	}
	if snap.Source != "kucoin" {
		t.Fatalf("expected kucoin fallback, got %s", snap.Source)
	}
}

func TestFetch7dReturnFallback(t *testing.T) {
	a := New([]PriceSource{
		&fakeSource{name: "binance", retErr: errors.New("down"), err: errors.New("down")},
		&fakeSource{name: "okx", ret: 12.5, quote: quote("okx", 1)},
	}, nil, nil, time.Minute)

	ret, err := a.Fetch7dReturn(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Fetch7dReturn failed: %v", err)
	}
	if ret != 12.5 {
		t.Fatalf("expected okx fallback value, got %v", ret)
	}
}
