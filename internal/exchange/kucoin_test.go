package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKucoinStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "SOL-USDT" {
			t.Errorf("unexpected symbol %s", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`{"code":"200000","data":{"last":"150.25","changeRate":"0.0312","high":"155","low":"148","volValue":"98765432"}}`))
	}))
	defer srv.Close()

	c := NewKucoinClient(srv.URL, time.Second, testExecutor())
	quote, err := c.Stats(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if quote.Price != 150.25 {
		t.Errorf("unexpected price %v", quote.Price)
	}
	// changeRate is a fraction, surfaced as percent
	if quote.Change24h != 3.12 {
		t.Errorf("unexpected change %v", quote.Change24h)
	}
}

func TestKucoinStatsBodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"400100","data":{}}`))
	}))
	defer srv.Close()

	c := NewKucoinClient(srv.URL, time.Second, testExecutor())
	if _, err := c.Stats(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error for non-success body code")
	}
}

func TestKucoinSevenDayReturnUsesCloseColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// newest first; close is column 2: [ts, open, close, high, low, volume, turnover]
		w.Write([]byte(`{"code":"200000","data":[["1700086400","100","110","111","99","12","1300"],["1700000000","99","100","101","98","10","1000"]]}`))
	}))
	defer srv.Close()

	c := NewKucoinClient(srv.URL, time.Second, testExecutor())
	ret, err := c.SevenDayReturn(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("SevenDayReturn failed: %v", err)
	}
	if ret != 10 {
		t.Errorf("expected 10%% return, got %v", ret)
	}
}
