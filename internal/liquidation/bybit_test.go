package liquidation

import (
	"testing"

	"liqflow/internal/models"
)

func TestBybitHandleMessageStoresNormalizedEvents(t *testing.T) {
	store := NewStore(100)
	c := NewBybitCollector(BybitConfig{Symbols: []string{"BTCUSDT"}}, store)

	raw := `{"topic":"allLiquidation.BTCUSDT","ts":1700000000100,"data":[
		{"s":"BTCUSDT","S":"SELL","p":"86450.0","v":"0.5","T":1700000000099},
		{"s":"SHIB1000USDT","S":"BUY","p":"0.012","v":"100000","T":1700000000099}
	]}`
	if err := c.handleMessage(raw); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	events := store.Recent(0)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Side != models.SideLong || events[0].Exchange != "bybit" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	// bybit's 1000-contract notation collapses to the canonical symbol
	if events[1].Symbol != "SHIBUSDT" {
		t.Fatalf("expected SHIBUSDT after normalization, got %s", events[1].Symbol)
	}
	if events[1].Side != models.SideShort {
		t.Fatalf("BUY order must map to a liquidated short")
	}
}

func TestBybitHandleMessageIgnoresAcksAndOtherTopics(t *testing.T) {
	store := NewStore(100)
	c := NewBybitCollector(BybitConfig{Symbols: []string{"BTCUSDT"}}, store)

	for _, raw := range []string{
		`{"op":"subscribe","success":true,"ret_msg":""}`,
		`{"topic":"tickers.BTCUSDT","data":[]}`,
		`garbage`,
	} {
		if err := c.handleMessage(raw); err != nil {
			t.Fatalf("handleMessage(%q) errored: %v", raw, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("non-liquidation messages must not reach the store, got %d", store.Len())
	}
}
