package liquidation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"liqflow/internal/models"
)

const sampleForceOrder = `{"e":"forceOrder","E":1700000000100,"o":{"s":"BTCUSDT","S":"SELL","q":"0.014","p":"86450.00","ap":"86440.10","X":"FILLED","T":1700000000099}}`

func TestParseForceOrder(t *testing.T) {
	ev, err := parseForceOrder([]byte(sampleForceOrder))
	if err != nil {
		t.Fatalf("parseForceOrder failed: %v", err)
	}
	if ev.Symbol != "BTCUSDT" {
		t.Errorf("unexpected symbol %s", ev.Symbol)
	}
	// SELL order means a long position was force-closed
	if ev.Side != models.SideLong {
		t.Errorf("expected LONG side, got %s", ev.Side)
	}
	if ev.USDValue != 86450.00*0.014 {
		t.Errorf("unexpected usd value %v", ev.USDValue)
	}
	if ev.PriceLevel != 86000 {
		t.Errorf("unexpected price level %d", ev.PriceLevel)
	}
	if ev.HourBucket != ev.Timestamp.Truncate(time.Hour) {
		t.Errorf("hour bucket not aligned: %v vs %v", ev.HourBucket, ev.Timestamp)
	}
}

func TestParseForceOrderBuySide(t *testing.T) {
	raw := strings.Replace(sampleForceOrder, `"S":"SELL"`, `"S":"BUY"`, 1)
	ev, err := parseForceOrder([]byte(raw))
	if err != nil {
		t.Fatalf("parseForceOrder failed: %v", err)
	}
	if ev.Side != models.SideShort {
		t.Errorf("BUY order must map to a liquidated short, got %s", ev.Side)
	}
}

func TestParseForceOrderRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"e":"forceOrder","o":{}}`,
		`{"e":"forceOrder","o":{"s":"BTCUSDT","S":"SELL","q":"0","p":"86450","T":1}}`,
		`{"e":"forceOrder","o":{"s":"BTCUSDT","S":"SELL","q":"1","p":"-5","T":1}}`,
	} {
		if _, err := parseForceOrder([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestCollectorSymbolFilter(t *testing.T) {
	open := NewCollector(CollectorConfig{}, NewStore(10), nil)
	if !open.wants("DOGEUSDT") {
		t.Fatal("no filter configured, every symbol should pass")
	}

	filtered := NewCollector(CollectorConfig{Symbols: []string{"btcusdt", "ETHUSDT"}}, NewStore(10), nil)
	if !filtered.wants("BTCUSDT") || !filtered.wants("ETHUSDT") {
		t.Fatal("configured symbols should pass regardless of config case")
	}
	if filtered.wants("DOGEUSDT") {
		t.Fatal("untracked symbol slipped through the filter")
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.LiquidationEvent
}

func (s *recordingSink) Flush(_ context.Context, events []models.LiquidationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]models.LiquidationEvent, len(events))
	copy(batch, events)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func startActor(t *testing.T, c *Collector) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx = ctx
	c.cancel = cancel
	c.wg.Add(1)
	go c.bufferActor()
	return cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBufferActorFlushesAtSize(t *testing.T) {
	store := NewStore(100)
	sink := &recordingSink{}
	c := NewCollector(CollectorConfig{BufferSize: 3, FlushInterval: time.Hour}, store, sink)
	cancel := startActor(t, c)
	defer cancel()

	for i := 0; i < 3; i++ {
		ev, _ := parseForceOrder([]byte(sampleForceOrder))
		c.events <- ev
	}

	waitFor(t, time.Second, func() bool { return store.Len() == 3 })
	if sink.count() != 1 {
		t.Fatalf("expected exactly one sink batch, got %d", sink.count())
	}
}

func TestBufferActorFlushesOnInterval(t *testing.T) {
	store := NewStore(100)
	c := NewCollector(CollectorConfig{BufferSize: 100, FlushInterval: 30 * time.Millisecond}, store, nil)
	cancel := startActor(t, c)
	defer cancel()

	ev, _ := parseForceOrder([]byte(sampleForceOrder))
	c.events <- ev

	waitFor(t, time.Second, func() bool { return store.Len() == 1 })
}

func TestBufferActorDrainsOnShutdown(t *testing.T) {
	store := NewStore(100)
	c := NewCollector(CollectorConfig{BufferSize: 100, FlushInterval: time.Hour}, store, nil)
	cancel := startActor(t, c)

	ev, _ := parseForceOrder([]byte(sampleForceOrder))
	c.events <- ev
	c.events <- ev

	cancel()
	c.wg.Wait()

	if store.Len() != 2 {
		t.Fatalf("shutdown must flush the tail, store has %d events", store.Len())
	}
}

func TestCollectorStreamsFromWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(sampleForceOrder)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	store := NewStore(100)
	c := NewCollector(CollectorConfig{
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		BufferSize:    2,
		FlushInterval: time.Hour,
	}, store, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, 3*time.Second, func() bool { return store.Len() == 2 })

	stats := c.Stats()
	if stats.TotalReceived != 2 || stats.LongLiquidations != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.Running {
		t.Fatal("collector should report running")
	}
}
