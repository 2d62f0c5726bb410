package liquidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"liqflow/internal/models"
	"liqflow/logger"
)

// FlushSink receives flushed event batches for archival. The store is always
// fed; a sink is optional on top.
type FlushSink interface {
	Flush(ctx context.Context, events []models.LiquidationEvent) error
}

// CollectorConfig tunes the Binance liquidation stream collector.
type CollectorConfig struct {
	// URL is the combined-stream endpoint for all forced orders.
	URL string
	// BufferSize triggers a flush when the in-flight batch reaches it.
	BufferSize int
	// FlushInterval flushes a non-empty batch even when below BufferSize.
	FlushInterval time.Duration
	// Symbols restricts collection to the listed symbols. Empty keeps all.
	Symbols []string
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.URL == "" {
		c.URL = "wss://fstream.binance.com/ws/!forceOrder@arr"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
	return c
}

// Collector streams the Binance futures all-market forced-order feed. The
// read loop parses events onto a channel; a single actor goroutine owns the
// batch buffer, so no lock guards it.
type Collector struct {
	cfg     CollectorConfig
	store   *Store
	sink    FlushSink
	log     *logger.Log
	tracked map[string]struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	events chan models.LiquidationEvent

	totalReceived int64
	longCount     int64
	shortCount    int64
	usdMicros     int64
	bufferSize    int64
}

// NewCollector builds a collector feeding the given store. sink may be nil.
func NewCollector(cfg CollectorConfig, store *Store, sink FlushSink) *Collector {
	cfg = cfg.withDefaults()
	var tracked map[string]struct{}
	if len(cfg.Symbols) > 0 {
		tracked = make(map[string]struct{}, len(cfg.Symbols))
		for _, sym := range cfg.Symbols {
			tracked[strings.ToUpper(sym)] = struct{}{}
		}
	}
	return &Collector{
		cfg:     cfg,
		store:   store,
		sink:    sink,
		log:     logger.GetLogger(),
		tracked: tracked,
		events:  make(chan models.LiquidationEvent, 256),
	}
}

// wants reports whether the symbol passes the optional filter.
func (c *Collector) wants(symbol string) bool {
	if c.tracked == nil {
		return true
	}
	_, ok := c.tracked[symbol]
	return ok
}

// Start launches the stream reader and the buffer actor.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("liquidation collector already running")
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop()
	go c.bufferActor()

	c.log.WithComponent("liq_collector").WithFields(logger.Fields{
		"url":            c.cfg.URL,
		"buffer_size":    c.cfg.BufferSize,
		"flush_interval": c.cfg.FlushInterval.String(),
	}).Info("liquidation collector started")
	return nil
}

// Stop shuts the stream down and waits for the final flush.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.log.WithComponent("liq_collector").Info("stopping liquidation collector")
	c.cancel()
	c.wg.Wait()
	c.log.WithComponent("liq_collector").Info("liquidation collector stopped")
}

// Stats snapshots the running counters.
func (c *Collector) Stats() models.CollectorStats {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()

	return models.CollectorStats{
		TotalReceived:     atomic.LoadInt64(&c.totalReceived),
		LongLiquidations:  atomic.LoadInt64(&c.longCount),
		ShortLiquidations: atomic.LoadInt64(&c.shortCount),
		TotalUSD:          float64(atomic.LoadInt64(&c.usdMicros)) / 1e6,
		BufferSize:        int(atomic.LoadInt64(&c.bufferSize)),
		Running:           running,
	}
}

func (c *Collector) readLoop() {
	defer c.wg.Done()

	log := c.log.WithComponent("liq_collector").WithFields(logger.Fields{"worker": "stream"})

	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to liquidation stream, retrying")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-c.ctx.Done():
				return
			}
		}

		conn.SetReadDeadline(time.Now().Add(35 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(35 * time.Second))
			return nil
		})

		pingCtx, pingCancel := context.WithCancel(context.Background())
		pingTicker := time.NewTicker(20 * time.Second)
		go func() {
			defer pingTicker.Stop()
			for {
				select {
				case <-pingCtx.Done():
					return
				case <-pingTicker.C:
					conn.SetWriteDeadline(time.Now().Add(time.Second))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						pingCancel()
						return
					}
				}
			}
		}()

	loop:
		for {
			if c.ctx.Err() != nil {
				_ = conn.Close()
				break loop
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				_ = conn.Close()
				if c.ctx.Err() == nil {
					log.WithError(err).Warn("liquidation stream error, reconnecting")
				}
				break loop
			}

			event, err := parseForceOrder(msg)
			if err != nil {
				log.WithError(err).Debug("skipping malformed liquidation message")
				continue
			}
			if !c.wants(event.Symbol) {
				continue
			}

			atomic.AddInt64(&c.totalReceived, 1)
			if event.Side == models.SideLong {
				atomic.AddInt64(&c.longCount, 1)
			} else {
				atomic.AddInt64(&c.shortCount, 1)
			}
			atomic.AddInt64(&c.usdMicros, int64(event.USDValue*1e6))

			select {
			case c.events <- event:
			case <-c.ctx.Done():
				_ = conn.Close()
				break loop
			}
		}

		pingCancel()
		if c.ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(5 * time.Second):
		case <-c.ctx.Done():
			return
		}
	}
}

// bufferActor is the only goroutine touching the batch slice. Every event is
// published to the store immediately (the read path); the buffer exists for
// the sink (the persistence path), flushing on size or the interval, plus
// once more on shutdown so no tail events are lost.
func (c *Collector) bufferActor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	buffer := make([]models.LiquidationEvent, 0, c.cfg.BufferSize)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		c.flush(buffer)
		buffer = buffer[:0]
		atomic.StoreInt64(&c.bufferSize, 0)
	}

	for {
		select {
		case event := <-c.events:
			c.store.Add(event)
			buffer = append(buffer, event)
			atomic.StoreInt64(&c.bufferSize, int64(len(buffer)))
			if len(buffer) >= c.cfg.BufferSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-c.ctx.Done():
			// drain whatever the reader managed to enqueue
			for {
				select {
				case event := <-c.events:
					c.store.Add(event)
					buffer = append(buffer, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (c *Collector) flush(batch []models.LiquidationEvent) {
	events := make([]models.LiquidationEvent, len(batch))
	copy(events, batch)

	if c.sink != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 30*time.Second)
		defer cancel()
		if err := c.sink.Flush(ctx, events); err != nil {
			c.log.WithComponent("liq_collector").WithError(err).Warn("flush sink failed")
		}
	}

	logger.LogDataFlowEntry(c.log.WithComponent("liq_collector"), "stream", "sink", len(events), "liquidation")
}

// forceOrderMessage is the wire shape of one !forceOrder@arr event.
type forceOrderMessage struct {
	EventType string `json:"e"`
	Order     struct {
		Symbol   string `json:"s"`
		Side     string `json:"S"`
		Price    string `json:"p"`
		Quantity string `json:"q"`
		TradeAt  int64  `json:"T"`
	} `json:"o"`
}

// parseForceOrder normalizes a raw forced-order message. A SELL order means
// a long position was force-closed, so the event side is the position side,
// not the order side.
func parseForceOrder(raw []byte) (models.LiquidationEvent, error) {
	var msg forceOrderMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("unmarshal force order: %w", err)
	}
	if msg.Order.Symbol == "" {
		return models.LiquidationEvent{}, fmt.Errorf("force order without symbol")
	}

	price, err := parsePositive(msg.Order.Price)
	if err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("force order price: %w", err)
	}
	qty, err := parsePositive(msg.Order.Quantity)
	if err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("force order quantity: %w", err)
	}

	side := models.SideShort
	if strings.EqualFold(msg.Order.Side, "SELL") {
		side = models.SideLong
	}

	ts := time.UnixMilli(msg.Order.TradeAt).UTC()
	return models.LiquidationEvent{
		Timestamp:  ts,
		Exchange:   "binance",
		Symbol:     strings.ToUpper(msg.Order.Symbol),
		Side:       side,
		Price:      price,
		Quantity:   qty,
		USDValue:   price * qty,
		PriceLevel: priceLevel(price),
		HourBucket: ts.Truncate(time.Hour),
	}, nil
}

func parsePositive(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("non-positive value %q", s)
	}
	return f, nil
}
