package liquidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	bybit_connector "github.com/bybit-exchange/bybit.go.api"

	"liqflow/internal/models"
	"liqflow/internal/symbols"
	"liqflow/logger"
)

// BybitConfig tunes the optional Bybit liquidation stream.
type BybitConfig struct {
	URL     string
	Symbols []string
}

// BybitCollector subscribes to Bybit's allLiquidation topics and feeds the
// same store as the Binance collector, with symbols normalized to Binance
// notation so aggregation lines up.
type BybitCollector struct {
	cfg    BybitConfig
	store  *Store
	log    *logger.Log
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	running bool
	ws      *bybit_connector.WebSocket
}

// NewBybitCollector builds the collector; it stays idle until Start.
func NewBybitCollector(cfg BybitConfig, store *Store) *BybitCollector {
	if cfg.URL == "" {
		cfg.URL = "wss://stream.bybit.com/v5/public/linear"
	}
	return &BybitCollector{
		cfg:   cfg,
		store: store,
		log:   logger.GetLogger(),
	}
}

// Start connects and subscribes to the configured symbols.
func (c *BybitCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("bybit liquidation collector already running")
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	if len(c.cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols configured for bybit liquidation collector")
	}

	args := make([]string, 0, len(c.cfg.Symbols))
	for _, sym := range c.cfg.Symbols {
		args = append(args, fmt.Sprintf("allLiquidation.%s", strings.ToUpper(sym)))
	}

	ws := bybit_connector.NewBybitPublicWebSocket(c.cfg.URL, c.handleMessage)
	if ws == nil {
		return fmt.Errorf("failed to create bybit websocket client")
	}
	if ws.Connect() == nil {
		return fmt.Errorf("failed to connect to bybit websocket")
	}
	if _, err := ws.SendSubscription(args); err != nil {
		return fmt.Errorf("failed to subscribe to bybit liquidations: %w", err)
	}

	c.ws = ws
	go c.monitorContext()

	c.log.WithComponent("bybit_liq_collector").WithFields(logger.Fields{
		"symbols": c.cfg.Symbols,
	}).Info("bybit liquidation collector started")
	return nil
}

// Stop disconnects the websocket.
func (c *BybitCollector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	ws := c.ws
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		ws.Disconnect()
	}
	c.log.WithComponent("bybit_liq_collector").Info("bybit liquidation collector stopped")
}

func (c *BybitCollector) monitorContext() {
	<-c.ctx.Done()
	c.Stop()
}

type bybitLiquidationPayload struct {
	Topic string `json:"topic"`
	Ts    int64  `json:"ts"`
	Data  []struct {
		Symbol   string `json:"s"`
		Side     string `json:"S"`
		Price    string `json:"p"`
		Quantity string `json:"v"`
		Time     int64  `json:"T"`
	} `json:"data"`
}

func (c *BybitCollector) handleMessage(raw string) error {
	var ack struct {
		Op      string `json:"op"`
		Success bool   `json:"success"`
		RetMsg  string `json:"ret_msg"`
	}
	if err := json.Unmarshal([]byte(raw), &ack); err == nil && ack.Op != "" {
		if !ack.Success {
			c.log.WithComponent("bybit_liq_collector").WithFields(logger.Fields{
				"op":      ack.Op,
				"message": ack.RetMsg,
			}).Warn("subscription acknowledgement failure")
		}
		return nil
	}

	var payload bybitLiquidationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	if !strings.HasPrefix(payload.Topic, "allLiquidation") {
		return nil
	}

	events := make([]models.LiquidationEvent, 0, len(payload.Data))
	for _, entry := range payload.Data {
		price, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		qty, err := strconv.ParseFloat(entry.Quantity, 64)
		if err != nil || qty <= 0 {
			continue
		}

		// Bybit reports the position side being wiped through the order
		// side, same convention as Binance: a SELL order closes a long
		side := models.SideShort
		if strings.EqualFold(entry.Side, "SELL") {
			side = models.SideLong
		}

		ts := time.Now().UTC()
		if entry.Time > 0 {
			ts = time.UnixMilli(entry.Time).UTC()
		} else if payload.Ts > 0 {
			ts = time.UnixMilli(payload.Ts).UTC()
		}

		events = append(events, models.LiquidationEvent{
			Timestamp:  ts,
			Exchange:   "bybit",
			Symbol:     symbols.ToBinance("bybit", strings.ToUpper(entry.Symbol)),
			Side:       side,
			Price:      price,
			Quantity:   qty,
			USDValue:   price * qty,
			PriceLevel: priceLevel(price),
			HourBucket: ts.Truncate(time.Hour),
		})
	}

	if len(events) > 0 {
		c.store.Add(events...)
	}
	return nil
}
