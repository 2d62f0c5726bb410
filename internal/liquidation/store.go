// Package liquidation ingests force-liquidation streams and keeps a bounded
// in-memory history for heatmap composition.
package liquidation

import (
	"math"
	"strings"
	"sync"
	"time"

	"liqflow/internal/models"
)

// priceLevel snaps a price to its $1000 bucket, rounding half away from zero.
func priceLevel(price float64) int {
	return int(math.Round(price/1000)) * 1000
}

// Store is a bounded FIFO of liquidation events. Writers append batches, the
// heatmap reads aggregates. Oldest events fall off once capacity is reached.
type Store struct {
	mu       sync.RWMutex
	events   []models.LiquidationEvent
	capacity int

	now func() time.Time
}

// NewStore builds a store holding at most capacity events.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{
		events:   make([]models.LiquidationEvent, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add appends events in arrival order, evicting the oldest past capacity.
func (s *Store) Add(events ...models.LiquidationEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
}

// Len reports the stored event count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Recent returns events inside the lookback window, newest last. A
// non-positive period returns everything still held.
func (s *Store) Recent(period time.Duration) []models.LiquidationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if period <= 0 {
		out := make([]models.LiquidationEvent, len(s.events))
		copy(out, s.events)
		return out
	}

	cutoff := s.now().Add(-period)
	var out []models.LiquidationEvent
	for _, ev := range s.events {
		if ev.Timestamp.After(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// BySymbol returns events for a symbol inside the lookback window.
func (s *Store) BySymbol(symbol string, period time.Duration) []models.LiquidationEvent {
	symbol = strings.ToUpper(symbol)
	cutoff := s.now().Add(-period)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LiquidationEvent
	for _, ev := range s.events {
		if ev.Symbol == symbol && ev.Timestamp.After(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// Aggregated buckets realized liquidations by price level and side over the
// lookback window. The result mirrors the estimated heatmap's shape.
func (s *Store) Aggregated(symbol string, period time.Duration) *models.AggregatedLiquidations {
	agg := &models.AggregatedLiquidations{
		LongLiquidations:  make(map[int]float64),
		ShortLiquidations: make(map[int]float64),
		DataType:          "realized",
		PeriodHours:       int(period.Hours()),
	}

	for _, ev := range s.BySymbol(symbol, period) {
		level := ev.PriceLevel
		if level == 0 {
			level = priceLevel(ev.Price)
		}
		if ev.Side == models.SideLong {
			agg.LongLiquidations[level] += ev.USDValue
		} else {
			agg.ShortLiquidations[level] += ev.USDValue
		}
		agg.Count++
		agg.TotalUSD += ev.USDValue
	}
	return agg
}
