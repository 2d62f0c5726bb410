package writer

import (
	"context"

	"liqflow/internal/models"
	"liqflow/logger"
)

// LogSink is the default flush destination when no archival storage is
// configured: it records batch summaries and drops the payload.
type LogSink struct {
	log *logger.Log
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.GetLogger()}
}

func (s *LogSink) Flush(_ context.Context, events []models.LiquidationEvent) error {
	if len(events) == 0 {
		return nil
	}

	var totalUSD float64
	longs := 0
	for _, ev := range events {
		totalUSD += ev.USDValue
		if ev.Side == models.SideLong {
			longs++
		}
	}

	s.log.WithComponent("liq_sink").WithFields(logger.Fields{
		"events":    len(events),
		"longs":     longs,
		"shorts":    len(events) - longs,
		"total_usd": totalUSD,
	}).Info("liquidation batch flushed")
	return nil
}
