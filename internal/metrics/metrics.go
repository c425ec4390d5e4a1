// Package metrics exports cycle outcomes and order-book snapshots as time series.
package metrics

import (
	"context"

	"github.com/vadiminshakov/autotrade/internal/domain"
)

// Sink receives one point per completed cycle and per order-book snapshot.
// Implementations log write failures instead of returning them.
type Sink interface {
	RecordCycle(ctx context.Context, pair domain.Pair, rec domain.TradeRecord, executed bool)
	RecordOrderBook(ctx context.Context, pair domain.Pair, snap domain.OrderBookSnapshot)
	Close()
}

// Nop drops every point.
type Nop struct{}

func (Nop) RecordCycle(context.Context, domain.Pair, domain.TradeRecord, bool)   {}
func (Nop) RecordOrderBook(context.Context, domain.Pair, domain.OrderBookSnapshot) {}
func (Nop) Close()                                                                {}
