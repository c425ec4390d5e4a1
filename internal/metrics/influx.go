package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"go.uber.org/zap"
)

const (
	measurementCycle     = "cycle"
	measurementOrderBook = "orderbook"
)

// InfluxSink writes points synchronously through the blocking write API.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *zap.Logger
}

// NewInfluxSink creates the client without contacting the server; see Ping.
func NewInfluxSink(url, token, org, bucket string, logger *zap.Logger) *InfluxSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		logger:   logger,
	}
}

// Ping checks that the server reports a passing health status.
func (s *InfluxSink) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return errors.Wrap(err, "influxdb health check")
	}
	if health == nil || health.Status != "pass" {
		return errors.Errorf("influxdb is not healthy: %+v", health)
	}
	return nil
}

// RecordCycle writes a cycle point tagged by pair and decision.
func (s *InfluxSink) RecordCycle(ctx context.Context, pair domain.Pair, rec domain.TradeRecord, executed bool) {
	s.write(ctx, CyclePoint(pair, rec, executed))
}

// RecordOrderBook writes an orderbook point tagged by pair.
func (s *InfluxSink) RecordOrderBook(ctx context.Context, pair domain.Pair, snap domain.OrderBookSnapshot) {
	s.write(ctx, OrderBookPoint(pair, snap))
}

func (s *InfluxSink) write(ctx context.Context, p *write.Point) {
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.logger.Warn("influxdb write failed", zap.String("measurement", p.Name()), zap.Error(err))
	}
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// CyclePoint builds the point of one completed cycle.
func CyclePoint(pair domain.Pair, rec domain.TradeRecord, executed bool) *write.Point {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(
		measurementCycle,
		map[string]string{
			"pair":     pair.String(),
			"decision": rec.Decision.String(),
		},
		map[string]interface{}{
			"percentage": rec.Percentage,
			"executed":   executed,
			"krw":        rec.KRWBalance.InexactFloat64(),
			"btc":        rec.BTCBalance.InexactFloat64(),
			"price":      rec.BTCKRWPrice.InexactFloat64(),
			"total":      rec.Valuation().InexactFloat64(),
		},
		ts,
	)
}

// OrderBookPoint builds the point of one snapshot.
func OrderBookPoint(pair domain.Pair, snap domain.OrderBookSnapshot) *write.Point {
	ts := snap.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(
		measurementOrderBook,
		map[string]string{"pair": pair.String()},
		map[string]interface{}{
			"total_ask_size": snap.TotalAskSize.InexactFloat64(),
			"total_bid_size": snap.TotalBidSize.InexactFloat64(),
			"best_bid":       snap.BestBid().InexactFloat64(),
			"best_ask":       snap.BestAsk().InexactFloat64(),
		},
		ts,
	)
}
