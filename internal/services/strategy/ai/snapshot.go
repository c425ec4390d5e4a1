package ai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/metrics"
	"go.uber.org/zap"
)

type orderBookProvider interface {
	OrderBook(ctx context.Context, market string) (domain.OrderBookSnapshot, error)
}

type snapshotStore interface {
	AppendSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error
}

// SnapshotJob persists the live order book so the next cycles can read its history.
type SnapshotJob struct {
	pair    domain.Pair
	book    orderBookProvider
	store   snapshotStore
	metrics metrics.Sink
	logger  *zap.Logger
}

func NewSnapshotJob(pair domain.Pair, book orderBookProvider, store snapshotStore, sink metrics.Sink, logger *zap.Logger) *SnapshotJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &SnapshotJob{pair: pair, book: book, store: store, metrics: sink, logger: logger}
}

// Run fetches and stores one snapshot.
func (j *SnapshotJob) Run(ctx context.Context) error {
	snap, err := j.book.OrderBook(ctx, j.pair.Market())
	if err != nil {
		return errors.Wrap(err, "fetch orderbook snapshot")
	}
	if err := j.store.AppendSnapshot(ctx, snap); err != nil {
		return errors.Wrap(err, "store orderbook snapshot")
	}
	j.metrics.RecordOrderBook(ctx, j.pair, snap)

	j.logger.Debug("orderbook snapshot saved",
		zap.Time("captured_at", snap.CapturedAt),
		zap.String("best_bid", snap.BestBid().String()),
		zap.String("best_ask", snap.BestAsk().String()))
	return nil
}
