// Package collector gathers every market input of a decision cycle: candles,
// the live order book, persisted order-book history, sentiment, news and macro series.
package collector

import (
	"context"
	"time"

	"github.com/vadiminshakov/autotrade/internal/domain"
	"go.uber.org/zap"
)

// CandleProvider fetches candles in ascending time order.
type CandleProvider interface {
	Candles(ctx context.Context, market string, interval domain.Interval, count int) ([]domain.Candle, error)
}

// OrderBookProvider fetches the live order book.
type OrderBookProvider interface {
	OrderBook(ctx context.Context, market string) (domain.OrderBookSnapshot, error)
}

// SnapshotHistory reads persisted order-book snapshots, oldest first.
type SnapshotHistory interface {
	SnapshotsSince(ctx context.Context, since time.Time) ([]domain.OrderBookSnapshot, error)
}

// FearGreedProvider fetches the fear & greed index.
type FearGreedProvider interface {
	Current(ctx context.Context) (*domain.FearGreed, error)
}

// NewsProvider returns headlines of the current period. It never fails.
type NewsProvider interface {
	Headlines(ctx context.Context) []domain.NewsHeadline
}

// MacroProvider fetches an auxiliary index series.
type MacroProvider interface {
	Series(ctx context.Context, name, symbol string) (domain.MacroSeries, error)
}

// MacroSymbol index to fetch via MacroProvider.
type MacroSymbol struct {
	Name   string
	Symbol string
}

// MarketSnapshot everything gathered in one cycle. A source that failed leaves its
// field nil or empty.
type MarketSnapshot struct {
	GatheredAt       time.Time
	DailyCandles     []domain.Candle
	HourlyCandles    []domain.Candle
	OrderBook        *domain.OrderBookSnapshot
	OrderBookHistory []domain.OrderBookSnapshot
	FearGreed        *domain.FearGreed
	News             []domain.NewsHeadline
	Macro            []domain.MacroSeries
}

// Sources data providers of the collector. Nil providers are skipped.
type Sources struct {
	Candles   CandleProvider
	OrderBook OrderBookProvider
	History   SnapshotHistory
	FearGreed FearGreedProvider
	News      NewsProvider
	Macro     MacroProvider
}

// Settings bounds of a gather call.
type Settings struct {
	DailyCandles    int
	HourlyCandles   int
	OrderBookWindow time.Duration
	MacroSymbols    []MacroSymbol
	RequestTimeout  time.Duration
}

// MarketDataCollector collects market data for one pair.
type MarketDataCollector struct {
	sources  Sources
	settings Settings
	pair     domain.Pair
	now      func() time.Time
	logger   *zap.Logger
}

// NewMarketDataCollector creates a new market data collector
func NewMarketDataCollector(pair domain.Pair, sources Sources, settings Settings, logger *zap.Logger) *MarketDataCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = 30 * time.Second
	}
	return &MarketDataCollector{
		sources:  sources,
		settings: settings,
		pair:     pair,
		now:      time.Now,
		logger:   logger,
	}
}

// Gather queries every source. Failures are logged and never returned.
func (c *MarketDataCollector) Gather(ctx context.Context) MarketSnapshot {
	snap := MarketSnapshot{GatheredAt: c.now()}
	market := c.pair.Market()

	if c.sources.Candles != nil {
		snap.DailyCandles = c.candles(ctx, market, domain.IntervalDay, c.settings.DailyCandles)
		snap.HourlyCandles = c.candles(ctx, market, domain.IntervalHour, c.settings.HourlyCandles)
	}

	if c.sources.OrderBook != nil {
		reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
		ob, err := c.sources.OrderBook.OrderBook(reqCtx, market)
		cancel()
		if err != nil {
			c.logger.Warn("order book unavailable", zap.String("market", market), zap.Error(err))
		} else {
			snap.OrderBook = &ob
		}
	}

	if c.sources.History != nil {
		since := snap.GatheredAt.Add(-c.settings.OrderBookWindow)
		history, err := c.sources.History.SnapshotsSince(ctx, since)
		if err != nil {
			c.logger.Warn("order book history unavailable", zap.Time("since", since), zap.Error(err))
		} else {
			snap.OrderBookHistory = history
		}
	}

	if c.sources.FearGreed != nil {
		reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
		fg, err := c.sources.FearGreed.Current(reqCtx)
		cancel()
		if err != nil {
			c.logger.Warn("fear and greed index unavailable", zap.Error(err))
		} else {
			snap.FearGreed = fg
		}
	}

	if c.sources.News != nil {
		snap.News = c.sources.News.Headlines(ctx)
	}

	if c.sources.Macro != nil {
		for _, sym := range c.settings.MacroSymbols {
			reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
			series, err := c.sources.Macro.Series(reqCtx, sym.Name, sym.Symbol)
			cancel()
			if err != nil {
				c.logger.Warn("macro series unavailable", zap.String("symbol", sym.Symbol), zap.Error(err))
				continue
			}
			snap.Macro = append(snap.Macro, series)
		}
	}

	c.logger.Info("market data gathered",
		zap.Int("daily_candles", len(snap.DailyCandles)),
		zap.Int("hourly_candles", len(snap.HourlyCandles)),
		zap.Bool("orderbook", snap.OrderBook != nil),
		zap.Int("orderbook_history", len(snap.OrderBookHistory)),
		zap.Bool("fear_greed", snap.FearGreed != nil),
		zap.Int("news", len(snap.News)),
		zap.Int("macro", len(snap.Macro)))

	return snap
}

func (c *MarketDataCollector) candles(ctx context.Context, market string, interval domain.Interval, count int) []domain.Candle {
	if count <= 0 {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
	defer cancel()

	candles, err := c.sources.Candles.Candles(reqCtx, market, interval, count)
	if err != nil {
		c.logger.Warn("candles unavailable",
			zap.String("market", market),
			zap.String("interval", string(interval)),
			zap.Error(err))
		return nil
	}
	return candles
}
