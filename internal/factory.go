package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrade/config"
	"github.com/vadiminshakov/autotrade/internal/clients"
	"github.com/vadiminshakov/autotrade/internal/metrics"
	"github.com/vadiminshakov/autotrade/internal/notify"
	"github.com/vadiminshakov/autotrade/internal/services/market/collector"
	"github.com/vadiminshakov/autotrade/internal/services/market/macro"
	"github.com/vadiminshakov/autotrade/internal/services/market/news"
	"github.com/vadiminshakov/autotrade/internal/services/market/sentiment"
	"github.com/vadiminshakov/autotrade/internal/services/trader"
	"github.com/vadiminshakov/autotrade/internal/storage/simstate"
	"github.com/vadiminshakov/autotrade/internal/trace"
	"github.com/vadiminshakov/autotrade/pkg/retrier"
)

// newExchange returns the Upbit account, or a paper wallet priced by Upbit in dry-run mode.
func newExchange(conf config.Config, upbit *clients.UpbitClient, logger *zap.Logger) (trader.Exchange, error) {
	if !conf.DryRun {
		return upbit, nil
	}

	store, err := simstate.NewStore(conf.Pair, "")
	if err != nil {
		return nil, errors.Wrap(err, "open simulate state")
	}
	sim, err := trader.NewSimulateTrader(conf.Pair, conf.Execution.SimulateKRW, upbit, store, logger.Named("simulate"))
	if err != nil {
		return nil, errors.Wrap(err, "create simulate trader")
	}
	return sim, nil
}

// newCollector wires every market data source. Sources without credentials are left out.
func newCollector(conf config.Config, upbit *clients.UpbitClient, history collector.SnapshotHistory, cache news.Cache, logger *zap.Logger) *collector.MarketDataCollector {
	m := conf.Market

	sources := collector.Sources{
		Candles:   upbit,
		OrderBook: upbit,
		History:   history,
		FearGreed: sentiment.NewFearGreedClient(m.FearGreedURL, m.RequestTimeout),
		Macro:     macro.NewYahooClient(m.YahooURL, m.MacroInterval, m.MacroRange, conf.Location, m.RequestTimeout),
	}

	if conf.Secrets.SerpAPIKey != "" {
		var opts []news.Option
		if cache != nil {
			opts = append(opts, news.WithCache(cache))
		}
		fetcher := news.NewSerpAPIFetcher(m.SerpAPIURL, conf.Secrets.SerpAPIKey, m.RequestTimeout)
		sources.News = news.NewService(fetcher, m.NewsQuery, m.NewsLimit, conf.Location, logger.Named("news"), opts...)
	} else {
		logger.Warn("SERPAPI_API_KEY is not set, news headlines disabled")
	}

	symbols := make([]collector.MacroSymbol, 0, len(m.MacroSymbols))
	for _, s := range m.MacroSymbols {
		symbols = append(symbols, collector.MacroSymbol{Name: s.Name, Symbol: s.Symbol})
	}

	return collector.NewMarketDataCollector(conf.Pair, sources, collector.Settings{
		DailyCandles:    m.DailyCandles,
		HourlyCandles:   m.HourlyCandles,
		OrderBookWindow: m.OrderBookWindow,
		MacroSymbols:    symbols,
		RequestTimeout:  m.RequestTimeout,
	}, logger.Named("collector"))
}

// startupRetrier is used for connectivity checks of optional sinks.
func startupRetrier(name string, logger *zap.Logger) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(3),
		retrier.WithInitialInterval(time.Second),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("connectivity check failed, retrying",
				zap.String("sink", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
}

// newRedis connects the shared news cache. A nil client means the cache is disabled.
func newRedis(ctx context.Context, conf config.Config, logger *zap.Logger) *redis.Client {
	if conf.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Secrets.RedisPassword,
		DB:       conf.Redis.DB,
	})
	err := startupRetrier("redis", logger).Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		logger.Warn("redis unavailable, news cache falls back to memory", zap.String("addr", conf.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	logger.Info("redis news cache connected", zap.String("addr", conf.Redis.Addr))
	return client
}

func newMetrics(ctx context.Context, conf config.Config, logger *zap.Logger) metrics.Sink {
	if conf.Influx.URL == "" {
		return metrics.Nop{}
	}
	sink := metrics.NewInfluxSink(conf.Influx.URL, conf.Secrets.InfluxToken, conf.Influx.Org, conf.Influx.Bucket, logger.Named("influx"))
	if err := startupRetrier("influxdb", logger).Do(ctx, sink.Ping); err != nil {
		logger.Warn("influxdb unavailable, metrics disabled", zap.String("url", conf.Influx.URL), zap.Error(err))
		sink.Close()
		return metrics.Nop{}
	}
	return sink
}

func newNotifier(conf config.Config, logger *zap.Logger) notify.Notifier {
	if conf.Secrets.TelegramToken == "" || conf.Secrets.TelegramChatID == 0 {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(conf.Secrets.TelegramToken, conf.Secrets.TelegramChatID, logger.Named("telegram"))
	if err != nil {
		logger.Warn("telegram notifications disabled", zap.Error(err))
		return notify.Nop{}
	}
	return tg
}

func newTracer(conf config.Config) (*trace.Provider, error) {
	if !conf.Trace.Enabled {
		return trace.Disabled(), nil
	}
	tp, err := trace.New(conf.Trace.File)
	if err != nil {
		return nil, errors.Wrap(err, "create trace provider")
	}
	return tp, nil
}
