package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/autotrade/config"
	"github.com/vadiminshakov/autotrade/internal/clients"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/events"
	"github.com/vadiminshakov/autotrade/internal/metrics"
	"github.com/vadiminshakov/autotrade/internal/notify"
	"github.com/vadiminshakov/autotrade/internal/scheduler"
	"github.com/vadiminshakov/autotrade/internal/services/market/news"
	"github.com/vadiminshakov/autotrade/internal/services/oracle"
	"github.com/vadiminshakov/autotrade/internal/services/promptbuilder"
	"github.com/vadiminshakov/autotrade/internal/services/strategy/ai"
	"github.com/vadiminshakov/autotrade/internal/services/trader"
	"github.com/vadiminshakov/autotrade/internal/storage/decisions"
	"github.com/vadiminshakov/autotrade/internal/storage/ledger"
	"github.com/vadiminshakov/autotrade/internal/trace"
	"github.com/vadiminshakov/autotrade/internal/web"
)

const (
	jobTrading  = "trading"
	jobSnapshot = "orderbook_snapshot"
)

// TradingBot owns every long-lived component of the process.
type TradingBot struct {
	Config config.Config

	logger    *zap.Logger
	ledger    *ledger.Store
	journal   *decisions.WALStore
	updates   *events.Broadcaster[domain.DecisionEvent]
	strategy  *ai.AIStrategy
	snapshots *ai.SnapshotJob
	scheduler *scheduler.Scheduler
	web       *web.Server
	metrics   metrics.Sink
	notifier  notify.Notifier
	tracer    *trace.Provider
	redis     *redis.Client
}

// NewTradingBot builds the bot from configuration. Optional sinks that cannot be
// reached are disabled with a warning; storage failures are fatal.
func NewTradingBot(ctx context.Context, conf config.Config, logger *zap.Logger) (_ *TradingBot, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("pair", conf.Pair.String()))

	b := &TradingBot{Config: conf, logger: logger}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if b.ledger, err = ledger.Open(conf.Ledger.Path, logger.Named("ledger")); err != nil {
		return nil, errors.Wrap(err, "open trade ledger")
	}
	if b.journal, err = decisions.NewWALStore(conf.DecisionsWALDir); err != nil {
		return nil, errors.Wrap(err, "open decisions journal")
	}
	b.updates = events.NewBroadcaster[domain.DecisionEvent](16)
	if b.tracer, err = newTracer(conf); err != nil {
		return nil, err
	}
	b.redis = newRedis(ctx, conf, logger)
	b.metrics = newMetrics(ctx, conf, logger)
	b.notifier = newNotifier(conf, logger)

	upbit := clients.NewUpbitClient(conf.Market.UpbitURL, conf.Secrets.UpbitAccessKey, conf.Secrets.UpbitSecretKey, conf.Market.RequestTimeout)
	ex, err := newExchange(conf, upbit, logger)
	if err != nil {
		return nil, err
	}

	var cache news.Cache
	if b.redis != nil {
		cache = news.NewRedisCache(b.redis)
	}
	market := newCollector(conf, upbit, b.ledger, cache, logger)

	builder := promptbuilder.NewPromptBuilder(conf.Pair, conf.Market.DailyTail, conf.Market.HourlyTail, logger.Named("prompt"))
	llm := clients.NewOpenAICompatibleClient(conf.LLM.APIURL, conf.Secrets.OpenAIAPIKey, conf.LLM.Model,
		conf.LLM.InstructionRole, conf.LLM.ReasoningEffort, conf.LLM.Timeout)
	executor := trader.NewExecutor(ex, conf.Pair, trader.Settings{
		FeeMargin:       conf.Execution.FeeMargin,
		MinNotional:     conf.Execution.MinNotional,
		SettlementDelay: conf.Execution.SettlementDelay,
	}, logger.Named("executor"))

	b.strategy, err = ai.NewAIStrategy(logger.Named("ai"), conf.Pair, conf.LLM.Model, conf.Ledger.HistoryDays, ai.Deps{
		Account:  ex,
		Market:   market,
		Builder:  builder,
		Oracle:   oracle.New(llm, builder, conf.Ledger.HistoryDays, logger.Named("oracle")),
		Executor: executor,
		Ledger:   b.ledger,
		Journal:  publishingJournal{WALStore: b.journal, updates: b.updates},
		Metrics:  b.metrics,
		Notifier: b.notifier,
		Tracer:   b.tracer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create AI strategy")
	}
	b.snapshots = ai.NewSnapshotJob(conf.Pair, upbit, b.ledger, b.metrics, logger.Named("snapshot"))

	if b.scheduler, err = newScheduler(conf, b.strategy, b.snapshots, logger); err != nil {
		return nil, err
	}

	if conf.Web.Addr != "" {
		b.web = web.NewServer(conf.Web.Addr, b.ledger, b.journal, logger.Named("web"))
		b.web.Updates = b.updates
	}

	logger.Info("trading bot ready",
		zap.Bool("dry_run", conf.DryRun),
		zap.String("model", conf.LLM.Model),
		zap.Strings("decision_times", conf.Schedule.DecisionTimes),
		zap.String("timezone", conf.Location.String()))
	return b, nil
}

// publishingJournal forwards journaled decision events to live dashboard streams.
type publishingJournal struct {
	*decisions.WALStore
	updates *events.Broadcaster[domain.DecisionEvent]
}

func (j publishingJournal) Save(ev domain.DecisionEvent) error {
	if err := j.WALStore.Save(ev); err != nil {
		return err
	}
	j.updates.Publish(ev)
	return nil
}

func newScheduler(conf config.Config, strategy *ai.AIStrategy, snapshots *ai.SnapshotJob, logger *zap.Logger) (*scheduler.Scheduler, error) {
	decisionSpecs, err := scheduler.DailyAt(conf.Schedule.DecisionTimes)
	if err != nil {
		return nil, errors.Wrap(err, "build decision schedule")
	}
	snapshotSpec, err := scheduler.HourlyAt(conf.Schedule.SnapshotMinutes)
	if err != nil {
		return nil, errors.Wrap(err, "build snapshot schedule")
	}

	s := scheduler.New(conf.Location, logger.Named("scheduler"))
	s.Add(jobTrading, decisionSpecs, conf.Schedule.RunOnStart, func(ctx context.Context) error {
		_, err := strategy.Trade(ctx)
		return err
	})
	s.Add(jobSnapshot, []string{snapshotSpec}, false, snapshots.Run)
	return s, nil
}

// Run blocks until ctx is cancelled, serving the dashboard next to the scheduler.
func (b *TradingBot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if b.web != nil {
		g.Go(func() error {
			if len(b.Config.Web.TLSDomains) > 0 {
				return b.web.StartWithAutoTLS(ctx, b.Config.Web.TLSDomains, b.Config.Web.CertCache)
			}
			return b.web.Start(ctx)
		})
	}
	g.Go(func() error {
		return b.scheduler.Run(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases every component. Safe on a partially built bot.
func (b *TradingBot) Close() {
	if b.notifier != nil {
		b.notifier.Close()
	}
	if b.metrics != nil {
		b.metrics.Close()
	}
	if b.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := b.tracer.Shutdown(ctx); err != nil {
			b.logger.Warn("trace shutdown", zap.Error(err))
		}
		cancel()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.journal != nil {
		if err := b.journal.Close(); err != nil {
			b.logger.Warn("close decisions journal", zap.Error(err))
		}
	}
	if b.ledger != nil {
		if err := b.ledger.Close(); err != nil {
			b.logger.Warn("close ledger", zap.Error(err))
		}
	}
}
