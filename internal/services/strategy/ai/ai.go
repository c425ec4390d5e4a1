// Package ai runs one LLM-driven decision cycle: gather market data, annotate it,
// ask the oracle, execute the order and record the outcome.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/metrics"
	"github.com/vadiminshakov/autotrade/internal/notify"
	"github.com/vadiminshakov/autotrade/internal/services/market/collector"
	"github.com/vadiminshakov/autotrade/internal/services/market/indicators"
	"github.com/vadiminshakov/autotrade/internal/services/promptbuilder"
	"github.com/vadiminshakov/autotrade/internal/services/trader"
	"github.com/vadiminshakov/autotrade/internal/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrCycleAborted the cycle stopped before an order was considered; nothing was recorded.
var ErrCycleAborted = errors.New("decision cycle aborted")

type balanceReader interface {
	Balances(ctx context.Context) (domain.Balances, error)
}

type gatherer interface {
	Gather(ctx context.Context) collector.MarketSnapshot
}

type decider interface {
	Reflect(ctx context.Context, trades []domain.TradeRecord, txs []domain.TransactionRecord, mc promptbuilder.MarketContext) string
	Decide(ctx context.Context, mc promptbuilder.MarketContext, reflection string) (domain.Decision, error)
}

type executor interface {
	Execute(ctx context.Context, decision domain.Decision) trader.Outcome
	Account(ctx context.Context) (trader.AccountState, error)
}

type tradeLedger interface {
	AppendTrade(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error)
	RecentTrades(ctx context.Context, days int) ([]domain.TradeRecord, error)
	TransactionsSince(ctx context.Context, since time.Time) ([]domain.TransactionRecord, error)
}

type journal interface {
	Save(event domain.DecisionEvent) error
}

// Deps collaborators of the strategy. Journal, Metrics, Notifier and Tracer are
// optional.
type Deps struct {
	Account  balanceReader
	Market   gatherer
	Builder  *promptbuilder.PromptBuilder
	Oracle   decider
	Executor executor
	Ledger   tradeLedger
	Journal  journal
	Metrics  metrics.Sink
	Notifier notify.Notifier
	Tracer   *trace.Provider
}

// AIStrategy one trading pair driven by the oracle.
type AIStrategy struct {
	pair        domain.Pair
	model       string
	historyDays int
	deps        Deps
	now         func() time.Time
	logger      *zap.Logger
}

// NewAIStrategy creates a new AI trading strategy instance
func NewAIStrategy(logger *zap.Logger, pair domain.Pair, model string, historyDays int, deps Deps) (*AIStrategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case deps.Account == nil, deps.Market == nil, deps.Builder == nil,
		deps.Oracle == nil, deps.Executor == nil, deps.Ledger == nil:
		return nil, errors.New("account, market, builder, oracle, executor and ledger are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = trace.Disabled()
	}
	return &AIStrategy{
		pair:        pair,
		model:       model,
		historyDays: historyDays,
		deps:        deps,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Trade runs one cycle and returns the persisted record.
//
// An oracle failure returns ErrCycleAborted without placing an order or writing the
// ledger. Order failures are recorded with percentage 0. When the post-order account
// state cannot be read or the ledger write fails, the cycle result is lost and an
// error is returned.
func (s *AIStrategy) Trade(ctx context.Context) (rec *domain.TradeRecord, err error) {
	ctx, span := s.deps.Tracer.Start(ctx, "cycle", oteltrace.WithAttributes(attribute.String("pair", s.pair.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	mc, trades, txs := s.prepare(ctx)

	stepCtx, step := s.deps.Tracer.Start(ctx, "cycle.reflect")
	reflection := s.deps.Oracle.Reflect(stepCtx, trades, txs, mc)
	step.End()

	stepCtx, step = s.deps.Tracer.Start(ctx, "cycle.decide")
	decision, err := s.deps.Oracle.Decide(stepCtx, mc, reflection)
	step.End()
	if err != nil {
		s.logger.Error("decision failed, no order placed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCycleAborted, err)
	}

	stepCtx, step = s.deps.Tracer.Start(ctx, "cycle.execute",
		oteltrace.WithAttributes(attribute.String("decision", decision.Action.String()), attribute.Int("percentage", decision.Percentage)))
	outcome := s.deps.Executor.Execute(stepCtx, decision)
	step.SetAttributes(attribute.Bool("executed", outcome.Executed))
	step.End()

	state, err := s.deps.Executor.Account(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read account after order, cycle result lost")
	}

	base := state.Balances.Find(s.pair.From)
	record := domain.TradeRecord{
		Timestamp:      s.now(),
		Decision:       decision.Action,
		Percentage:     outcome.RecordedPercentage(),
		Reason:         decision.Reason,
		BTCBalance:     base.Balance,
		KRWBalance:     state.Balances.Find(s.pair.To).Balance,
		BTCAvgBuyPrice: base.AvgBuyPrice,
		BTCKRWPrice:    state.Price,
		Reflection:     reflection,
	}

	saved, err := s.deps.Ledger.AppendTrade(ctx, record)
	if err != nil {
		s.logger.Error("failed to record trade, cycle result lost", zap.Error(err))
		return nil, errors.Wrap(err, "record trade")
	}

	s.publish(ctx, saved, outcome.Executed)

	s.logger.Info("cycle completed",
		zap.String("decision", saved.Decision.String()),
		zap.Int("percentage", saved.Percentage),
		zap.Bool("executed", outcome.Executed),
		zap.String("total_krw", saved.Valuation().StringFixed(0)))
	return &saved, nil
}

// prepare gathers everything the oracle sees. Every failure here degrades to
// missing data.
func (s *AIStrategy) prepare(ctx context.Context) (promptbuilder.MarketContext, []domain.TradeRecord, []domain.TransactionRecord) {
	ctx, span := s.deps.Tracer.Start(ctx, "cycle.gather")
	defer span.End()

	balances, err := s.deps.Account.Balances(ctx)
	if err != nil {
		s.logger.Warn("balances unavailable", zap.Error(err))
	}

	snap := s.deps.Market.Gather(ctx)
	daily := indicators.Annotate(snap.DailyCandles)
	hourly := indicators.Annotate(snap.HourlyCandles)

	trades, err := s.deps.Ledger.RecentTrades(ctx, s.historyDays)
	if err != nil {
		s.logger.Warn("trade history unavailable", zap.Error(err))
	}
	since := s.now().AddDate(0, 0, -s.historyDays)
	txs, err := s.deps.Ledger.TransactionsSince(ctx, since)
	if err != nil {
		s.logger.Warn("transaction history unavailable", zap.Error(err))
	}

	mc := s.deps.Builder.Assemble(promptbuilder.Inputs{
		Balances: balances,
		Snapshot: snap,
		Daily:    daily,
		Hourly:   hourly,
		Trades:   trades,
	})
	return mc, trades, txs
}

// publish fans the record out to the optional sinks. Failures are logged only.
func (s *AIStrategy) publish(ctx context.Context, rec domain.TradeRecord, executed bool) {
	event := domain.NewDecisionEvent(s.pair, s.model, rec, executed)

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Save(event); err != nil {
			s.logger.Warn("failed to journal decision event", zap.Error(err))
		}
	}
	s.deps.Metrics.RecordCycle(ctx, s.pair, rec, executed)
	s.deps.Notifier.Notify(notify.FormatDecision(event))
}
