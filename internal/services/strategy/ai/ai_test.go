package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/autotrade/internal/clients"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/services/market/collector"
	"github.com/vadiminshakov/autotrade/internal/services/oracle"
	"github.com/vadiminshakov/autotrade/internal/services/promptbuilder"
	"github.com/vadiminshakov/autotrade/internal/services/trader"
)

var pair = domain.Pair{From: "BTC", To: "KRW"}

// scriptedLLM answers the reflection call and then the decision call.
type scriptedLLM struct {
	reflection string
	decision   string
	decideErr  error
	calls      int
}

func (l *scriptedLLM) Chat(_ context.Context, _, _ string, opts ...clients.ChatOption) (string, error) {
	l.calls++
	if len(opts) == 0 {
		return l.reflection, nil
	}
	if l.decideErr != nil {
		return "", l.decideErr
	}
	return l.decision, nil
}

type fakeExchange struct {
	mu       sync.Mutex
	balances domain.Balances
	price    decimal.Decimal
	buys     int
	sells    int
}

func (f *fakeExchange) Balances(ctx context.Context) (domain.Balances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, nil
}

func (f *fakeExchange) Price(ctx context.Context, market string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeExchange) BuyMarket(ctx context.Context, market string, spend decimal.Decimal) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys++
	return domain.Order{UUID: "b"}, nil
}

func (f *fakeExchange) SellMarket(ctx context.Context, market string, volume decimal.Decimal) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sells++
	return domain.Order{UUID: "s"}, nil
}

type fakeMarket struct{}

func (fakeMarket) Gather(ctx context.Context) collector.MarketSnapshot {
	return collector.MarketSnapshot{GatheredAt: time.Now()}
}

type fakeLedger struct {
	trades    []domain.TradeRecord
	appendErr error
}

func (l *fakeLedger) AppendTrade(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	if l.appendErr != nil {
		return domain.TradeRecord{}, l.appendErr
	}
	rec.ID = uint(len(l.trades) + 1)
	l.trades = append(l.trades, rec)
	return rec, nil
}

func (l *fakeLedger) RecentTrades(ctx context.Context, days int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (l *fakeLedger) TransactionsSince(ctx context.Context, since time.Time) ([]domain.TransactionRecord, error) {
	return nil, nil
}

type fakeJournal struct{ events []domain.DecisionEvent }

func (j *fakeJournal) Save(ev domain.DecisionEvent) error {
	j.events = append(j.events, ev)
	return nil
}

type fakeNotifier struct{ messages []string }

func (n *fakeNotifier) Notify(text string) { n.messages = append(n.messages, text) }
func (n *fakeNotifier) Close()             {}

type env struct {
	strategy *AIStrategy
	exchange *fakeExchange
	ledger   *fakeLedger
	journal  *fakeJournal
	notifier *fakeNotifier
	llm      *scriptedLLM
}

func newEnv(t *testing.T, balances domain.Balances, llm *scriptedLLM) *env {
	t.Helper()

	ex := &fakeExchange{balances: balances, price: decimal.NewFromInt(100000000)}
	builder := promptbuilder.NewPromptBuilder(pair, 60, 48, nil)
	exec := trader.NewExecutor(ex, pair, trader.Settings{
		FeeMargin:   decimal.RequireFromString("0.9995"),
		MinNotional: decimal.NewFromInt(5000),
	}, nil)

	e := &env{
		exchange: ex,
		ledger:   &fakeLedger{},
		journal:  &fakeJournal{},
		notifier: &fakeNotifier{},
		llm:      llm,
	}

	s, err := NewAIStrategy(nil, pair, "openai/o3-mini", 7, Deps{
		Account:  ex,
		Market:   fakeMarket{},
		Builder:  builder,
		Oracle:   oracle.New(llm, builder, 7, nil),
		Executor: exec,
		Ledger:   e.ledger,
		Journal:  e.journal,
		Notifier: e.notifier,
	})
	require.NoError(t, err)
	e.strategy = s
	return e
}

func balances(krw, btc string) domain.Balances {
	return domain.Balances{
		{Currency: "KRW", Balance: decimal.RequireFromString(krw)},
		{Currency: "BTC", Balance: decimal.RequireFromString(btc), AvgBuyPrice: decimal.NewFromInt(95000000)},
		{Currency: "ETH", Balance: decimal.NewFromInt(3)},
	}
}

func TestTrade_Buy(t *testing.T) {
	e := newEnv(t, balances("1000000", "0"), &scriptedLLM{
		reflection: "last week was flat",
		decision:   `{"decision":"buy","percentage":50,"reason":"RSI 28, oversold"}`,
	})

	rec, err := e.strategy.Trade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, 1, e.exchange.buys)
	assert.Equal(t, domain.ActionBuy, rec.Decision)
	assert.Equal(t, 50, rec.Percentage)
	assert.Equal(t, "last week was flat", rec.Reflection)
	assert.True(t, rec.BTCKRWPrice.Equal(decimal.NewFromInt(100000000)))
	assert.True(t, rec.BTCAvgBuyPrice.Equal(decimal.NewFromInt(95000000)))

	require.Len(t, e.ledger.trades, 1)
	require.Len(t, e.journal.events, 1)
	assert.True(t, e.journal.events[0].Executed)
	assert.Equal(t, "o3-mini", e.journal.events[0].Model)
	require.Len(t, e.notifier.messages, 1)
	assert.Contains(t, e.notifier.messages[0], "BUY BTC_KRW 50%")
}

func TestTrade_HoldRecordsZero(t *testing.T) {
	e := newEnv(t, balances("1000000", "0.01"), &scriptedLLM{
		decision: `{"decision":"hold","percentage":40,"reason":"sideways"}`,
	})

	rec, err := e.strategy.Trade(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rec.Percentage)
	assert.Equal(t, 0, e.exchange.buys+e.exchange.sells)
	require.Len(t, e.ledger.trades, 1)
	assert.Equal(t, 0, e.ledger.trades[0].Percentage)
}

func TestTrade_BelowMinNotionalRecordsZero(t *testing.T) {
	tests := []struct {
		name     string
		balances domain.Balances
		decision string
	}{
		{name: "buy", balances: balances("8000", "0"), decision: `{"decision":"buy","percentage":50,"reason":"r"}`},
		{name: "sell", balances: balances("0", "0.00003"), decision: `{"decision":"sell","percentage":100,"reason":"r"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.balances, &scriptedLLM{decision: tt.decision})

			rec, err := e.strategy.Trade(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 0, e.exchange.buys+e.exchange.sells, "no order call")
			assert.Equal(t, 0, rec.Percentage)
			require.Len(t, e.ledger.trades, 1)
			assert.False(t, e.journal.events[0].Executed)
		})
	}
}

func TestTrade_InvalidDecisionAbortsWithoutLedgerWrite(t *testing.T) {
	tests := []struct {
		name     string
		decision string
		err      error
		kind     domain.DecisionErrorKind
	}{
		{name: "missing reason", decision: `{"decision":"buy","percentage":10}`, kind: domain.DecisionErrMissingField},
		{name: "missing percentage", decision: `{"decision":"sell","reason":"r"}`, kind: domain.DecisionErrMissingField},
		{name: "unknown action", decision: `{"decision":"short","percentage":10,"reason":"r"}`, kind: domain.DecisionErrInvalidAction},
		{name: "not json", decision: `buy everything`, kind: domain.DecisionErrInvalidJSON},
		{name: "endpoint failure", err: errors.New("503 service unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, balances("1000000", "0.01"), &scriptedLLM{decision: tt.decision, decideErr: tt.err})

			rec, err := e.strategy.Trade(context.Background())
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, ErrCycleAborted)

			if tt.kind != "" {
				var de *domain.DecisionError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.kind, de.Kind)
			}

			assert.Empty(t, e.ledger.trades)
			assert.Empty(t, e.journal.events)
			assert.Empty(t, e.notifier.messages)
			assert.Equal(t, 0, e.exchange.buys+e.exchange.sells)
		})
	}
}

func TestTrade_LedgerFailureLosesResult(t *testing.T) {
	e := newEnv(t, balances("1000000", "0"), &scriptedLLM{
		decision: `{"decision":"buy","percentage":10,"reason":"r"}`,
	})
	e.ledger.appendErr = errors.New("database is locked")

	rec, err := e.strategy.Trade(context.Background())
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.NotErrorIs(t, err, ErrCycleAborted)
	assert.Equal(t, 1, e.exchange.buys, "order was already placed")
	assert.Empty(t, e.journal.events)
}

func TestNewAIStrategy_RequiresDeps(t *testing.T) {
	_, err := NewAIStrategy(nil, pair, "m", 7, Deps{})
	assert.Error(t, err)
}

type fakeBook struct {
	snap domain.OrderBookSnapshot
	err  error
}

func (b fakeBook) OrderBook(ctx context.Context, market string) (domain.OrderBookSnapshot, error) {
	return b.snap, b.err
}

type fakeSnapshots struct{ saved []domain.OrderBookSnapshot }

func (s *fakeSnapshots) AppendSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	s.saved = append(s.saved, snap)
	return nil
}

func TestSnapshotJob_Run(t *testing.T) {
	store := &fakeSnapshots{}
	snap := domain.OrderBookSnapshot{CapturedAt: time.Now(), TotalBidSize: decimal.NewFromInt(3)}

	job := NewSnapshotJob(pair, fakeBook{snap: snap}, store, nil, nil)
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].TotalBidSize.Equal(decimal.NewFromInt(3)))

	failing := NewSnapshotJob(pair, fakeBook{err: errors.New("timeout")}, store, nil, nil)
	assert.Error(t, failing.Run(context.Background()))
	assert.Len(t, store.saved, 1)
}
