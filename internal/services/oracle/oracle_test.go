package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/autotrade/internal/clients"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/services/promptbuilder"
)

type chatCall struct {
	instruction string
	user        string
	schema      bool
}

type fakeLLM struct {
	replies []string
	errs    []error
	calls   []chatCall
}

func (f *fakeLLM) Chat(_ context.Context, instruction, user string, opts ...clients.ChatOption) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, chatCall{instruction: instruction, user: user, schema: len(opts) > 0})
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", nil
}

func trade(ts time.Time, krw, btc, price string) domain.TradeRecord {
	return domain.TradeRecord{
		Timestamp:   ts,
		KRWBalance:  decimal.RequireFromString(krw),
		BTCBalance:  decimal.RequireFromString(btc),
		BTCKRWPrice: decimal.RequireFromString(price),
	}
}

func TestPerformance(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		trades []domain.TradeRecord
		txs    []domain.TransactionRecord
		want   float64
	}{
		{name: "no trades", want: 0},
		{
			name:   "single trade",
			trades: []domain.TradeRecord{trade(day(1), "1000000", "0", "100000000")},
			want:   0,
		},
		{
			name: "newest first",
			trades: []domain.TradeRecord{
				trade(day(3), "550000", "0.006", "100000000"), // 1,150,000
				trade(day(2), "500000", "0.005", "100000000"),
				trade(day(1), "1000000", "0", "100000000"), // 1,000,000
			},
			want: 15,
		},
		{
			name: "loss",
			trades: []domain.TradeRecord{
				trade(day(2), "0", "0.01", "90000000"), // 900,000
				trade(day(1), "0", "0.01", "100000000"),
			},
			want: -10,
		},
		{
			name: "deposits after the first trade raise the base",
			trades: []domain.TradeRecord{
				trade(day(3), "1500000", "0", "100000000"),
				trade(day(1), "1000000", "0", "100000000"),
			},
			txs: []domain.TransactionRecord{
				{Timestamp: day(2), Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(500000), Currency: "KRW"},
				{Timestamp: day(2), Type: domain.TransactionWithdrawal, Amount: decimal.NewFromInt(250000), Currency: "KRW"},
				{Timestamp: day(1).Add(-time.Hour), Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(999999), Currency: "KRW"},
				{Timestamp: day(2), Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(1), Currency: "BTC"},
			},
			want: 20, // 1.5M vs 1.25M
		},
		{
			name: "deposits after the newest trade are ignored",
			trades: []domain.TradeRecord{
				trade(day(2), "1000000", "0", "100000000"),
				trade(day(1), "1000000", "0", "100000000"),
			},
			txs: []domain.TransactionRecord{
				{Timestamp: day(2).Add(2 * time.Hour), Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(500000), Currency: "KRW"},
			},
			want: 0,
		},
		{
			name: "deposit at the newest trade counts",
			trades: []domain.TradeRecord{
				trade(day(2), "1500000", "0", "100000000"),
				trade(day(1), "1000000", "0", "100000000"),
			},
			txs: []domain.TransactionRecord{
				{Timestamp: day(2), Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(500000), Currency: "KRW"},
			},
			want: 0,
		},
		{
			name: "zero base",
			trades: []domain.TradeRecord{
				trade(day(2), "1000", "0", "1"),
				trade(day(1), "0", "0", "100000000"),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Performance(tt.trades, tt.txs), 1e-9)
		})
	}
}

func newTestOracle(llm *fakeLLM) *Oracle {
	pb := promptbuilder.NewPromptBuilder(domain.Pair{From: "BTC", To: "KRW"}, 60, 48, nil)
	return New(llm, pb, 7, nil)
}

func TestReflect(t *testing.T) {
	llm := &fakeLLM{replies: []string{"stay cautious"}}
	o := newTestOracle(llm)

	trades := []domain.TradeRecord{
		trade(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "1100000", "0", "1"),
		trade(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "1000000", "0", "1"),
	}
	got := o.Reflect(context.Background(), trades, nil, promptbuilder.MarketContext{})

	assert.Equal(t, "stay cautious", got)
	require.Len(t, llm.calls, 1)
	assert.Equal(t, promptbuilder.ReflectionInstruction, llm.calls[0].instruction)
	assert.Contains(t, llm.calls[0].user, "Overall performance in the last 7 days: 10.00%")
	assert.False(t, llm.calls[0].schema)
}

func TestReflectDegradesToEmpty(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("timeout")}}
	got := newTestOracle(llm).Reflect(context.Background(), nil, nil, promptbuilder.MarketContext{})
	assert.Empty(t, got)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		want     domain.Decision
		wantKind domain.DecisionErrorKind
		wantErr  bool
	}{
		{
			name:  "valid",
			reply: `{"decision":"buy","percentage":50,"reason":"oversold"}`,
			want:  domain.Decision{Action: domain.ActionBuy, Percentage: 50, Reason: "oversold"},
		},
		{
			name:     "missing field",
			reply:    `{"decision":"buy","reason":"x"}`,
			wantErr:  true,
			wantKind: domain.DecisionErrMissingField,
		},
		{
			name:     "invalid enum",
			reply:    `{"decision":"moon","percentage":10,"reason":"x"}`,
			wantErr:  true,
			wantKind: domain.DecisionErrInvalidAction,
		},
		{
			name:    "transport error",
			err:     errors.New("connection reset"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{replies: []string{tt.reply}, errs: []error{tt.err}}
			got, err := newTestOracle(llm).Decide(context.Background(), promptbuilder.MarketContext{}, "r")

			require.Len(t, llm.calls, 1)
			assert.True(t, llm.calls[0].schema)
			assert.Equal(t, promptbuilder.DecisionInstruction, llm.calls[0].instruction)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			if tt.wantKind != "" {
				var de *domain.DecisionError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.wantKind, de.Kind)
			}
		})
	}
}
