package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/autotrade/config"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/events"
	"github.com/vadiminshakov/autotrade/internal/storage/decisions"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	var tmp config.ConfigTmp
	tmp.DryRun = true
	conf, err := config.FromTmp(tmp)
	require.NoError(t, err)

	dir := t.TempDir()
	conf.Ledger.Path = filepath.Join(dir, "trades.db")
	conf.DecisionsWALDir = filepath.Join(dir, "wal")
	conf.Schedule.RunOnStart = false
	t.Setenv("AUTOTRADE_SIMULATE_STATE_DIR", filepath.Join(dir, "sim"))
	return conf
}

func TestNewTradingBot(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *config.Config)
		expectError string
	}{
		{
			name:   "dry run with defaults",
			mutate: func(c *config.Config) {},
		},
		{
			name:   "dashboard enabled",
			mutate: func(c *config.Config) { c.Web.Addr = "127.0.0.1:0" },
		},
		{
			name:        "invalid decision time",
			mutate:      func(c *config.Config) { c.Schedule.DecisionTimes = []string{"7am"} },
			expectError: "decision schedule",
		},
		{
			name:        "unwritable ledger",
			mutate:      func(c *config.Config) { c.Ledger.Path = filepath.Join(t.TempDir(), "missing", "dir", "trades.db") },
			expectError: "trade ledger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig(t)
			tt.mutate(&conf)

			bot, err := NewTradingBot(context.Background(), conf, nil)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.Nil(t, bot)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, bot)
			defer bot.Close()

			assert.Equal(t, conf, bot.Config)
			assert.Equal(t, conf.Web.Addr != "", bot.web != nil)
		})
	}
}

func TestTradingBot_RunStopsOnCancel(t *testing.T) {
	bot, err := NewTradingBot(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer bot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseTransaction(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		args       []string
		wantType   domain.TransactionType
		wantAmount string
		wantReason string
		wantErr    bool
	}{
		{name: "deposit", args: []string{"deposit", "500,000", "monthly", "top-up"}, wantType: domain.TransactionDeposit, wantAmount: "500000", wantReason: "monthly top-up"},
		{name: "withdrawal", args: []string{"WITHDRAWAL", "100000"}, wantType: domain.TransactionWithdrawal, wantAmount: "100000"},
		{name: "missing amount", args: []string{"deposit"}, wantErr: true},
		{name: "unknown type", args: []string{"transfer", "10"}, wantErr: true},
		{name: "negative amount", args: []string{"deposit", "-10"}, wantErr: true},
		{name: "not a number", args: []string{"deposit", "lots"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := ParseTransaction(tt.args, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, tx.Type)
			assert.True(t, tx.Amount.Equal(decimal.RequireFromString(tt.wantAmount)), tx.Amount.String())
			assert.Equal(t, "KRW", tx.Currency)
			assert.Equal(t, tt.wantReason, tx.Reason)
			assert.Equal(t, now, tx.Timestamp)
		})
	}
}

func TestPublishingJournal(t *testing.T) {
	store, err := decisions.NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	updates := events.NewBroadcaster[domain.DecisionEvent](1)
	sub := updates.Subscribe()
	j := publishingJournal{WALStore: store, updates: updates}

	require.NoError(t, j.Save(domain.DecisionEvent{Pair: "BTC_KRW", Action: "hold"}))
	ev := <-sub
	assert.Equal(t, "hold", ev.Action)

	require.Error(t, j.Save(domain.DecisionEvent{Action: "buy"}), "pair is required")
	assert.Empty(t, sub)
}
