package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestStore prepares an in-memory ledger with a fixed clock.
func setupTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := New(db, nil)
	require.NoError(t, err, "failed to migrate tables")
	store.now = func() time.Time { return now }

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func trade(ts time.Time, action domain.Action, pct int, krw, btc, price int64) domain.TradeRecord {
	return domain.TradeRecord{
		Timestamp:   ts,
		Decision:    action,
		Percentage:  pct,
		Reason:      "test",
		KRWBalance:  decimal.NewFromInt(krw),
		BTCBalance:  decimal.New(btc, -3),
		BTCKRWPrice: decimal.NewFromInt(price),
	}
}

func TestNew_MigratesIdempotently(t *testing.T) {
	store := setupTestStore(t, time.Now())

	_, err := New(store.db, nil)
	require.NoError(t, err)

	for _, table := range []string{"trades", "transactions", "orderbook_snapshots"} {
		assert.True(t, store.db.Migrator().HasTable(table), table)
	}
}

func TestStore_AppendTrade(t *testing.T) {
	now := time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)
	store := setupTestStore(t, now)
	ctx := context.Background()

	rec := trade(now, domain.ActionBuy, 50, 500000, 1, 100000000)
	rec.BTCAvgBuyPrice = decimal.NewFromInt(99000000)
	rec.Reflection = "stay patient"

	saved, err := store.AppendTrade(ctx, rec)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	all, err := store.AllTrades(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, domain.ActionBuy, got.Decision)
	assert.Equal(t, 50, got.Percentage)
	assert.True(t, got.KRWBalance.Equal(decimal.NewFromInt(500000)))
	assert.True(t, got.BTCBalance.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, got.BTCAvgBuyPrice.Equal(decimal.NewFromInt(99000000)))
	assert.Equal(t, "stay patient", got.Reflection)
	assert.True(t, got.Timestamp.Equal(now))
}

func TestStore_RecentTrades(t *testing.T) {
	now := time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)
	store := setupTestStore(t, now)
	ctx := context.Background()

	for _, rec := range []domain.TradeRecord{
		trade(now.AddDate(0, 0, -10), domain.ActionHold, 0, 1, 0, 1),
		trade(now.AddDate(0, 0, -3), domain.ActionBuy, 30, 2, 0, 1),
		trade(now.Add(-time.Hour), domain.ActionSell, 20, 3, 0, 1),
		trade(now.AddDate(0, 0, -5), domain.ActionHold, 0, 4, 0, 1),
	} {
		_, err := store.AppendTrade(ctx, rec)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		days int
		want []int64
	}{
		{name: "seven days newest first", days: 7, want: []int64{3, 2, 4}},
		{name: "one day", days: 1, want: []int64{3}},
		{name: "whole history", days: 30, want: []int64{3, 2, 4, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.RecentTrades(ctx, tt.days)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w, got[i].KRWBalance.IntPart(), "row %d", i)
			}
		})
	}
}

func TestStore_AppendTransaction(t *testing.T) {
	now := time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)
	store := setupTestStore(t, now)
	ctx := context.Background()

	tests := []struct {
		name    string
		tx      domain.TransactionRecord
		wantErr bool
	}{
		{
			name: "deposit",
			tx:   domain.TransactionRecord{Timestamp: now, Type: domain.TransactionDeposit, Amount: decimal.NewFromInt(500000), Currency: "KRW"},
		},
		{
			name: "withdrawal",
			tx:   domain.TransactionRecord{Timestamp: now.Add(time.Hour), Type: domain.TransactionWithdrawal, Amount: decimal.NewFromInt(100000), Currency: "KRW"},
		},
		{
			name:    "unknown type",
			tx:      domain.TransactionRecord{Timestamp: now, Type: "gift", Amount: decimal.NewFromInt(1), Currency: "KRW"},
			wantErr: true,
		},
		{
			name:    "non positive amount",
			tx:      domain.TransactionRecord{Timestamp: now, Type: domain.TransactionDeposit, Amount: decimal.Zero, Currency: "KRW"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AppendTransaction(ctx, tt.tx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	txs, err := store.TransactionsSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TransactionDeposit, txs[0].Type)
	assert.True(t, txs[1].Signed().Equal(decimal.NewFromInt(-100000)))
}

func TestStore_Snapshots(t *testing.T) {
	now := time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)
	store := setupTestStore(t, now)
	ctx := context.Background()

	book := func(at time.Time, bid int64) domain.OrderBookSnapshot {
		return domain.OrderBookSnapshot{
			CapturedAt:   at,
			TotalAskSize: decimal.RequireFromString("1.5"),
			TotalBidSize: decimal.RequireFromString("2.5"),
			Bids:         []domain.OrderBookLevel{{Price: decimal.NewFromInt(bid), Size: decimal.NewFromInt(1)}},
			Asks:         []domain.OrderBookLevel{{Price: decimal.NewFromInt(bid + 1000), Size: decimal.NewFromInt(1)}},
		}
	}

	require.NoError(t, store.AppendSnapshot(ctx, book(now.Add(-9*time.Hour), 1)))
	require.NoError(t, store.AppendSnapshot(ctx, book(now.Add(-time.Hour), 3)))
	require.NoError(t, store.AppendSnapshot(ctx, book(now.Add(-7*time.Hour), 2)))

	got, err := store.SnapshotsSince(ctx, now.Add(-8*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].BestBid().Equal(decimal.NewFromInt(2)))
	assert.True(t, got[1].BestBid().Equal(decimal.NewFromInt(3)))
	assert.True(t, got[1].BestAsk().Equal(decimal.NewFromInt(1003)))
	assert.True(t, got[0].CapturedAt.Equal(now.Add(-7*time.Hour)))
}
