package ledger

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

// TradeModel row of the trades table.
type TradeModel struct {
	ID             uint      `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"not null;index"`
	Decision       string    `gorm:"size:8;not null"`
	Percentage     int       `gorm:"not null;default:0"`
	Reason         string
	BTCBalance     float64 `gorm:"column:btc_balance"`
	KRWBalance     float64 `gorm:"column:krw_balance"`
	BTCAvgBuyPrice float64 `gorm:"column:btc_avg_buy_price"`
	BTCKRWPrice    float64 `gorm:"column:btc_krw_price"`
	Reflection     string
}

func (TradeModel) TableName() string {
	return "trades"
}

// TransactionModel row of the transactions table.
type TransactionModel struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"not null;index"`
	Type      string    `gorm:"size:16;not null"`
	Amount    float64   `gorm:"not null"`
	Currency  string    `gorm:"size:8;not null"`
	Reason    string
}

func (TransactionModel) TableName() string {
	return "transactions"
}

// SnapshotModel row of the orderbook_snapshots table. The book is kept as JSON.
type SnapshotModel struct {
	ID            uint      `gorm:"primaryKey"`
	SnapshotTime  time.Time `gorm:"not null;index"`
	OrderbookJSON string    `gorm:"column:orderbook_json;not null"`
}

func (SnapshotModel) TableName() string {
	return "orderbook_snapshots"
}

func toTradeModel(r domain.TradeRecord) TradeModel {
	return TradeModel{
		Timestamp:      r.Timestamp.UTC(),
		Decision:       r.Decision.String(),
		Percentage:     r.Percentage,
		Reason:         r.Reason,
		BTCBalance:     r.BTCBalance.InexactFloat64(),
		KRWBalance:     r.KRWBalance.InexactFloat64(),
		BTCAvgBuyPrice: r.BTCAvgBuyPrice.InexactFloat64(),
		BTCKRWPrice:    r.BTCKRWPrice.InexactFloat64(),
		Reflection:     r.Reflection,
	}
}

func (m TradeModel) toRecord() domain.TradeRecord {
	return domain.TradeRecord{
		ID:             m.ID,
		Timestamp:      m.Timestamp,
		Decision:       domain.Action(m.Decision),
		Percentage:     m.Percentage,
		Reason:         m.Reason,
		BTCBalance:     decimal.NewFromFloat(m.BTCBalance),
		KRWBalance:     decimal.NewFromFloat(m.KRWBalance),
		BTCAvgBuyPrice: decimal.NewFromFloat(m.BTCAvgBuyPrice),
		BTCKRWPrice:    decimal.NewFromFloat(m.BTCKRWPrice),
		Reflection:     m.Reflection,
	}
}

func toTransactionModel(t domain.TransactionRecord) TransactionModel {
	return TransactionModel{
		Timestamp: t.Timestamp.UTC(),
		Type:      string(t.Type),
		Amount:    t.Amount.InexactFloat64(),
		Currency:  t.Currency,
		Reason:    t.Reason,
	}
}

func (m TransactionModel) toRecord() domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Type:      domain.TransactionType(m.Type),
		Amount:    decimal.NewFromFloat(m.Amount),
		Currency:  m.Currency,
		Reason:    m.Reason,
	}
}

func toSnapshotModel(s domain.OrderBookSnapshot) (SnapshotModel, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return SnapshotModel{}, errors.Wrap(err, "encode orderbook snapshot")
	}
	return SnapshotModel{SnapshotTime: s.CapturedAt.UTC(), OrderbookJSON: string(payload)}, nil
}

func (m SnapshotModel) toSnapshot() (domain.OrderBookSnapshot, error) {
	var s domain.OrderBookSnapshot
	if err := json.Unmarshal([]byte(m.OrderbookJSON), &s); err != nil {
		return domain.OrderBookSnapshot{}, errors.Wrapf(err, "decode orderbook snapshot %d", m.ID)
	}
	s.CapturedAt = m.SnapshotTime
	return s, nil
}
