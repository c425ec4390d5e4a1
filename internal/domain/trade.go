package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord outcome of one completed decision cycle.
type TradeRecord struct {
	ID             uint            `json:"id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Decision       Action          `json:"decision"`
	Percentage     int             `json:"percentage"`
	Reason         string          `json:"reason"`
	BTCBalance     decimal.Decimal `json:"btc_balance"`
	KRWBalance     decimal.Decimal `json:"krw_balance"`
	BTCAvgBuyPrice decimal.Decimal `json:"btc_avg_buy_price"`
	BTCKRWPrice    decimal.Decimal `json:"btc_krw_price"`
	Reflection     string          `json:"reflection"`
}

// Valuation returns krw + btc * price at the time of the record.
func (r TradeRecord) Valuation() decimal.Decimal {
	return r.KRWBalance.Add(r.BTCBalance.Mul(r.BTCKRWPrice))
}

// TransactionType manual account movement.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// TransactionRecord manual deposit or withdrawal.
type TransactionRecord struct {
	ID        uint            `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reason    string          `json:"reason"`
}

// Signed returns amount for deposits and -amount for withdrawals.
func (t TransactionRecord) Signed() decimal.Decimal {
	if t.Type == TransactionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}
