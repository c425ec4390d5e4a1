package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel single price level.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot order book at a point in time. Bids are ordered best (highest)
// first, asks best (lowest) first.
type OrderBookSnapshot struct {
	CapturedAt   time.Time        `json:"captured_at"`
	TotalAskSize decimal.Decimal  `json:"total_ask_size"`
	TotalBidSize decimal.Decimal  `json:"total_bid_size"`
	Bids         []OrderBookLevel `json:"bids"`
	Asks         []OrderBookLevel `json:"asks"`
}

// BestBid returns the highest bid or zero when the book is empty.
func (s OrderBookSnapshot) BestBid() decimal.Decimal {
	if len(s.Bids) == 0 {
		return decimal.Zero
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask or zero when the book is empty.
func (s OrderBookSnapshot) BestAsk() decimal.Decimal {
	if len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price
}
