package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side order direction.
type Side string

const (
	SideBuy  Side = "bid"
	SideSell Side = "ask"
)

// Order exchange order acknowledgement.
type Order struct {
	UUID      string          `json:"uuid"`
	Side      Side            `json:"side"`
	Market    string          `json:"market"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	State     string          `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}
