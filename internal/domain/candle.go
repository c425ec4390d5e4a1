package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle OHLCV data point.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Interval candle size supported by the collector.
type Interval string

const (
	IntervalDay  Interval = "day"
	IntervalHour Interval = "minute60"
)

// IndicatorSet per-candle indicator values keyed by name.
// A nil value means the indicator is still warming up at that candle.
type IndicatorSet map[string]*float64

// AnnotatedCandle candle together with its indicator values.
type AnnotatedCandle struct {
	Candle
	Indicators IndicatorSet `json:"indicators"`
}
