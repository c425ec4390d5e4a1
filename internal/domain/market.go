package domain

import "time"

// FearGreed current value of the crypto fear & greed index.
type FearGreed struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
	TimeUntilUpdate     string `json:"time_until_update,omitempty"`
}

// NewsHeadline single news search result.
type NewsHeadline struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

// MacroPoint close of an auxiliary index at one hour.
type MacroPoint struct {
	Time  time.Time `json:"timestamp_kst"`
	Close float64   `json:"close"`
}

// MacroSeries hourly series of an auxiliary index, e.g. DXY.
type MacroSeries struct {
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
	Points []MacroPoint `json:"points"`
}
