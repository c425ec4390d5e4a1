package domain

import (
	"strings"
	"time"
)

// DecisionEvent completed decision cycle as published to the dashboard stream.
type DecisionEvent struct {
	Timestamp  time.Time `json:"ts"`
	Pair       string    `json:"pair"`
	Model      string    `json:"model,omitempty"`
	Action     string    `json:"action"`
	Percentage int       `json:"percentage"`
	Executed   bool      `json:"executed"`
	Reason     string    `json:"reason"`
	Price      string    `json:"price,omitempty"`
	KRWBalance string    `json:"krw_balance,omitempty"`
	BTCBalance string    `json:"btc_balance,omitempty"`
	TotalKRW   string    `json:"total_krw,omitempty"`
}

// NewDecisionEvent builds an event from a persisted trade record.
func NewDecisionEvent(pair Pair, model string, rec TradeRecord, executed bool) DecisionEvent {
	return DecisionEvent{
		Timestamp:  rec.Timestamp,
		Pair:       pair.String(),
		Model:      normalizeModelName(model),
		Action:     rec.Decision.String(),
		Percentage: rec.Percentage,
		Executed:   executed,
		Reason:     rec.Reason,
		Price:      rec.BTCKRWPrice.StringFixed(0),
		KRWBalance: rec.KRWBalance.StringFixed(0),
		BTCBalance: rec.BTCBalance.StringFixed(8),
		TotalKRW:   rec.Valuation().StringFixed(0),
	}
}

// DecisionEventRecord bundles an event with its journal index.
type DecisionEventRecord struct {
	Index uint64
	Event DecisionEvent
}

// normalizeModelName strips a provider prefix such as "openai/" from model names.
func normalizeModelName(model string) string {
	if idx := strings.LastIndex(model, "/"); idx >= 0 && idx < len(model)-1 {
		return model[idx+1:]
	}
	return model
}
