// Package promptbuilder assembles the market context of a decision cycle and
// renders it into the reflection and decision prompts.
package promptbuilder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/services/market/collector"
	"github.com/vadiminshakov/autotrade/internal/services/market/indicators"
	"go.uber.org/zap"
)

// MarketContext single serializable view of everything the oracle sees.
type MarketContext struct {
	Pair             string                     `json:"pair"`
	GeneratedAt      time.Time                  `json:"generated_at"`
	Balances         domain.Balances            `json:"balances"`
	OrderBook        *domain.OrderBookSnapshot  `json:"orderbook"`
	OrderBookHistory []domain.OrderBookSnapshot `json:"orderbook_history"`
	DailyOHLCV       []domain.AnnotatedCandle   `json:"daily_ohlcv"`
	HourlyOHLCV      []domain.AnnotatedCandle   `json:"hourly_ohlcv"`
	News             []domain.NewsHeadline      `json:"news_headlines"`
	FearGreed        *domain.FearGreed          `json:"fear_greed_index"`
	Macro            []domain.MacroSeries       `json:"macro"`
	RecentTrades     []domain.TradeRecord       `json:"recent_trades"`
}

// JSON serializes the context for prompts.
func (mc MarketContext) JSON() (string, error) {
	data, err := json.Marshal(mc)
	if err != nil {
		return "", errors.Wrap(err, "marshal market context")
	}
	return string(data), nil
}

// Inputs raw material of a market context.
type Inputs struct {
	Balances domain.Balances
	Snapshot collector.MarketSnapshot
	Daily    []domain.AnnotatedCandle
	Hourly   []domain.AnnotatedCandle
	Trades   []domain.TradeRecord
}

// PromptBuilder constructs market contexts and prompts for the LLM
type PromptBuilder struct {
	pair       domain.Pair
	dailyTail  int
	hourlyTail int
	logger     *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance
func NewPromptBuilder(pair domain.Pair, dailyTail, hourlyTail int, logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptBuilder{
		pair:       pair,
		dailyTail:  dailyTail,
		hourlyTail: hourlyTail,
		logger:     logger,
	}
}

// Assemble merges the inputs into one context. Only base and quote balances are kept
// and candle series are cut to their tails.
func (pb *PromptBuilder) Assemble(in Inputs) MarketContext {
	mc := MarketContext{
		Pair:             pb.pair.String(),
		GeneratedAt:      in.Snapshot.GatheredAt,
		Balances:         in.Balances.Filter(pb.pair.From, pb.pair.To),
		OrderBook:        in.Snapshot.OrderBook,
		OrderBookHistory: in.Snapshot.OrderBookHistory,
		DailyOHLCV:       indicators.Tail(in.Daily, pb.dailyTail),
		HourlyOHLCV:      indicators.Tail(in.Hourly, pb.hourlyTail),
		News:             in.Snapshot.News,
		FearGreed:        in.Snapshot.FearGreed,
		Macro:            in.Snapshot.Macro,
		RecentTrades:     in.Trades,
	}

	pb.logger.Debug("market context assembled",
		zap.Int("daily", len(mc.DailyOHLCV)),
		zap.Int("hourly", len(mc.HourlyOHLCV)),
		zap.Int("trades", len(mc.RecentTrades)))

	return mc
}

// BuildReflectionPrompt renders the user message of the reflection call.
func (pb *PromptBuilder) BuildReflectionPrompt(mc MarketContext, performance float64, days int) (string, error) {
	trades, err := json.Marshal(nonNil(mc.RecentTrades))
	if err != nil {
		return "", errors.Wrap(err, "marshal recent trades")
	}

	market := mc
	market.RecentTrades = nil
	marketJSON, err := market.JSON()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Recent trading data:\n")
	sb.Write(trades)
	sb.WriteString("\n\nCurrent market data:\n")
	sb.WriteString(marketJSON)
	sb.WriteString(fmt.Sprintf("\n\nOverall performance in the last %d days: %.2f%%\n\n", days, performance))
	sb.WriteString(reflectionTask)
	sb.WriteString("\n")
	return sb.String(), nil
}

// BuildDecisionPrompt renders the user message of the decision call.
func (pb *PromptBuilder) BuildDecisionPrompt(mc MarketContext, reflection string) (string, error) {
	sections := []struct {
		title string
		value any
	}{
		{"Current investment status", nonNil(mc.Balances)},
		{"Current orderbook", mc.OrderBook},
		{"Orderbook snapshots (recent hours)", nonNil(mc.OrderBookHistory)},
		{fmt.Sprintf("Daily OHLCV (recent %d days) with indicators", len(mc.DailyOHLCV)), nonNil(mc.DailyOHLCV)},
		{fmt.Sprintf("Hourly OHLCV (recent %d hours) with indicators", len(mc.HourlyOHLCV)), nonNil(mc.HourlyOHLCV)},
		{"Recent news headlines", nonNil(mc.News)},
		{"Fear and Greed Index", mc.FearGreed},
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s at %s\n\n", pb.pair.String(), mc.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString("Recent trading reflection from the previous step:\n")
	if strings.TrimSpace(reflection) == "" {
		sb.WriteString("(no reflection available)\n")
	} else {
		sb.WriteString(reflection)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, s := range sections {
		data, err := json.Marshal(s.value)
		if err != nil {
			return "", errors.Wrapf(err, "marshal %s", s.title)
		}
		sb.WriteString(s.title)
		sb.WriteString(": ")
		sb.Write(data)
		sb.WriteString("\n")
	}

	for _, m := range mc.Macro {
		data, err := json.Marshal(nonNil(m.Points))
		if err != nil {
			return "", errors.Wrapf(err, "marshal %s series", m.Name)
		}
		sb.WriteString(fmt.Sprintf("%s (%s, recent 7 days): ", m.Name, m.Symbol))
		sb.Write(data)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// nonNil renders missing lists as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
