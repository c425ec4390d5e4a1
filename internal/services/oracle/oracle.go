// Package oracle asks the LLM for a reflection on recent trading and then for an
// actionable decision.
package oracle

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/clients"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/services/promptbuilder"
	"go.uber.org/zap"
)

// DecisionSchema strict structured-output schema of the decision call.
var DecisionSchema = clients.JSONSchema{
	Name:   "trading_decision",
	Strict: true,
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"decision":   map[string]any{"type": "string", "enum": []string{"buy", "sell", "hold"}},
			"percentage": map[string]any{"type": "integer"},
			"reason":     map[string]any{"type": "string"},
		},
		"required":             []string{"decision", "percentage", "reason"},
		"additionalProperties": false,
	},
}

// Oracle decision client on top of a chat model.
type Oracle struct {
	llm         clients.LLMClient
	builder     *promptbuilder.PromptBuilder
	historyDays int
	logger      *zap.Logger
}

func New(llm clients.LLMClient, builder *promptbuilder.PromptBuilder, historyDays int, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{llm: llm, builder: builder, historyDays: historyDays, logger: logger}
}

// Reflect returns a short review of recent trades. Any failure yields an empty
// reflection; the decision call still happens.
func (o *Oracle) Reflect(ctx context.Context, trades []domain.TradeRecord, txs []domain.TransactionRecord, mc promptbuilder.MarketContext) string {
	performance := Performance(trades, txs)
	mc.RecentTrades = trades

	prompt, err := o.builder.BuildReflectionPrompt(mc, performance, o.historyDays)
	if err != nil {
		o.logger.Error("failed to build reflection prompt", zap.Error(err))
		return ""
	}

	start := time.Now()
	reflection, err := o.llm.Chat(ctx, promptbuilder.ReflectionInstruction, prompt)
	if err != nil {
		o.logger.Error("reflection call failed, continuing without reflection", zap.Error(err))
		return ""
	}

	o.logger.Info("reflection generated",
		zap.Float64("performance_pct", performance),
		zap.Int("trades", len(trades)),
		zap.Duration("took", time.Since(start)))
	return reflection
}

// Decide asks for a buy/sell/hold decision. Transport, API and validation errors
// are returned; a *domain.DecisionError is reachable with errors.As.
func (o *Oracle) Decide(ctx context.Context, mc promptbuilder.MarketContext, reflection string) (domain.Decision, error) {
	prompt, err := o.builder.BuildDecisionPrompt(mc, reflection)
	if err != nil {
		return domain.Decision{}, errors.Wrap(err, "build decision prompt")
	}

	start := time.Now()
	raw, err := o.llm.Chat(ctx, promptbuilder.DecisionInstruction, prompt, clients.WithJSONSchema(DecisionSchema))
	if err != nil {
		return domain.Decision{}, errors.Wrap(err, "decision call failed")
	}

	decision, err := domain.ParseDecision(raw)
	if err != nil {
		return domain.Decision{}, errors.Wrap(err, "invalid decision response")
	}

	o.logger.Info("AI decision",
		zap.String("decision", decision.Action.String()),
		zap.Int("percentage", decision.Percentage),
		zap.String("reason", decision.Reason),
		zap.Duration("took", time.Since(start)))
	return decision, nil
}

// Performance returns the percent change in total valuation between the oldest and
// newest trade. trades are ordered newest first. KRW deposits net of withdrawals made
// after the oldest trade and no later than the newest one are added to its valuation.
func Performance(trades []domain.TradeRecord, txs []domain.TransactionRecord) float64 {
	if len(trades) == 0 {
		return 0
	}

	latest := trades[0]
	earliest := trades[len(trades)-1]

	initial := earliest.Valuation()
	for _, tx := range txs {
		if tx.Currency != "" && tx.Currency != "KRW" {
			continue
		}
		if tx.Timestamp.After(earliest.Timestamp) && !tx.Timestamp.After(latest.Timestamp) {
			initial = initial.Add(tx.Signed())
		}
	}
	if initial.IsZero() {
		return 0
	}

	pct := latest.Valuation().Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
	return pct.InexactFloat64()
}
