// Package trader turns oracle decisions into market orders.
package trader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"go.uber.org/zap"
)

// ErrBelowMinNotional order size did not exceed the exchange minimum.
var ErrBelowMinNotional = errors.New("order below minimum notional")

var hundred = decimal.NewFromInt(100)

// Exchange account and order API of the broker.
type Exchange interface {
	Balances(ctx context.Context) (domain.Balances, error)
	Price(ctx context.Context, market string) (decimal.Decimal, error)
	BuyMarket(ctx context.Context, market string, spend decimal.Decimal) (domain.Order, error)
	SellMarket(ctx context.Context, market string, volume decimal.Decimal) (domain.Order, error)
}

// Settings order sizing rules.
type Settings struct {
	// FeeMargin share of the quote balance that may be spent on a buy.
	FeeMargin decimal.Decimal
	// MinNotional orders must be strictly above this quote amount.
	MinNotional     decimal.Decimal
	SettlementDelay time.Duration
}

// Outcome result of executing one decision.
type Outcome struct {
	Decision domain.Decision
	Executed bool
	// Notional quote value of the order that was (or would have been) placed.
	Notional decimal.Decimal
	Order    *domain.Order
	// Err why no order was placed for buy or sell. Nil for hold.
	Err error
}

// RecordedPercentage percentage to persist: the requested one when an order went
// through, 0 otherwise.
func (o Outcome) RecordedPercentage() int {
	if !o.Executed {
		return 0
	}
	return o.Decision.Percentage
}

// AccountState balances and price read after settlement.
type AccountState struct {
	Balances domain.Balances
	Price    decimal.Decimal
}

// Executor places market orders for one pair.
type Executor struct {
	exchange Exchange
	pair     domain.Pair
	settings Settings
	sleep    func(ctx context.Context, d time.Duration)
	logger   *zap.Logger
}

func NewExecutor(exchange Exchange, pair domain.Pair, settings Settings, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		exchange: exchange,
		pair:     pair,
		settings: settings,
		sleep:    sleepCtx,
		logger:   logger,
	}
}

// Execute places the order for decision and then waits the settlement delay.
// Order failures never escape: they are logged and reported in Outcome.Err.
func (e *Executor) Execute(ctx context.Context, decision domain.Decision) Outcome {
	out := Outcome{Decision: decision}

	switch decision.Action {
	case domain.ActionBuy:
		out = e.buy(ctx, decision)
	case domain.ActionSell:
		out = e.sell(ctx, decision)
	case domain.ActionHold:
		e.logger.Info("holding position", zap.String("reason", decision.Reason))
	default:
		out.Err = errors.Errorf("unknown action %q", decision.Action)
		e.logger.Error("cannot execute decision", zap.Error(out.Err))
	}

	e.sleep(ctx, e.settings.SettlementDelay)
	return out
}

func (e *Executor) buy(ctx context.Context, decision domain.Decision) Outcome {
	out := Outcome{Decision: decision}

	balances, err := e.exchange.Balances(ctx)
	if err != nil {
		out.Err = errors.Wrap(err, "read balances before buy")
		e.logger.Error("buy order failed", zap.Error(out.Err))
		return out
	}

	available := balances.Find(e.pair.To).Balance
	// the exchange takes whole won, so the floor must clear the minimum
	out.Notional = BuySpend(available, decision.Percentage, e.settings.FeeMargin).Truncate(0)

	if !out.Notional.GreaterThan(e.settings.MinNotional) {
		out.Err = ErrBelowMinNotional
		e.logger.Warn("buy order failed: insufficient KRW",
			zap.String("spend", out.Notional.StringFixed(0)),
			zap.String("min_notional", e.settings.MinNotional.String()))
		return out
	}

	order, err := e.exchange.BuyMarket(ctx, e.pair.Market(), out.Notional)
	if err != nil {
		out.Err = errors.Wrap(err, "place market buy")
		e.logger.Error("buy order failed", zap.String("spend", out.Notional.StringFixed(0)), zap.Error(err))
		return out
	}

	out.Executed, out.Order = true, &order
	e.logger.Info("buy order executed",
		zap.Int("percentage", decision.Percentage),
		zap.String("spend", out.Notional.StringFixed(0)),
		zap.String("uuid", order.UUID))
	return out
}

func (e *Executor) sell(ctx context.Context, decision domain.Decision) Outcome {
	out := Outcome{Decision: decision}

	balances, err := e.exchange.Balances(ctx)
	if err != nil {
		out.Err = errors.Wrap(err, "read balances before sell")
		e.logger.Error("sell order failed", zap.Error(out.Err))
		return out
	}
	price, err := e.exchange.Price(ctx, e.pair.Market())
	if err != nil {
		out.Err = errors.Wrap(err, "read price before sell")
		e.logger.Error("sell order failed", zap.Error(out.Err))
		return out
	}

	volume := SellVolume(balances.Find(e.pair.From).Balance, decision.Percentage)
	out.Notional = volume.Mul(price)

	if !out.Notional.GreaterThan(e.settings.MinNotional) {
		out.Err = ErrBelowMinNotional
		e.logger.Warn("sell order failed: insufficient BTC",
			zap.String("volume", volume.String()),
			zap.String("notional", out.Notional.StringFixed(0)),
			zap.String("min_notional", e.settings.MinNotional.String()))
		return out
	}

	order, err := e.exchange.SellMarket(ctx, e.pair.Market(), volume)
	if err != nil {
		out.Err = errors.Wrap(err, "place market sell")
		e.logger.Error("sell order failed", zap.String("volume", volume.String()), zap.Error(err))
		return out
	}

	out.Executed, out.Order = true, &order
	e.logger.Info("sell order executed",
		zap.Int("percentage", decision.Percentage),
		zap.String("volume", volume.String()),
		zap.String("uuid", order.UUID))
	return out
}

// Account reads balances and the current price, normally after Execute.
func (e *Executor) Account(ctx context.Context) (AccountState, error) {
	balances, err := e.exchange.Balances(ctx)
	if err != nil {
		return AccountState{}, errors.Wrap(err, "read balances")
	}
	price, err := e.exchange.Price(ctx, e.pair.Market())
	if err != nil {
		return AccountState{}, errors.Wrap(err, "read price")
	}
	return AccountState{Balances: balances, Price: price}, nil
}

// BuySpend quote amount for a buy: available × pct/100 × feeMargin.
func BuySpend(available decimal.Decimal, pct int, feeMargin decimal.Decimal) decimal.Decimal {
	return available.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Mul(feeMargin)
}

// SellVolume base amount for a sell: held × pct/100.
func SellVolume(held decimal.Decimal, pct int) decimal.Decimal {
	return held.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
