package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"github.com/vadiminshakov/autotrade/internal/storage/simstate"
	"go.uber.org/zap"
)

// SimulateFee exchange fee applied to paper fills (0.05%).
var SimulateFee = decimal.RequireFromString("0.0005")

// Pricer defines an interface for getting the price of a market.
type Pricer interface {
	Price(ctx context.Context, market string) (decimal.Decimal, error)
}

// SimulateTrader paper wallet filling market orders at the live price.
type SimulateTrader struct {
	mu         sync.RWMutex
	pair       domain.Pair
	logger     *zap.Logger
	wallet     map[string]decimal.Decimal
	avgPrice   map[string]decimal.Decimal
	pricer     Pricer
	stateStore *simstate.Store
}

// NewSimulateTrader creates a paper trader holding initialQuote of the quote currency.
// A previously saved wallet in stateStore takes precedence. stateStore may be nil.
func NewSimulateTrader(pair domain.Pair, initialQuote decimal.Decimal, pricer Pricer, stateStore *simstate.Store, logger *zap.Logger) (*SimulateTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for SimulateTrader")
	}
	t := &SimulateTrader{
		pair:       pair,
		logger:     logger,
		wallet:     map[string]decimal.Decimal{pair.From: decimal.Zero, pair.To: initialQuote},
		avgPrice:   map[string]decimal.Decimal{},
		pricer:     pricer,
		stateStore: stateStore,
	}
	if err := t.restoreState(); err != nil {
		logger.Warn("failed to restore simulate state", zap.Error(err))
	}
	logger.Info("simulate init",
		zap.String("pair", pair.String()),
		zap.String("base", t.wallet[pair.From].String()),
		zap.String("quote", t.wallet[pair.To].String()))
	return t, nil
}

// Balances returns the paper wallet.
func (t *SimulateTrader) Balances(ctx context.Context) (domain.Balances, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.Balances{
		{Currency: t.pair.To, Balance: t.wallet[t.pair.To], AvgBuyPrice: decimal.Zero},
		{Currency: t.pair.From, Balance: t.wallet[t.pair.From], AvgBuyPrice: t.avgPrice[t.pair.From]},
	}, nil
}

// Price delegates to the live pricer.
func (t *SimulateTrader) Price(ctx context.Context, market string) (decimal.Decimal, error) {
	return t.pricer.Price(ctx, market)
}

// BuyMarket spends quote currency at the live price minus the fee.
func (t *SimulateTrader) BuyMarket(ctx context.Context, market string, spend decimal.Decimal) (domain.Order, error) {
	if err := t.checkMarket(market); err != nil {
		return domain.Order{}, err
	}
	price, err := t.pricer.Price(ctx, market)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "get price for simulated buy")
	}
	if !price.IsPositive() {
		return domain.Order{}, fmt.Errorf("invalid price %s", price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	quote := t.wallet[t.pair.To]
	if spend.GreaterThan(quote) {
		return domain.Order{}, fmt.Errorf("insufficient %s balance: have %s, need %s", t.pair.To, quote, spend)
	}

	volume := spend.Mul(decimal.NewFromInt(1).Sub(SimulateFee)).Div(price).Truncate(8)
	held := t.wallet[t.pair.From]

	// weighted average entry
	cost := t.avgPrice[t.pair.From].Mul(held).Add(volume.Mul(price))
	t.wallet[t.pair.From] = held.Add(volume)
	t.wallet[t.pair.To] = quote.Sub(spend)
	t.avgPrice[t.pair.From] = cost.Div(t.wallet[t.pair.From]).Round(0)

	t.persist()
	t.logger.Info("simulate buy",
		zap.String("spend", spend.String()),
		zap.String("volume", volume.String()),
		zap.String("price", price.String()))

	return t.order(domain.SideBuy, market, spend, volume), nil
}

// SellMarket sells base currency at the live price minus the fee.
func (t *SimulateTrader) SellMarket(ctx context.Context, market string, volume decimal.Decimal) (domain.Order, error) {
	if err := t.checkMarket(market); err != nil {
		return domain.Order{}, err
	}
	price, err := t.pricer.Price(ctx, market)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "get price for simulated sell")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	held := t.wallet[t.pair.From]
	if volume.GreaterThan(held) {
		return domain.Order{}, fmt.Errorf("insufficient %s balance: have %s, need %s", t.pair.From, held, volume)
	}

	proceeds := volume.Mul(price).Mul(decimal.NewFromInt(1).Sub(SimulateFee))
	t.wallet[t.pair.From] = held.Sub(volume)
	t.wallet[t.pair.To] = t.wallet[t.pair.To].Add(proceeds)
	if t.wallet[t.pair.From].IsZero() {
		t.avgPrice[t.pair.From] = decimal.Zero
	}

	t.persist()
	t.logger.Info("simulate sell",
		zap.String("volume", volume.String()),
		zap.String("proceeds", proceeds.StringFixed(0)),
		zap.String("price", price.String()))

	return t.order(domain.SideSell, market, price, volume), nil
}

func (t *SimulateTrader) checkMarket(market string) error {
	if market != t.pair.Market() {
		return fmt.Errorf("simulator trades %s only, got %s", t.pair.Market(), market)
	}
	return nil
}

func (t *SimulateTrader) order(side domain.Side, market string, price, volume decimal.Decimal) domain.Order {
	return domain.Order{
		UUID:      uuid.NewString(),
		Side:      side,
		Market:    market,
		Price:     price,
		Volume:    volume,
		State:     "done",
		CreatedAt: time.Now(),
	}
}

func (t *SimulateTrader) restoreState() error {
	if t.stateStore == nil {
		return nil
	}
	state, err := t.stateStore.Load()
	if err != nil || state == nil {
		return err
	}
	if state.Pair != "" && state.Pair != t.pair.String() {
		return fmt.Errorf("simulate state belongs to %s", state.Pair)
	}

	wallet, err := simstate.Decode(state.Wallet)
	if err != nil {
		return err
	}
	avg, err := simstate.Decode(state.AvgPrice)
	if err != nil {
		return err
	}
	for k, v := range wallet {
		t.wallet[k] = v
	}
	for k, v := range avg {
		t.avgPrice[k] = v
	}
	return nil
}

// persist must be called with mu held.
func (t *SimulateTrader) persist() {
	if t.stateStore == nil {
		return
	}
	err := t.stateStore.Save(simstate.State{
		Pair:      t.pair.String(),
		Wallet:    simstate.Encode(t.wallet),
		AvgPrice:  simstate.Encode(t.avgPrice),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.logger.Warn("failed to persist simulate state", zap.Error(err))
	}
}
