package domain

import "github.com/shopspring/decimal"

// Balance account holding for one currency.
type Balance struct {
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Locked      decimal.Decimal `json:"locked"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
}

// Balances list of account holdings.
type Balances []Balance

// Find returns the holding for currency, zero value when absent.
func (b Balances) Find(currency string) Balance {
	for _, bal := range b {
		if bal.Currency == currency {
			return bal
		}
	}
	return Balance{Currency: currency}
}

// Filter keeps only the given currencies.
func (b Balances) Filter(currencies ...string) Balances {
	out := make(Balances, 0, len(currencies))
	for _, bal := range b {
		for _, c := range currencies {
			if bal.Currency == c {
				out = append(out, bal)
				break
			}
		}
	}
	return out
}
