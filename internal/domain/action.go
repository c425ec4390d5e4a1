package domain

// Action trading decision returned by the oracle.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Valid reports whether a is one of buy, sell or hold.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
