package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the direction of a trading decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction maps a case-insensitive action string to an Action.
// ok is false for anything other than BUY, SELL or HOLD.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionHold:
		return ActionHold, true
	default:
		return ActionHold, false
	}
}

func (a Action) String() string {
	return string(a)
}

// Decision is the outcome of one decision cycle. It is produced once and never mutated.
type Decision struct {
	Action     Action          `json:"action"`
	Confidence decimal.Decimal `json:"confidence"` // percent, [0,100], 2 decimals
	Reason     string          `json:"reason"`
	Quantity   int64           `json:"quantity"`
	Fallback   bool            `json:"fallback"` // true when the prediction service was bypassed
}
