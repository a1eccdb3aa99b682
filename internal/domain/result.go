package domain

import "github.com/shopspring/decimal"

// PositionSummary describes a position after an execution.
type PositionSummary struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Closed   bool            `json:"closed"`
	Changed  bool            `json:"changed"`
}

// ExecutionResult is what every trading cycle returns, successful or not.
// Callers inspect Success and Message; they never receive an error.
type ExecutionResult struct {
	CycleID        string           `json:"cycle_id,omitempty"`
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	TradeID        *uint            `json:"trade_id,omitempty"`
	NewCashBalance decimal.Decimal  `json:"new_cash_balance"`
	Position       PositionSummary  `json:"position"`
	Symbol         string           `json:"symbol"`
	Action         Action           `json:"action,omitempty"`
	Quantity       int64            `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	Total          decimal.Decimal  `json:"total"`
	RealizedPnL    *decimal.Decimal `json:"realized_pnl,omitempty"` // SELL only
	Decision       *Decision        `json:"decision,omitempty"`
	Source         Source           `json:"source,omitempty"`
}

// Failed builds an unsuccessful result carrying msg.
func Failed(symbol, msg string) ExecutionResult {
	return ExecutionResult{Symbol: symbol, Success: false, Message: msg}
}

// BatchEntry pairs a symbol with its cycle result.
type BatchEntry struct {
	Symbol string          `json:"symbol"`
	Result ExecutionResult `json:"result"`
}

// BatchResult aggregates the cycles of a multi-symbol run.
type BatchResult struct {
	UserID  string          `json:"user_id"`
	Entries []BatchEntry    `json:"entries"`
	Bought  int             `json:"bought"`
	Sold    int             `json:"sold"`
	Held    int             `json:"held"`
	Failed  int             `json:"failed"`
	Cash    decimal.Decimal `json:"cash"`
}

// Add records one cycle result and updates the tallies.
func (b *BatchResult) Add(symbol string, res ExecutionResult) {
	b.Entries = append(b.Entries, BatchEntry{Symbol: symbol, Result: res})
	if !res.Success {
		b.Failed++
		return
	}
	switch res.Action {
	case ActionBuy:
		b.Bought++
	case ActionSell:
		b.Sold++
	case ActionHold:
		b.Held++
	}
	b.Cash = res.NewCashBalance
}
