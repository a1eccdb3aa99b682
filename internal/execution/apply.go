package execution

import (
	"fmt"

	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Fill is the state change one decision makes to an account and position.
type Fill struct {
	Action   domain.Action
	Quantity int64
	Price    decimal.Decimal
	Total    decimal.Decimal
	// Position is the updated position to persist; nil when nothing changed.
	Position    *domain.Position
	RealizedPnL *decimal.Decimal
}

// Closed reports whether the fill sold the last share of the position.
func (f Fill) Closed() bool {
	return f.Action == domain.ActionSell && f.Position != nil && f.Position.Quantity == 0
}

// Apply executes d at price against account and pos in memory.
//
// On success account and pos are mutated (pos may be nil for a first BUY, in
// which case a new position is created). On a *domain.RejectionError neither
// is touched.
func Apply(account *domain.Account, pos *domain.Position, symbol string, d domain.Decision, price decimal.Decimal) (Fill, error) {
	switch d.Action {
	case domain.ActionBuy:
		return applyBuy(account, pos, symbol, d, price)
	case domain.ActionSell:
		return applySell(account, pos, symbol, d, price)
	default:
		return Fill{Action: domain.ActionHold, Price: price, Total: decimal.Zero}, nil
	}
}

func applyBuy(account *domain.Account, pos *domain.Position, symbol string, d domain.Decision, price decimal.Decimal) (Fill, error) {
	if d.Quantity <= 0 {
		return Fill{}, &domain.RejectionError{Reason: fmt.Sprintf("cannot buy %s: suggested quantity is %d", symbol, d.Quantity)}
	}

	total := price.Mul(decimal.NewFromInt(d.Quantity))
	if err := account.Debit(total); err != nil {
		return Fill{}, err
	}

	if pos == nil {
		pos = &domain.Position{UserID: account.UserID, Symbol: symbol}
	}
	pos.AddLot(d.Quantity, price)

	return Fill{
		Action:   domain.ActionBuy,
		Quantity: d.Quantity,
		Price:    price,
		Total:    total,
		Position: pos,
	}, nil
}

func applySell(account *domain.Account, pos *domain.Position, symbol string, d domain.Decision, price decimal.Decimal) (Fill, error) {
	if !pos.IsOpen() {
		return Fill{}, &domain.RejectionError{Reason: "no position to sell in " + symbol}
	}

	qty := min(d.Quantity, pos.Quantity)
	if qty <= 0 {
		return Fill{}, &domain.RejectionError{Reason: fmt.Sprintf("not enough shares to sell: %d held", pos.Quantity)}
	}

	shares := decimal.NewFromInt(qty)
	revenue := price.Mul(shares)
	pnl := revenue.Sub(pos.AvgPrice.Mul(shares))

	if err := pos.RemoveShares(qty); err != nil {
		return Fill{}, err
	}
	account.Credit(revenue)

	return Fill{
		Action:      domain.ActionSell,
		Quantity:    qty,
		Price:       price,
		Total:       revenue,
		Position:    pos,
		RealizedPnL: &pnl,
	}, nil
}
