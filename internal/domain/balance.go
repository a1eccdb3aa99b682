package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Debit removes amount from the account's cash.
// It refuses to take the balance below zero and leaves the account untouched in that case.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.GreaterThan(a.Cash) {
		return &RejectionError{Reason: fmt.Sprintf("insufficient funds: need %s, available %s",
			amount.StringFixed(2), a.Cash.StringFixed(2))}
	}
	a.Cash = a.Cash.Sub(amount)
	return nil
}

// Credit adds amount to the account's cash.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Cash = a.Cash.Add(amount)
}

// VerifyInvariant checks the account after a state change.
func (a *Account) VerifyInvariant() error {
	if a.Cash.IsNegative() {
		return fmt.Errorf("%w: ACCOUNT_NEGATIVE_CASH %s = %s", ErrInvariantViolation, a.UserID, a.Cash)
	}
	return nil
}

// AddLot adds qty shares bought at price, re-averaging the cost basis.
// The new average is rounded half-up to cents.
func (p *Position) AddLot(qty int64, price decimal.Decimal) {
	if p.Quantity <= 0 {
		p.Quantity = qty
		p.AvgPrice = price
		return
	}

	oldTotal := p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
	newTotal := price.Mul(decimal.NewFromInt(qty))
	p.Quantity += qty
	p.AvgPrice = oldTotal.Add(newTotal).DivRound(decimal.NewFromInt(p.Quantity), 2)
}

// RemoveShares takes qty shares out of the position. The average price is
// left as it was: it still describes the cost of the remaining shares.
func (p *Position) RemoveShares(qty int64) error {
	if qty > p.Quantity {
		return &RejectionError{Reason: fmt.Sprintf("insufficient shares: want %d, held %d", qty, p.Quantity)}
	}
	p.Quantity -= qty
	return nil
}

// VerifyInvariant checks the position after a state change.
func (p *Position) VerifyInvariant() error {
	if p.Quantity < 0 {
		return fmt.Errorf("%w: POSITION_NEGATIVE_QUANTITY %s/%s = %d",
			ErrInvariantViolation, p.UserID, p.Symbol, p.Quantity)
	}
	if p.AvgPrice.IsNegative() {
		return fmt.Errorf("%w: POSITION_NEGATIVE_AVG_PRICE %s/%s = %s",
			ErrInvariantViolation, p.UserID, p.Symbol, p.AvgPrice)
	}
	return nil
}
