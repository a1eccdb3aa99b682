package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal columns are stored as text so SQLite's numeric affinity never turns
// them into floats.

// Account is a user's cash account. One per user.
type Account struct {
	UserID    string          `gorm:"primaryKey" json:"user_id"`
	Username  string          `json:"username"`
	Cash      decimal.Decimal `gorm:"type:text;not null" json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Position is the holding of one symbol by one user.
type Position struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"not null;uniqueIndex:idx_position_user_symbol" json:"user_id"`
	Symbol    string          `gorm:"not null;uniqueIndex:idx_position_user_symbol" json:"symbol"`
	Quantity  int64           `gorm:"not null;default:0" json:"quantity"`
	AvgPrice  decimal.Decimal `gorm:"type:text;not null" json:"avg_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarketValueAtCost returns avgPrice x quantity.
func (p *Position) MarketValueAtCost() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// IsOpen reports whether any shares are held.
func (p *Position) IsOpen() bool {
	return p != nil && p.Quantity > 0
}

// TradeRecord is an append-only audit entry for one executed cycle outcome.
type TradeRecord struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     string          `gorm:"not null;index:idx_trade_user_time" json:"user_id"`
	Symbol     string          `gorm:"not null;index" json:"symbol"`
	Action     Action          `gorm:"type:text;not null" json:"action"`
	Quantity   int64           `gorm:"not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:text;not null" json:"price"`
	Total      decimal.Decimal `gorm:"type:text;not null" json:"total"`
	Confidence decimal.Decimal `gorm:"type:text;not null" json:"confidence"`
	Reason     string          `json:"reason"`
	ExecutedAt time.Time       `gorm:"not null;index:idx_trade_user_time" json:"executed_at"`
}
