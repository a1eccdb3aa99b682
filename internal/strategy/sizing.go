package strategy

import (
	"log/slog"

	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	minBuyFraction  = decimal.RequireFromString("0.05")
	maxBuyFraction  = decimal.RequireFromString("0.30")
	minSellFraction = decimal.RequireFromString("0.20")
	maxSellFraction = decimal.RequireFromString("0.80")

	buySlope  = decimal.RequireFromString("0.5")
	buyBase   = decimal.RequireFromString("0.10")
	sellSlope = decimal.RequireFromString("1.2")
	sellBase  = decimal.RequireFromString("0.20")
	half      = decimal.RequireFromString("0.5")
)

// fractionOf evaluates clamp(lo, hi, (c - 0.5) * slope + base) in decimal.
// c enters as its shortest decimal form, so 0.7 is exactly 0.7 and the
// fraction carries no binary noise into the share count.
func fractionOf(c float64, slope, base, lo, hi decimal.Decimal) decimal.Decimal {
	f := decimal.NewFromFloat(c).Sub(half).Mul(slope).Add(base)
	return decimal.Min(hi, decimal.Max(lo, f))
}

// BuyFraction is the share of cash invested for a BUY at confidence c in [0,1].
// 40% and below -> 5%, 50% -> 10%, 70% -> 20%, 90% and above -> 30%.
func BuyFraction(c float64) decimal.Decimal {
	return fractionOf(c, buySlope, buyBase, minBuyFraction, maxBuyFraction)
}

// SellFraction is the share of a position sold for a SELL at confidence c in [0,1].
// 50% -> 20%, 70% -> 44%, 100% -> 80%.
func SellFraction(c float64) decimal.Decimal {
	return fractionOf(c, sellSlope, sellBase, minSellFraction, maxSellFraction)
}

// PositionSizer turns a decided action into a share count.
type PositionSizer struct {
	logger *slog.Logger
}

// NewPositionSizer creates a sizer. A nil logger uses slog.Default().
func NewPositionSizer(logger *slog.Logger) *PositionSizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionSizer{logger: logger.With("module", "sizer")}
}

// Size returns the quantity for action at fractional confidence c.
// pos may be nil when the user holds nothing of the symbol.
func (s *PositionSizer) Size(action domain.Action, c float64, price, cash decimal.Decimal, pos *domain.Position) int64 {
	switch action {
	case domain.ActionBuy:
		return s.sizeBuy(c, price, cash)
	case domain.ActionSell:
		return s.sizeSell(c, pos)
	default:
		return 0
	}
}

func (s *PositionSizer) sizeBuy(c float64, price, cash decimal.Decimal) int64 {
	if !price.IsPositive() || cash.LessThan(price) {
		return 0
	}

	fraction := BuyFraction(c)
	qty := cash.Mul(fraction).Div(price).Floor().IntPart()
	if qty <= 0 {
		// an affordable single share is never refused
		qty = 1
	}

	s.logger.Info("BUY sized",
		slog.Float64("confidence", c),
		slog.String("fraction", fraction.String()),
		slog.Int64("quantity", qty),
	)
	return qty
}

func (s *PositionSizer) sizeSell(c float64, pos *domain.Position) int64 {
	if !pos.IsOpen() {
		s.logger.Warn("No position to sell")
		return 0
	}

	fraction := SellFraction(c)
	qty := decimal.NewFromInt(pos.Quantity).Mul(fraction).Round(0).IntPart()
	qty = max(1, min(qty, pos.Quantity))

	s.logger.Info("SELL sized",
		slog.String("symbol", pos.Symbol),
		slog.Float64("confidence", c),
		slog.String("fraction", fraction.String()),
		slog.Int64("quantity", qty),
		slog.Int64("held", pos.Quantity),
	)
	return qty
}
