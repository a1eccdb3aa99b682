package strategy

import (
	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

// returnPrecision is the number of decimal places kept for return1d.
const returnPrecision = 8

// Return1d is the relative change between the last two prices.
// It is 0 with fewer than two points or when the previous price is zero.
func Return1d(history []decimal.Decimal) float64 {
	n := len(history)
	if n < 2 {
		return 0.0
	}
	prev, last := history[n-2], history[n-1]
	if prev.IsZero() {
		return 0.0
	}
	return last.Sub(prev).DivRound(prev, returnPrecision).InexactFloat64()
}

// SMA is the mean of the last min(window, len(history)) prices, 0 for an empty history.
func SMA(history []decimal.Decimal, window int) float64 {
	n := len(history)
	if n == 0 || window <= 0 {
		return 0.0
	}
	start := max(0, n-window)

	sum := decimal.Zero
	for _, p := range history[start:] {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(n - start))).InexactFloat64()
}

// ComputeFeatures derives the feature set for price from its post-insert history.
// The current price is part of its own trailing window.
func ComputeFeatures(price decimal.Decimal, history []decimal.Decimal) domain.FeatureSet {
	sma5 := SMA(history, 5)
	priceOverSMA5 := 1.0
	if sma5 > 0 {
		priceOverSMA5 = price.InexactFloat64() / sma5
	}
	return domain.FeatureSet{
		Return1d:      Return1d(history),
		SMA5:          sma5,
		SMA10:         SMA(history, 10),
		PriceOverSMA5: priceOverSMA5,
	}
}
