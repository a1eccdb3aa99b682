package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a snapshot price came from.
type Source string

const (
	SourceLive      Source = "LIVE"
	SourceSimulated Source = "SIMULATED"
)

// MarketSnapshot is an immutable point-in-time price observation for one symbol.
type MarketSnapshot struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     Source          `json:"source"`
}

// IsSimulated reports whether the price was substituted locally.
func (s MarketSnapshot) IsSimulated() bool {
	return s.Source == SourceSimulated
}

// FeatureSet holds the indicators derived from a symbol's price window.
type FeatureSet struct {
	Return1d      float64 `json:"return_1d"`
	SMA5          float64 `json:"sma_5"`
	SMA10         float64 `json:"sma_10"`
	PriceOverSMA5 float64 `json:"price_over_sma5"`
}

// Map returns the features keyed the way the prediction service expects them.
func (f FeatureSet) Map() map[string]float64 {
	return map[string]float64{
		"return_1d":       f.Return1d,
		"SMA_5":           f.SMA5,
		"SMA_10":          f.SMA10,
		"price_over_sma5": f.PriceOverSMA5,
	}
}
