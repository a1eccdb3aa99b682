package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketDataProvider fetches the latest price for a symbol from an upstream source.
// It fails with an error wrapping ErrDataUnavailable when no usable price exists.
type MarketDataProvider interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PredictionRequest is what the prediction service receives.
type PredictionRequest struct {
	Symbol   string
	Price    decimal.Decimal
	Features FeatureSet
}

// PredictionResponse is what the prediction service answers.
// Confidences are probabilities in [0,1]; nil means the service omitted them.
type PredictionResponse struct {
	Action         string
	ConfidenceUp   *float64
	ConfidenceDown *float64
	Reason         string
}

// Predictor returns a directional estimate for a symbol. Any error means the
// caller must fall back to its own heuristic.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) (PredictionResponse, error)
}

// Ledger persists accounts, positions and the trade log.
// GetAccount and GetPosition return (nil, nil) when nothing is stored.
type Ledger interface {
	Transaction(ctx context.Context, fn func(tx Ledger) error) error
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, userID string) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	GetPosition(ctx context.Context, userID, symbol string) (*Position, error)
	ListPositions(ctx context.Context, userID string) ([]Position, error)
	SavePosition(ctx context.Context, position *Position) error
	AppendTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context, userID string, limit int) ([]TradeRecord, error)
}
