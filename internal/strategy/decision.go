package strategy

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// DefaultHoldOverrideThreshold promotes a HOLD when one side's probability exceeds it.
	DefaultHoldOverrideThreshold = 0.55
	// DefaultPredictTimeout bounds a single prediction call.
	DefaultPredictTimeout = 5 * time.Second
)

var errNoPredictor = errors.New("no predictor configured")

// StatsRecorder receives every final decision.
type StatsRecorder interface {
	RecordDecision(action domain.Action, fallback bool)
}

// DecisionEngine turns a market snapshot into a sized Decision.
// It never fails: when the predictor is unavailable it decides with the
// fallback heuristic instead.
type DecisionEngine struct {
	history   *PriceHistoryStore
	predictor domain.Predictor
	sizer     *PositionSizer
	rng       RandomSource
	stats     StatsRecorder
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a DecisionEngine.
type Option func(*DecisionEngine)

// WithHoldOverride sets the HOLD override threshold. 0 disables overriding.
func WithHoldOverride(threshold float64) Option {
	return func(e *DecisionEngine) { e.threshold = threshold }
}

// WithPredictTimeout bounds each prediction call.
func WithPredictTimeout(d time.Duration) Option {
	return func(e *DecisionEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRandomSource replaces the fallback heuristic's random source.
func WithRandomSource(rng RandomSource) Option {
	return func(e *DecisionEngine) { e.rng = rng }
}

// WithStats registers a recorder for decision statistics.
func WithStats(s StatsRecorder) Option {
	return func(e *DecisionEngine) { e.stats = s }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *DecisionEngine) { e.logger = l }
}

// NewDecisionEngine creates an engine observing prices into history and asking predictor.
func NewDecisionEngine(history *PriceHistoryStore, predictor domain.Predictor, opts ...Option) *DecisionEngine {
	e := &DecisionEngine{
		history:   history,
		predictor: predictor,
		rng:       SystemRandom,
		threshold: DefaultHoldOverrideThreshold,
		timeout:   DefaultPredictTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("module", "decision")
	e.sizer = NewPositionSizer(e.logger)
	return e
}

// Decide observes snap into the price history, computes features, asks the
// predictor and sizes the resulting action against account and pos.
// pos may be nil.
func (e *DecisionEngine) Decide(ctx context.Context, snap domain.MarketSnapshot, account *domain.Account, pos *domain.Position) domain.Decision {
	history := e.history.Observe(snap.Symbol, snap.Price)
	features := ComputeFeatures(snap.Price, history)

	e.logger.InfoContext(ctx, "Indicators computed",
		slog.String("symbol", snap.Symbol),
		slog.Int("points", len(history)),
		slog.Float64("return_1d", features.Return1d),
		slog.Float64("sma_5", features.SMA5),
		slog.Float64("sma_10", features.SMA10),
		slog.Float64("price_over_sma5", features.PriceOverSMA5),
	)

	var (
		action   domain.Action
		conf     float64
		reason   string
		fallback bool
	)

	resp, err := e.predict(ctx, domain.PredictionRequest{Symbol: snap.Symbol, Price: snap.Price, Features: features})
	if err != nil {
		e.logger.WarnContext(ctx, "Prediction unavailable, using fallback strategy",
			slog.String("symbol", snap.Symbol), slog.Any("error", err))
		choice := chooseFallback(e.rng)
		action, conf, reason, fallback = choice.action, choice.confidence, choice.reason, true
	} else {
		var known bool
		action, conf, known = Interpret(resp, e.threshold)
		if !known {
			e.logger.WarnContext(ctx, "Unknown prediction action, using HOLD",
				slog.String("symbol", snap.Symbol), slog.String("action", resp.Action))
		}
		reason = resp.Reason
	}

	cash := decimal.Zero
	if account != nil {
		cash = account.Cash
	}

	d := domain.Decision{
		Action:     action,
		Confidence: ConfidencePercent(conf),
		Reason:     reason,
		Quantity:   e.sizer.Size(action, conf, snap.Price, cash, pos),
		Fallback:   fallback,
	}

	if e.stats != nil {
		e.stats.RecordDecision(d.Action, d.Fallback)
	}

	e.logger.InfoContext(ctx, "Decision made",
		slog.String("symbol", snap.Symbol),
		slog.String("action", d.Action.String()),
		slog.String("confidence", d.Confidence.StringFixed(2)),
		slog.Int64("quantity", d.Quantity),
		slog.Bool("fallback", d.Fallback),
		slog.String("reason", d.Reason),
	)
	return d
}

func (e *DecisionEngine) predict(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResponse, error) {
	if e.predictor == nil {
		return domain.PredictionResponse{}, errNoPredictor
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.predictor.Predict(ctx, req)
}

// Interpret converts a prediction into the final action and its [0,1] confidence.
//
// An unrecognized action becomes HOLD (known is false). A HOLD is promoted to
// BUY or SELL when threshold > 0 and that side's probability exceeds both the
// threshold and the opposite side. HOLD's confidence is 1 - |up - down|.
func Interpret(resp domain.PredictionResponse, threshold float64) (action domain.Action, conf float64, known bool) {
	up := probability(resp.ConfidenceUp)
	down := probability(resp.ConfidenceDown)

	action, known = domain.ParseAction(resp.Action)

	if action == domain.ActionHold && threshold > 0 {
		switch {
		case up > threshold && up > down:
			action = domain.ActionBuy
		case down > threshold && down > up:
			action = domain.ActionSell
		}
	}

	switch action {
	case domain.ActionBuy:
		conf = up
	case domain.ActionSell:
		conf = down
	default:
		conf = 1 - math.Abs(up-down)
	}
	return action, conf, known
}

// ConfidencePercent scales a [0,1] confidence to a percentage rounded half-up to 2 decimals.
func ConfidencePercent(c float64) decimal.Decimal {
	return decimal.NewFromFloat(c * 100).Round(2)
}

// probability reads an optional probability, treating nil as 0 and clamping to [0,1].
func probability(p *float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	return min(1, max(0, *p))
}
