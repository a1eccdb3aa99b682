package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open
	Metrics     *infra.Metrics
	Logger      *slog.Logger
}

type predictRequest struct {
	Symbol   string             `json:"symbol"`
	Price    json.Number        `json:"price"`
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	Symbol         string   `json:"symbol"`
	Action         *string  `json:"action"`
	ConfidenceUp   *float64 `json:"confidence_up"`
	ConfidenceDown *float64 `json:"confidence_down"`
	Reason         string   `json:"reason"`
}

// Client calls the prediction service's POST /predict behind a circuit
// breaker. It implements domain.Predictor.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ domain.Predictor = (*Client)(nil)

// NewClient creates a prediction client for opts.BaseURL.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaultMaxFailures
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("module", "predictor")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "predictor",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if opts.Metrics != nil {
				opts.Metrics.SetCircuitState(to == gobreaker.StateOpen)
			}
		},
	})

	return &Client{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Content-Type", "application/json"),
		breaker: cb,
		logger:  logger,
	}
}

// Predict posts the features of req and returns the service's answer.
// When the breaker is open it fails immediately without a request.
func (c *Client) Predict(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResponse, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.PredictionResponse{}, domain.NewNetworkError("predict", err)
		}
		return domain.PredictionResponse{}, err
	}
	return out.(domain.PredictionResponse), nil
}

func (c *Client) call(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResponse, error) {
	body := predictRequest{
		Symbol:   req.Symbol,
		Price:    json.Number(req.Price.String()),
		Features: req.Features.Map(),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/predict")
	if err != nil {
		return domain.PredictionResponse{}, domain.NewNetworkError("predict", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.PredictionResponse{}, domain.NewNetworkError("predict",
			fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if len(resp.Body()) == 0 {
		return domain.PredictionResponse{}, domain.ErrEmptyPrediction
	}

	var pr predictResponse
	if err := json.Unmarshal(resp.Body(), &pr); err != nil {
		return domain.PredictionResponse{}, fmt.Errorf("decode prediction: %w", err)
	}
	// a null body, {} or a null action carry no answer at all
	if pr.Action == nil {
		return domain.PredictionResponse{}, domain.ErrEmptyPrediction
	}

	c.logger.DebugContext(ctx, "Prediction received",
		slog.String("symbol", req.Symbol),
		slog.String("action", *pr.Action),
		slog.Any("confidence_up", pr.ConfidenceUp),
		slog.Any("confidence_down", pr.ConfidenceDown),
	)

	return domain.PredictionResponse{
		Action:         *pr.Action,
		ConfidenceUp:   pr.ConfidenceUp,
		ConfidenceDown: pr.ConfidenceDown,
		Reason:         pr.Reason,
	}, nil
}
