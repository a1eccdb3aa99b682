package finnhub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stock_go/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://finnhub.io/api/v1"
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int // 0 disables rate limiting
	Retries       int
	Logger        *slog.Logger
}

// quoteResponse is the /quote payload. Finnhub answers unknown tickers with zeros.
type quoteResponse struct {
	Current   *float64 `json:"c"`
	High      *float64 `json:"h"`
	Low       *float64 `json:"l"`
	Open      *float64 `json:"o"`
	PrevClose *float64 `json:"pc"`
	Timestamp int64    `json:"t"`
}

// Client fetches quotes from the Finnhub REST API. It implements domain.MarketDataProvider.
type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ domain.MarketDataProvider = (*Client)(nil)

// NewClient creates a new Finnhub client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	return &Client{
		http:    client,
		apiKey:  opts.APIKey,
		limiter: limiter,
		logger:  opts.Logger.With("module", "finnhub"),
	}
}

// Quote returns the current price of symbol rounded half-up to cents.
// Every failure wraps domain.ErrDataUnavailable.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.apiKey == "" {
		return decimal.Zero, fmt.Errorf("%w: finnhub api key not configured", domain.ErrDataUnavailable)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, domain.NewNetworkError("quote", err))
		}
	}

	var quote quoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  c.apiKey,
		}).
		SetResult(&quote).
		Get("/quote")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, domain.NewNetworkError("quote", err))
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, domain.NewFatalNetworkError("quote", err))
		}
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, domain.NewNetworkError("quote", err))
	}

	if quote.Current == nil || *quote.Current <= 0 {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", domain.ErrDataUnavailable, symbol)
	}

	c.logger.DebugContext(ctx, "Quote received",
		slog.String("symbol", symbol),
		slog.Float64("current", *quote.Current),
		slog.Any("open", quote.Open),
		slog.Any("high", quote.High),
		slog.Any("low", quote.Low),
		slog.Any("prev_close", quote.PrevClose),
	)

	return decimal.NewFromFloat(*quote.Current).Round(2), nil
}
