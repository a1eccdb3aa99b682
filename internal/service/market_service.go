package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/strategy"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// PriceStream is a cache of recent trade prices, such as a websocket feed.
type PriceStream interface {
	LatestPrice(symbol string, maxAge time.Duration) (decimal.Decimal, time.Time, bool)
}

// MarketService produces market snapshots. It prefers a fresh streamed
// trade, then the quote provider, and substitutes a simulated price when
// neither is available. Fetch never fails.
type MarketService struct {
	provider     domain.MarketDataProvider
	stream       PriceStream
	streamMaxAge time.Duration
	simMin       decimal.Decimal
	simMax       decimal.Decimal
	rng          strategy.RandomSource
	metrics      *infra.Metrics
	logger       *slog.Logger
	now          func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	latest map[string]domain.MarketSnapshot
}

// MarketOption configures a MarketService.
type MarketOption func(*MarketService)

// WithStream consults stream before the provider, accepting trades up to maxAge old.
func WithStream(stream PriceStream, maxAge time.Duration) MarketOption {
	return func(s *MarketService) {
		s.stream = stream
		s.streamMaxAge = maxAge
	}
}

// WithSimulatedRange sets the [lo, hi) range of simulated prices.
func WithSimulatedRange(lo, hi decimal.Decimal) MarketOption {
	return func(s *MarketService) {
		if lo.IsPositive() && hi.GreaterThan(lo) {
			s.simMin, s.simMax = lo, hi
		}
	}
}

// WithSimulationSource replaces the random source of simulated prices.
func WithSimulationSource(rng strategy.RandomSource) MarketOption {
	return func(s *MarketService) { s.rng = rng }
}

// WithMarketMetrics counts simulated prices in m.
func WithMarketMetrics(m *infra.Metrics) MarketOption {
	return func(s *MarketService) { s.metrics = m }
}

// WithMarketLogger sets the service's logger.
func WithMarketLogger(l *slog.Logger) MarketOption {
	return func(s *MarketService) { s.logger = l }
}

// NewMarketService creates a MarketService over provider. A nil provider
// always simulates.
func NewMarketService(provider domain.MarketDataProvider, opts ...MarketOption) *MarketService {
	s := &MarketService{
		provider: provider,
		simMin:   decimal.NewFromInt(100),
		simMax:   decimal.NewFromInt(500),
		rng:      strategy.SystemRandom,
		logger:   slog.Default(),
		now:      time.Now,
		latest:   make(map[string]domain.MarketSnapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "market")
	return s
}

// Fetch returns a snapshot for symbol.
func (s *MarketService) Fetch(ctx context.Context, symbol string) domain.MarketSnapshot {
	snap := s.fetch(ctx, symbol)

	s.mu.Lock()
	s.latest[symbol] = snap
	s.mu.Unlock()

	return snap
}

func (s *MarketService) fetch(ctx context.Context, symbol string) domain.MarketSnapshot {
	if s.stream != nil {
		if price, at, ok := s.stream.LatestPrice(symbol, s.streamMaxAge); ok {
			s.logger.DebugContext(ctx, "Price from stream", slog.String("symbol", symbol), slog.String("price", price.String()))
			return domain.MarketSnapshot{Symbol: symbol, Price: price, ObservedAt: at, Source: domain.SourceLive}
		}
	}

	if s.provider != nil {
		// concurrent cycles on one symbol share a single upstream call
		v, err, _ := s.group.Do(symbol, func() (any, error) {
			return s.provider.Quote(ctx, symbol)
		})
		if err == nil {
			price := v.(decimal.Decimal)
			s.logger.InfoContext(ctx, "Price fetched", slog.String("symbol", symbol), slog.String("price", price.StringFixed(2)))
			return domain.MarketSnapshot{Symbol: symbol, Price: price, ObservedAt: s.now(), Source: domain.SourceLive}
		}
		s.logger.WarnContext(ctx, "Quote unavailable, using simulated price",
			slog.String("symbol", symbol), slog.Any("error", err))
	}

	return s.simulate(ctx, symbol)
}

func (s *MarketService) simulate(ctx context.Context, symbol string) domain.MarketSnapshot {
	span := s.simMax.Sub(s.simMin)
	price := s.simMin.Add(span.Mul(decimal.NewFromFloat(s.rng.Float64()))).Round(2)
	if !price.LessThan(s.simMax) {
		price = s.simMax.Sub(decimal.New(1, -2))
	}

	if s.metrics != nil {
		s.metrics.RecordSimulatedPrice()
	}
	s.logger.WarnContext(ctx, "Simulated price generated", slog.String("symbol", symbol), slog.String("price", price.StringFixed(2)))

	return domain.MarketSnapshot{Symbol: symbol, Price: price, ObservedAt: s.now(), Source: domain.SourceSimulated}
}

// GetAll returns the latest snapshot of every fetched symbol sorted by symbol.
func (s *MarketService) GetAll() []domain.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MarketSnapshot, 0, len(s.latest))
	for _, snap := range s.latest {
		result = append(result, snap)
	}

	// Sort by symbol for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result
}

// Get returns the latest snapshot of symbol.
func (s *MarketService) Get(symbol string) (domain.MarketSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[symbol]
	return snap, ok
}
