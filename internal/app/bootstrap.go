package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"stock_go/internal/domain"
	"stock_go/internal/engine"
	"stock_go/internal/execution"
	"stock_go/internal/infra"
	"stock_go/internal/infra/finnhub"
	"stock_go/internal/infra/predictor"
	"stock_go/internal/infra/storage"
	"stock_go/internal/service"
	"stock_go/internal/strategy"
	"stock_go/pkg/keylock"
)

// DefaultConfigPath is where the CLI looks for its configuration.
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config      *infra.Config
	Logger      *slog.Logger
	Metrics     *infra.Metrics
	Storage     *storage.Storage
	Stream      *finnhub.StreamWorker // nil unless market.finnhub.stream_enabled
	Market      *service.MarketService
	Accounts    *service.AccountService
	Coordinator *engine.Coordinator
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component. Logs go to the
// rotated log file and, when console is non-nil, to console as well.
func (b *Bootstrap) Initialize(configPath string, console io.Writer) error {
	// 1. Load Config
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	b.Logger = infra.NewLogger(cfg, console)
	slog.SetDefault(b.Logger)
	b.Logger.Info("🚀 Bootstrapping Stock Go...", slog.String("version", cfg.App.Version))

	b.Metrics = infra.GlobalMetrics

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	b.Storage = store
	b.Logger.Info("✅ Database initialized")

	// 4. Market data
	quotes := finnhub.NewClient(finnhub.Options{
		BaseURL:       cfg.Market.Finnhub.RestURL,
		APIKey:        cfg.Market.Finnhub.APIKey,
		Timeout:       cfg.Market.Finnhub.Timeout,
		RatePerMinute: cfg.Market.Finnhub.RatePerMinute,
		Logger:        b.Logger,
	})
	marketOpts := []service.MarketOption{
		service.WithSimulatedRange(cfg.Market.SimulatedMin, cfg.Market.SimulatedMax),
		service.WithMarketMetrics(b.Metrics),
		service.WithMarketLogger(b.Logger),
	}
	if cfg.Market.Finnhub.StreamEnabled {
		b.Stream = finnhub.NewStreamWorker(cfg.Market.Finnhub.WSURL, cfg.Market.Finnhub.APIKey,
			cfg.Market.Symbols, b.Metrics, b.Logger)
		marketOpts = append(marketOpts, service.WithStream(b.Stream, cfg.Market.Finnhub.StreamMaxAge))
	}
	if cfg.Market.Finnhub.APIKey == "" {
		b.Logger.Warn("FINNHUB_API_KEY is not set, prices will be simulated")
	}
	b.Market = service.NewMarketService(quotes, marketOpts...)

	// 5. Decision + execution
	predict := predictor.NewClient(predictor.Options{
		BaseURL:     cfg.Predictor.URL,
		Timeout:     cfg.Predictor.Timeout,
		MaxFailures: cfg.Predictor.Breaker.MaxFailures,
		OpenTimeout: cfg.Predictor.Breaker.OpenTimeout,
		Metrics:     b.Metrics,
		Logger:      b.Logger,
	})
	decider := strategy.NewDecisionEngine(
		strategy.NewPriceHistoryStore(cfg.Trading.WindowSize),
		predict,
		strategy.WithHoldOverride(cfg.Predictor.HoldOverrideThreshold),
		strategy.WithPredictTimeout(cfg.Predictor.Timeout),
		strategy.WithStats(b.Metrics),
		strategy.WithLogger(b.Logger),
	)
	paper := execution.NewPaperExecution(store, keylock.New(), b.Logger)

	b.Accounts = service.NewAccountService(store, cfg.Trading.InitialCash, b.Logger)
	b.Coordinator = engine.NewCoordinator(store, b.Market, decider, paper, b.Metrics, b.Logger)

	b.Logger.Info("✅ Trading components ready",
		slog.Int("symbols", len(cfg.Market.Symbols)),
		slog.String("predictor", cfg.Predictor.URL),
	)
	return nil
}

// StartStream connects the trade stream when it is enabled.
func (b *Bootstrap) StartStream(ctx context.Context) error {
	if b.Stream == nil {
		return nil
	}
	if err := b.Stream.Connect(ctx); err != nil {
		return err
	}
	b.Logger.InfoContext(ctx, "✅ Trade stream started", slog.Int("symbols", len(b.Config.Market.Symbols)))
	return nil
}

// Close releases the stream connection and the database.
func (b *Bootstrap) Close() error {
	if b.Stream != nil {
		b.Stream.Disconnect()
	}
	if b.Storage != nil {
		return b.Storage.Close()
	}
	return nil
}

// loadConfig reads path, falling back to defaults plus environment when the
// file does not exist.
func loadConfig(path string) (*infra.Config, error) {
	cfg, err := infra.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return nil, err
	}

	slog.Warn("Config file not found, using defaults", slog.String("path", path))
	cfg = infra.DefaultConfig()
	if err := infra.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
