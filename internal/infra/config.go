package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"stock_go/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// 기본값 위에 YAML을 덮어쓰고, 마지막으로 환경 변수로 민감 정보를 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Finnhub struct {
			RestURL       string        `yaml:"rest_url"`
			WSURL         string        `yaml:"ws_url"`
			APIKey        string        `yaml:"api_key"`
			Timeout       time.Duration `yaml:"timeout"`
			RatePerMinute int           `yaml:"rate_per_minute"`
			StreamEnabled bool          `yaml:"stream_enabled"`
			StreamMaxAge  time.Duration `yaml:"stream_max_age"`
		} `yaml:"finnhub"`
		Symbols      []string        `yaml:"symbols"`
		SimulatedMin decimal.Decimal `yaml:"simulated_min"`
		SimulatedMax decimal.Decimal `yaml:"simulated_max"`
	} `yaml:"market"`

	Predictor struct {
		URL                   string        `yaml:"url"`
		Timeout               time.Duration `yaml:"timeout"`
		HoldOverrideThreshold float64       `yaml:"hold_override_threshold"`
		Breaker               struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"predictor"`

	Trading struct {
		InitialCash  decimal.Decimal `yaml:"initial_cash"`
		WindowSize   int             `yaml:"window_size"`
		BatchPace    time.Duration   `yaml:"batch_pace"`
		AutoUsers    []string        `yaml:"auto_users"`
		AutoInterval time.Duration   `yaml:"auto_interval"`
	} `yaml:"trading"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Metrics struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"`
	} `yaml:"metrics"`
}

// DefaultConfig returns the configuration used for every key the YAML file omits.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "stock_go"
	cfg.App.Version = "dev"

	cfg.Market.Finnhub.RestURL = "https://finnhub.io/api/v1"
	cfg.Market.Finnhub.WSURL = "wss://ws.finnhub.io"
	cfg.Market.Finnhub.Timeout = 10 * time.Second
	cfg.Market.Finnhub.RatePerMinute = 60
	cfg.Market.Finnhub.StreamMaxAge = 30 * time.Second
	cfg.Market.Symbols = []string{"AAPL", "MSFT", "GOOGL", "TSLA", "NVDA"}
	cfg.Market.SimulatedMin = decimal.NewFromInt(100)
	cfg.Market.SimulatedMax = decimal.NewFromInt(500)

	cfg.Predictor.URL = "http://localhost:8000"
	cfg.Predictor.Timeout = 5 * time.Second
	cfg.Predictor.HoldOverrideThreshold = 0.55
	cfg.Predictor.Breaker.MaxFailures = 5
	cfg.Predictor.Breaker.OpenTimeout = 30 * time.Second

	cfg.Trading.InitialCash = decimal.NewFromInt(10000)
	cfg.Trading.WindowSize = 10
	cfg.Trading.BatchPace = 500 * time.Millisecond
	cfg.Trading.AutoInterval = time.Minute

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"

	cfg.Metrics.Addr = ":9090"
	cfg.Metrics.PprofAddr = "localhost:6060"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// A missing file yields an error wrapping domain.ErrConfigNotFound.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 민감 정보는 환경 변수로 덮어쓴다
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads a .env file if present and overrides cfg from the environment.
func ApplyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	overrideWithEnv(cfg)
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Market
	if !hasPrefix(c.Market.Finnhub.RestURL, "http://") && !hasPrefix(c.Market.Finnhub.RestURL, "https://") {
		return &domain.ConfigError{Field: "market.finnhub.rest_url", Err: fmt.Errorf("invalid URL %q", c.Market.Finnhub.RestURL)}
	}
	if c.Market.Finnhub.StreamEnabled && !hasPrefix(c.Market.Finnhub.WSURL, "ws://") && !hasPrefix(c.Market.Finnhub.WSURL, "wss://") {
		return &domain.ConfigError{Field: "market.finnhub.ws_url", Err: fmt.Errorf("invalid WS URL %q", c.Market.Finnhub.WSURL)}
	}
	if c.Market.Finnhub.Timeout <= 0 {
		return &domain.ConfigError{Field: "market.finnhub.timeout", Err: errors.New("must be positive")}
	}
	if c.Market.Finnhub.RatePerMinute <= 0 {
		return &domain.ConfigError{Field: "market.finnhub.rate_per_minute", Err: errors.New("must be positive")}
	}
	if len(c.Market.Symbols) == 0 {
		return &domain.ConfigError{Field: "market.symbols", Err: errors.New("at least one symbol is required")}
	}
	if !c.Market.SimulatedMin.IsPositive() || !c.Market.SimulatedMax.GreaterThan(c.Market.SimulatedMin) {
		return &domain.ConfigError{Field: "market.simulated_min", Err: fmt.Errorf("invalid range [%s, %s)", c.Market.SimulatedMin, c.Market.SimulatedMax)}
	}

	// Predictor
	if !hasPrefix(c.Predictor.URL, "http://") && !hasPrefix(c.Predictor.URL, "https://") {
		return &domain.ConfigError{Field: "predictor.url", Err: fmt.Errorf("invalid URL %q", c.Predictor.URL)}
	}
	if c.Predictor.Timeout <= 0 {
		return &domain.ConfigError{Field: "predictor.timeout", Err: errors.New("must be positive")}
	}
	if c.Predictor.HoldOverrideThreshold < 0 || c.Predictor.HoldOverrideThreshold > 1 {
		return &domain.ConfigError{Field: "predictor.hold_override_threshold", Err: fmt.Errorf("%v outside [0,1]", c.Predictor.HoldOverrideThreshold)}
	}

	// Trading
	if !c.Trading.InitialCash.IsPositive() {
		return &domain.ConfigError{Field: "trading.initial_cash", Err: errors.New("must be positive")}
	}
	if c.Trading.WindowSize < 2 {
		return &domain.ConfigError{Field: "trading.window_size", Err: errors.New("must be at least 2")}
	}
	if c.Trading.BatchPace < 0 {
		return &domain.ConfigError{Field: "trading.batch_pace", Err: errors.New("must not be negative")}
	}
	if len(c.Trading.AutoUsers) > 0 && c.Trading.AutoInterval <= 0 {
		return &domain.ConfigError{Field: "trading.auto_interval", Err: errors.New("must be positive")}
	}

	return nil
}

// IsSupported reports whether symbol is in the configured symbol list.
func (c *Config) IsSupported(symbol string) bool {
	for _, s := range c.Market.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.Market.Finnhub.APIKey = key
	}
	if url := os.Getenv("PREDICTOR_URL"); url != "" {
		cfg.Predictor.URL = url
	}
	if path := os.Getenv("STOCK_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("STOCK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
