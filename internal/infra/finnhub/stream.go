package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"stock_go/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	DefaultStreamURL  = "wss://ws.finnhub.io"
	streamMaxRetries  = 10
	streamReadTimeout = 60 * time.Second
)

// tradeMessage is a Finnhub websocket frame. Type is "trade" or "ping".
type tradeMessage struct {
	Type string `json:"type"`
	Data []struct {
		Symbol    string  `json:"s"`
		Price     float64 `json:"p"`
		Timestamp int64   `json:"t"` // ms
		Volume    float64 `json:"v"`
	} `json:"data"`
}

type lastTrade struct {
	price decimal.Decimal
	at    time.Time
}

// StreamWorker keeps the last trade price of each subscribed symbol from the
// Finnhub trade websocket, reconnecting with backoff until stopped.
type StreamWorker struct {
	url     string
	apiKey  string
	symbols []string
	metrics *infra.Metrics
	logger  *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	tradesMu sync.RWMutex
	trades   map[string]lastTrade
	now      func() time.Time
}

// NewStreamWorker creates a worker for symbols. metrics may be nil.
func NewStreamWorker(wsURL, apiKey string, symbols []string, metrics *infra.Metrics, logger *slog.Logger) *StreamWorker {
	if wsURL == "" {
		wsURL = DefaultStreamURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamWorker{
		url:     wsURL,
		apiKey:  apiKey,
		symbols: symbols,
		metrics: metrics,
		logger:  logger.With("module", "finnhub_stream"),
		trades:  make(map[string]lastTrade),
		now:     time.Now,
	}
}

// Connect starts the WebSocket connection with automatic reconnection
func (w *StreamWorker) Connect(ctx context.Context) error {
	if w.apiKey == "" {
		return fmt.Errorf("finnhub stream: api key not configured")
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (w *StreamWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stream connection loop stopped")
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.logger.Warn("Stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > streamMaxRetries {
				w.logger.Error("Stream max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		// Connection successful, reset retry counter
		retryCount = 0

		// Read messages until error
		w.readLoop(ctx)
	}
}

func (w *StreamWorker) endpoint() (string, error) {
	u, err := url.Parse(w.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", w.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connect establishes WebSocket connection and subscribes to trades
func (w *StreamWorker) connect(ctx context.Context) error {
	endpoint, err := w.endpoint()
	if err != nil {
		return fmt.Errorf("invalid stream url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.IncrementConnections()
	}

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	w.logger.Info("Stream connected", slog.Int("symbols", len(w.symbols)))
	return nil
}

// subscribe sends one subscription message per symbol:
// {"type":"subscribe","symbol":"AAPL"}
func (w *StreamWorker) subscribe() error {
	for _, symbol := range w.symbols {
		msg, err := json.Marshal(map[string]string{"type": "subscribe", "symbol": symbol})
		if err != nil {
			return err
		}
		if err := w.threadSafeWrite(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// threadSafeWrite sends a message to the WebSocket connection in a thread-safe manner
func (w *StreamWorker) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

// readLoop reads messages from WebSocket
func (w *StreamWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("Stream read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

// handleMessage records every trade of a frame; pings and other types are ignored.
func (w *StreamWorker) handleMessage(message []byte) {
	var msg tradeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		w.logger.Debug("Stream message parse error", slog.Any("error", err))
		return
	}
	if msg.Type != "trade" {
		return
	}

	w.tradesMu.Lock()
	defer w.tradesMu.Unlock()
	for _, t := range msg.Data {
		if t.Symbol == "" || t.Price <= 0 {
			continue
		}
		at := time.UnixMilli(t.Timestamp)
		if prev, ok := w.trades[t.Symbol]; ok && prev.at.After(at) {
			continue
		}
		w.trades[t.Symbol] = lastTrade{price: decimal.NewFromFloat(t.Price).Round(2), at: at}
	}
}

// LatestPrice returns the last trade price of symbol if it is at most maxAge old.
func (w *StreamWorker) LatestPrice(symbol string, maxAge time.Duration) (decimal.Decimal, time.Time, bool) {
	w.tradesMu.RLock()
	t, ok := w.trades[symbol]
	w.tradesMu.RUnlock()

	if !ok || w.now().Sub(t.at) > maxAge {
		return decimal.Zero, time.Time{}, false
	}
	return t.price, t.at, true
}

// closeConnection safely closes the WebSocket connection
func (w *StreamWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		if w.metrics != nil {
			w.metrics.DecrementConnections()
		}
	}
	w.connected = false
}

// Disconnect closes the WebSocket connection
func (w *StreamWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	w.logger.Info("Stream disconnected")
}

// IsConnected returns connection status
func (w *StreamWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
