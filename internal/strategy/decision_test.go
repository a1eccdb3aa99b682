package strategy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra/predictor"
	"stock_go/internal/strategy"

	"github.com/shopspring/decimal"
)

// fixedRand replays vals in order, wrapping around.
type fixedRand struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (r *fixedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

type stubPredictor struct {
	resp domain.PredictionResponse
	err  error
	got  []domain.PredictionRequest
}

func (p *stubPredictor) Predict(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResponse, error) {
	p.got = append(p.got, req)
	return p.resp, p.err
}

type blockingPredictor struct{}

func (blockingPredictor) Predict(ctx context.Context, _ domain.PredictionRequest) (domain.PredictionResponse, error) {
	<-ctx.Done()
	return domain.PredictionResponse{}, ctx.Err()
}

type countingStats struct {
	actions   map[domain.Action]int
	fallbacks int
}

func (s *countingStats) RecordDecision(a domain.Action, fallback bool) {
	if s.actions == nil {
		s.actions = make(map[domain.Action]int)
	}
	s.actions[a]++
	if fallback {
		s.fallbacks++
	}
}

func prob(v float64) *float64 { return &v }

func snapshot(symbol string, price int64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:     symbol,
		Price:      decimal.NewFromInt(price),
		ObservedAt: time.Now(),
		Source:     domain.SourceLive,
	}
}

func freshAccount() *domain.Account {
	return &domain.Account{UserID: "u1", Username: "alice", Cash: decimal.NewFromInt(10000)}
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name      string
		resp      domain.PredictionResponse
		threshold float64
		action    domain.Action
		conf      float64
		known     bool
	}{
		{
			name:   "Buy uses up probability",
			resp:   domain.PredictionResponse{Action: "BUY", ConfidenceUp: prob(0.7), ConfidenceDown: prob(0.3)},
			action: domain.ActionBuy, conf: 0.7, known: true,
		},
		{
			name:   "Sell uses down probability",
			resp:   domain.PredictionResponse{Action: "sell", ConfidenceUp: prob(0.2), ConfidenceDown: prob(0.8)},
			action: domain.ActionSell, conf: 0.8, known: true,
		},
		{
			name:      "Hold without override",
			resp:      domain.PredictionResponse{Action: "HOLD", ConfidenceUp: prob(0.5), ConfidenceDown: prob(0.5)},
			threshold: 0.55,
			action:    domain.ActionHold, conf: 1.0, known: true,
		},
		{
			name:      "Hold promoted to buy",
			resp:      domain.PredictionResponse{Action: "HOLD", ConfidenceUp: prob(0.6), ConfidenceDown: prob(0.3)},
			threshold: 0.55,
			action:    domain.ActionBuy, conf: 0.6, known: true,
		},
		{
			name:      "Hold promoted to sell",
			resp:      domain.PredictionResponse{Action: "HOLD", ConfidenceUp: prob(0.1), ConfidenceDown: prob(0.65)},
			threshold: 0.55,
			action:    domain.ActionSell, conf: 0.65, known: true,
		},
		{
			name:      "Override disabled at zero",
			resp:      domain.PredictionResponse{Action: "HOLD", ConfidenceUp: prob(0.9), ConfidenceDown: prob(0.1)},
			threshold: 0,
			action:    domain.ActionHold, conf: 0.2, known: true,
		},
		{
			name:      "Tie stays hold",
			resp:      domain.PredictionResponse{Action: "HOLD", ConfidenceUp: prob(0.6), ConfidenceDown: prob(0.6)},
			threshold: 0.55,
			action:    domain.ActionHold, conf: 1.0, known: true,
		},
		{
			name:      "Unknown action is hold",
			resp:      domain.PredictionResponse{Action: "WAIT", ConfidenceUp: prob(0.5), ConfidenceDown: prob(0.4)},
			threshold: 0.55,
			action:    domain.ActionHold, conf: 0.9, known: false,
		},
		{
			name:   "Missing confidences are zero",
			resp:   domain.PredictionResponse{Action: "BUY"},
			action: domain.ActionBuy, conf: 0, known: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, conf, known := strategy.Interpret(tt.resp, tt.threshold)
			if action != tt.action {
				t.Errorf("action = %s, want %s", action, tt.action)
			}
			if !almostEqual(conf, tt.conf) {
				t.Errorf("conf = %v, want %v", conf, tt.conf)
			}
			if known != tt.known {
				t.Errorf("known = %v, want %v", known, tt.known)
			}
		})
	}
}

func TestConfidencePercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.7, "70"},
		{0.12345, "12.35"},
		{1.0, "100"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := strategy.ConfidencePercent(tt.in); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ConfidencePercent(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDecisionEngine_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses prediction and sizes buy", func(t *testing.T) {
		pred := &stubPredictor{resp: domain.PredictionResponse{
			Action: "BUY", ConfidenceUp: prob(0.7), ConfidenceDown: prob(0.3), Reason: "momentum",
		}}
		engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10), pred)

		d := engine.Decide(ctx, snapshot("AAPL", 50), freshAccount(), nil)

		if d.Action != domain.ActionBuy {
			t.Fatalf("Expected BUY, got %s", d.Action)
		}
		if !d.Confidence.Equal(decimal.NewFromInt(70)) {
			t.Errorf("Expected confidence 70, got %s", d.Confidence)
		}
		if d.Quantity != 40 {
			t.Errorf("Expected quantity 40, got %d", d.Quantity)
		}
		if d.Fallback {
			t.Error("Expected non-fallback decision")
		}
		if d.Reason != "momentum" {
			t.Errorf("Expected reason from predictor, got %q", d.Reason)
		}
	})

	t.Run("Sends features from shared history", func(t *testing.T) {
		pred := &stubPredictor{resp: domain.PredictionResponse{Action: "HOLD"}}
		history := strategy.NewPriceHistoryStore(10)
		engine := strategy.NewDecisionEngine(history, pred)

		engine.Decide(ctx, snapshot("AAPL", 100), freshAccount(), nil)
		engine.Decide(ctx, snapshot("AAPL", 110), freshAccount(), nil)

		if len(pred.got) != 2 {
			t.Fatalf("Expected 2 predictor calls, got %d", len(pred.got))
		}
		f := pred.got[1].Features
		if !almostEqual(f.Return1d, 0.1) {
			t.Errorf("Return1d: expected 0.1, got %v", f.Return1d)
		}
		if !almostEqual(f.SMA5, 105) {
			t.Errorf("SMA5: expected 105, got %v", f.SMA5)
		}
		if n := len(history.History("AAPL")); n != 2 {
			t.Errorf("Expected 2 history points, got %d", n)
		}
	})

	t.Run("Fallback on predictor error", func(t *testing.T) {
		pred := &stubPredictor{err: errors.New("connection refused")}
		stats := &countingStats{}
		engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10), pred,
			strategy.WithRandomSource(&fixedRand{vals: []float64{0.1, 0.0}}),
			strategy.WithStats(stats),
		)

		d := engine.Decide(ctx, snapshot("AAPL", 50), freshAccount(), nil)

		if d.Action != domain.ActionBuy || !d.Fallback {
			t.Fatalf("Expected fallback BUY, got %s (fallback=%v)", d.Action, d.Fallback)
		}
		if !d.Confidence.Equal(decimal.NewFromInt(60)) {
			t.Errorf("Expected confidence 60, got %s", d.Confidence)
		}
		if d.Reason != strategy.FallbackReasonBuy {
			t.Errorf("Unexpected reason %q", d.Reason)
		}
		// 0.60 confidence -> 15% of 10000 at 50
		if d.Quantity != 30 {
			t.Errorf("Expected quantity 30, got %d", d.Quantity)
		}
		if stats.actions[domain.ActionBuy] != 1 || stats.fallbacks != 1 {
			t.Errorf("Unexpected stats %+v", stats)
		}
	})

	t.Run("Fallback branches", func(t *testing.T) {
		tests := []struct {
			name   string
			vals   []float64
			action domain.Action
			conf   string
		}{
			{"Sell", []float64{0.45, 0.5}, domain.ActionSell, "67.5"},
			{"Hold", []float64{0.6, 0.5}, domain.ActionHold, "60"},
			{"Hold upper", []float64{0.99, 0.0}, domain.ActionHold, "50"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10), nil,
					strategy.WithRandomSource(&fixedRand{vals: tt.vals}))

				d := engine.Decide(ctx, snapshot("MSFT", 300), freshAccount(), nil)
				if d.Action != tt.action {
					t.Fatalf("Expected %s, got %s", tt.action, d.Action)
				}
				if !d.Confidence.Equal(decimal.RequireFromString(tt.conf)) {
					t.Errorf("Expected confidence %s, got %s", tt.conf, d.Confidence)
				}
				if d.Quantity != 0 {
					t.Errorf("Expected quantity 0 without a position, got %d", d.Quantity)
				}
			})
		}
	})

	for _, body := range []string{`null`, `{}`} {
		t.Run("Answer without action falls back: "+body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10),
				predictor.NewClient(predictor.Options{BaseURL: srv.URL}),
				strategy.WithRandomSource(&fixedRand{vals: []float64{0.9, 0.0}}),
			)

			d := engine.Decide(ctx, snapshot("AAPL", 50), freshAccount(), nil)
			if !d.Fallback {
				t.Fatalf("Expected fallback decision, got %+v", d)
			}
			if d.Action != domain.ActionHold || !d.Confidence.Equal(decimal.NewFromInt(50)) {
				t.Errorf("Expected fallback HOLD at 50, got %s %s", d.Action, d.Confidence)
			}
			if d.Reason != strategy.FallbackReasonHold {
				t.Errorf("Unexpected reason %q", d.Reason)
			}
		})
	}

	t.Run("Timeout falls back", func(t *testing.T) {
		engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10), blockingPredictor{},
			strategy.WithPredictTimeout(20*time.Millisecond),
			strategy.WithRandomSource(&fixedRand{vals: []float64{0.9, 0.0}}),
		)

		start := time.Now()
		d := engine.Decide(ctx, snapshot("TSLA", 200), freshAccount(), nil)
		if !d.Fallback {
			t.Error("Expected fallback after timeout")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Decide took %v, timeout not applied", elapsed)
		}
	})

	t.Run("Sell sized against position", func(t *testing.T) {
		pred := &stubPredictor{resp: domain.PredictionResponse{
			Action: "SELL", ConfidenceUp: prob(0.2), ConfidenceDown: prob(0.5),
		}}
		engine := strategy.NewDecisionEngine(strategy.NewPriceHistoryStore(10), pred)
		pos := &domain.Position{UserID: "u1", Symbol: "NVDA", Quantity: 10, AvgPrice: decimal.NewFromInt(100)}

		d := engine.Decide(ctx, snapshot("NVDA", 120), freshAccount(), pos)
		if d.Action != domain.ActionSell || d.Quantity != 2 {
			t.Errorf("Expected SELL 2, got %s %d", d.Action, d.Quantity)
		}
	})
}
