package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

// DefaultPacing is the delay between cycles of a batch run.
const DefaultPacing = 500 * time.Millisecond

// Market produces the snapshot a cycle trades at.
type Market interface {
	Fetch(ctx context.Context, symbol string) domain.MarketSnapshot
}

// Decider turns a snapshot and the user's holdings into a sized decision.
type Decider interface {
	Decide(ctx context.Context, snap domain.MarketSnapshot, account *domain.Account, pos *domain.Position) domain.Decision
}

// Executor settles a decision against the ledger.
type Executor interface {
	Execute(ctx context.Context, userID string, d domain.Decision, snap domain.MarketSnapshot) domain.ExecutionResult
}

// Coordinator runs trading cycles: fetch, decide, execute.
// It never returns an error; every failure becomes an unsuccessful result.
type Coordinator struct {
	ledger   domain.Ledger
	market   Market
	decider  Decider
	executor Executor
	metrics  *infra.Metrics
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewCoordinator creates a Coordinator. A nil metrics records into infra.GlobalMetrics.
func NewCoordinator(ledger domain.Ledger, market Market, decider Decider, executor Executor, metrics *infra.Metrics, logger *slog.Logger) *Coordinator {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		ledger:   ledger,
		market:   market,
		decider:  decider,
		executor: executor,
		metrics:  metrics,
		logger:   logger.With("module", "coordinator"),
		sleep:    sleepContext,
	}
}

// RunCycle runs one cycle for userID on symbol. Panics inside the cycle are
// contained and reported as a failed result.
func (c *Coordinator) RunCycle(ctx context.Context, userID, symbol string) domain.ExecutionResult {
	cycleID := uuid.NewString()
	logger := c.logger.With(slog.String("cycle_id", cycleID), slog.String("user", userID), slog.String("symbol", symbol))
	start := time.Now()

	var res domain.ExecutionResult
	var pc panics.Catcher
	pc.Try(func() {
		res = c.runCycle(ctx, logger, userID, symbol)
	})
	if r := pc.Recovered(); r != nil {
		logger.ErrorContext(ctx, "Cycle panicked", slog.Any("panic", r.Value), slog.String("stack", string(r.Stack)))
		c.metrics.RecordError()
		res = domain.Failed(symbol, fmt.Sprintf("internal error: %v", r.Value))
	}
	res.CycleID = cycleID

	c.metrics.RecordCycle(time.Since(start), res.Success)
	if res.Success {
		c.metrics.RecordTrade(res.Action)
	}

	logger.InfoContext(ctx, "Cycle finished",
		slog.Bool("success", res.Success),
		slog.String("action", res.Action.String()),
		slog.Int64("quantity", res.Quantity),
		slog.String("message", res.Message),
		slog.Duration("latency", time.Since(start)),
	)
	return res
}

func (c *Coordinator) runCycle(ctx context.Context, logger *slog.Logger, userID, symbol string) domain.ExecutionResult {
	account, err := c.ledger.GetAccount(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "Account lookup failed", slog.Any("error", err))
		c.metrics.RecordError()
		return domain.Failed(symbol, "account lookup failed: "+err.Error())
	}
	if account == nil {
		return domain.Failed(symbol, "user is not registered")
	}
	pos, err := c.ledger.GetPosition(ctx, userID, symbol)
	if err != nil {
		logger.ErrorContext(ctx, "Position lookup failed", slog.Any("error", err))
		c.metrics.RecordError()
		return domain.Failed(symbol, "position lookup failed: "+err.Error())
	}

	snap := c.market.Fetch(ctx, symbol)
	decision := c.decider.Decide(ctx, snap, account, pos)
	c.logStats(ctx, logger)

	return c.executor.Execute(ctx, userID, decision, snap)
}

// logStats logs the process-wide decision distribution.
func (c *Coordinator) logStats(ctx context.Context, logger *slog.Logger) {
	s := c.metrics.Snapshot()
	logger.InfoContext(ctx, "Decision statistics",
		slog.Uint64("total", s.TotalDecisions()),
		slog.Uint64("buy", s.BuyDecisions),
		slog.Uint64("sell", s.SellDecisions),
		slog.Uint64("hold", s.HoldDecisions),
		slog.String("buy_pct", fmt.Sprintf("%.1f", s.DecisionShare(domain.ActionBuy))),
		slog.String("sell_pct", fmt.Sprintf("%.1f", s.DecisionShare(domain.ActionSell))),
		slog.String("hold_pct", fmt.Sprintf("%.1f", s.DecisionShare(domain.ActionHold))),
		slog.Uint64("fallbacks", s.Fallbacks),
	)
}

type batchConfig struct {
	pacing time.Duration
}

// BatchOption configures RunAll.
type BatchOption func(*batchConfig)

// WithPacing sets the delay between consecutive cycles. Zero disables it.
func WithPacing(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d >= 0 {
			c.pacing = d
		}
	}
}

// RunAll runs one cycle per symbol, in order. A failing symbol does not stop
// the batch. If ctx is cancelled while waiting between cycles, the remaining
// symbols are reported as failed without running.
func (c *Coordinator) RunAll(ctx context.Context, userID string, symbols []string, opts ...BatchOption) domain.BatchResult {
	cfg := batchConfig{pacing: DefaultPacing}
	for _, opt := range opts {
		opt(&cfg)
	}

	batch := domain.BatchResult{UserID: userID}
	for i, symbol := range symbols {
		if i > 0 && cfg.pacing > 0 {
			if err := c.sleep(ctx, cfg.pacing); err != nil {
				for _, rest := range symbols[i:] {
					batch.Add(rest, domain.Failed(rest, "batch cancelled"))
				}
				break
			}
		}
		batch.Add(symbol, c.RunCycle(ctx, userID, symbol))
	}

	// the last successful result may be stale if a later cycle failed
	if account, err := c.ledger.GetAccount(ctx, userID); err == nil && account != nil {
		batch.Cash = account.Cash
	}

	c.logger.InfoContext(ctx, "Batch finished",
		slog.String("user", userID),
		slog.Int("symbols", len(symbols)),
		slog.Int("bought", batch.Bought),
		slog.Int("sold", batch.Sold),
		slog.Int("held", batch.Held),
		slog.Int("failed", batch.Failed),
		slog.String("cash", batch.Cash.StringFixed(2)),
	)
	return batch
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
