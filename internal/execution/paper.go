package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/pkg/keylock"

	"github.com/shopspring/decimal"
)

// PaperExecution settles decisions against the simulated ledger.
// Cycles of the same user are serialized; each settlement is one transaction.
type PaperExecution struct {
	ledger domain.Ledger
	locks  *keylock.KeyLock
	now    func() time.Time
	logger *slog.Logger
}

// NewPaperExecution creates an executor over ledger. locks may be shared with
// other components that must not interleave with a user's settlement; nil
// allocates a private one.
func NewPaperExecution(ledger domain.Ledger, locks *keylock.KeyLock, logger *slog.Logger) *PaperExecution {
	if locks == nil {
		locks = keylock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaperExecution{
		ledger: ledger,
		locks:  locks,
		now:    time.Now,
		logger: logger.With("module", "execution"),
	}
}

// Execute settles d for userID in symbol at snap's price.
//
// The account and position are re-read inside the transaction, so a decision
// sized against stale state can still be rejected here. Rejections and
// storage failures both come back as an unsuccessful result.
func (p *PaperExecution) Execute(ctx context.Context, userID string, d domain.Decision, snap domain.MarketSnapshot) domain.ExecutionResult {
	unlock := p.locks.Lock(userID)
	defer unlock()

	var (
		res  domain.ExecutionResult
		cash decimal.Decimal
	)

	err := p.ledger.Transaction(ctx, func(tx domain.Ledger) error {
		account, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if account == nil {
			return domain.ErrUnknownUser
		}
		cash = account.Cash

		pos, err := tx.GetPosition(ctx, userID, snap.Symbol)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}

		fill, err := Apply(account, pos, snap.Symbol, d, snap.Price)
		if err != nil {
			return err
		}

		if err := account.VerifyInvariant(); err != nil {
			return err
		}
		if fill.Position != nil {
			if err := fill.Position.VerifyInvariant(); err != nil {
				return err
			}
			if err := tx.SavePosition(ctx, fill.Position); err != nil {
				return fmt.Errorf("save position: %w", err)
			}
		}
		if fill.Action != domain.ActionHold {
			if err := tx.SaveAccount(ctx, account); err != nil {
				return fmt.Errorf("save account: %w", err)
			}
		}

		trade := &domain.TradeRecord{
			UserID:     userID,
			Symbol:     snap.Symbol,
			Action:     fill.Action,
			Quantity:   fill.Quantity,
			Price:      snap.Price,
			Total:      fill.Total,
			Confidence: d.Confidence,
			Reason:     d.Reason,
			ExecutedAt: p.now(),
		}
		if err := tx.AppendTrade(ctx, trade); err != nil {
			return fmt.Errorf("append trade: %w", err)
		}

		// HOLD reports the position as it stands
		if fill.Position == nil {
			fill.Position = pos
		}
		res = p.result(snap, d, fill, account, trade.ID)
		return nil
	})

	if err != nil {
		return p.failure(ctx, userID, snap, d, cash, err)
	}

	p.logger.InfoContext(ctx, "Trade executed",
		slog.String("user", userID),
		slog.String("symbol", snap.Symbol),
		slog.String("action", res.Action.String()),
		slog.Int64("quantity", res.Quantity),
		slog.String("price", res.Price.StringFixed(2)),
		slog.String("total", res.Total.StringFixed(2)),
		slog.String("cash", res.NewCashBalance.StringFixed(2)),
	)
	return res
}

func (p *PaperExecution) result(snap domain.MarketSnapshot, d domain.Decision, fill Fill, account *domain.Account, tradeID uint) domain.ExecutionResult {
	summary := domain.PositionSummary{Symbol: snap.Symbol, Changed: fill.Action != domain.ActionHold}
	if fill.Position != nil {
		summary.Quantity = fill.Position.Quantity
		summary.AvgPrice = fill.Position.AvgPrice
	}
	summary.Closed = fill.Closed()

	var msg string
	switch fill.Action {
	case domain.ActionBuy:
		msg = fmt.Sprintf("Bought %d %s at $%s", fill.Quantity, snap.Symbol, fill.Price.StringFixed(2))
	case domain.ActionSell:
		msg = fmt.Sprintf("Sold %d %s at $%s", fill.Quantity, snap.Symbol, fill.Price.StringFixed(2))
		if summary.Closed {
			msg += ", position closed"
		}
	default:
		msg = "HOLD: portfolio unchanged"
	}

	decision := d
	return domain.ExecutionResult{
		Success:        true,
		Message:        msg,
		TradeID:        &tradeID,
		NewCashBalance: account.Cash,
		Position:       summary,
		Symbol:         snap.Symbol,
		Action:         fill.Action,
		Quantity:       fill.Quantity,
		Price:          fill.Price,
		Total:          fill.Total,
		RealizedPnL:    fill.RealizedPnL,
		Decision:       &decision,
		Source:         snap.Source,
	}
}

func (p *PaperExecution) failure(ctx context.Context, userID string, snap domain.MarketSnapshot, d domain.Decision, cash decimal.Decimal, err error) domain.ExecutionResult {
	var msg string
	var rej *domain.RejectionError
	switch {
	case errors.As(err, &rej):
		msg = rej.Reason
		p.logger.InfoContext(ctx, "Trade rejected",
			slog.String("user", userID),
			slog.String("symbol", snap.Symbol),
			slog.String("action", d.Action.String()),
			slog.String("reason", rej.Reason),
		)
	case errors.Is(err, domain.ErrUnknownUser):
		msg = "user is not registered"
	default:
		msg = "execution failed: " + err.Error()
		p.logger.ErrorContext(ctx, "Execution failed",
			slog.String("user", userID),
			slog.String("symbol", snap.Symbol),
			slog.Any("error", err),
		)
	}

	decision := d
	res := domain.Failed(snap.Symbol, msg)
	res.Action = d.Action
	res.NewCashBalance = cash
	res.Price = snap.Price
	res.Decision = &decision
	res.Source = snap.Source
	return res
}
