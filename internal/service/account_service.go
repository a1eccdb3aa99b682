package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit is the number of trades History returns when no limit is given.
const DefaultHistoryLimit = 10

// Holding is one open position valued at cost.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Value    decimal.Decimal `json:"value"`
}

// Portfolio is a user's open positions plus cash.
type Portfolio struct {
	UserID   string          `json:"user_id"`
	Holdings []Holding       `json:"holdings"`
	Invested decimal.Decimal `json:"invested"`
	Cash     decimal.Decimal `json:"cash"`
	Total    decimal.Decimal `json:"total"`
}

// ActionStat is the count and share of one action in a user's trade log.
type ActionStat struct {
	Action  domain.Action   `json:"action"`
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"` // 1 decimal place
}

// SymbolStat is the number of recorded trades of one symbol.
type SymbolStat struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// UserStats summarizes a user's decisions.
type UserStats struct {
	Total    int          `json:"total"`
	Actions  []ActionStat `json:"actions"` // BUY, SELL, HOLD
	BySymbol []SymbolStat `json:"by_symbol"`
}

// AccountService manages registration and read-only account views.
type AccountService struct {
	ledger      domain.Ledger
	initialCash decimal.Decimal
	logger      *slog.Logger
}

// NewAccountService creates an AccountService granting initialCash to new users.
func NewAccountService(ledger domain.Ledger, initialCash decimal.Decimal, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		ledger:      ledger,
		initialCash: initialCash,
		logger:      logger.With("module", "account"),
	}
}

// Register creates an account for userID with the initial cash. When the
// user already exists the stored account is returned and created is false.
func (s *AccountService) Register(ctx context.Context, userID, username string) (account *domain.Account, created bool, err error) {
	err = s.ledger.Transaction(ctx, func(tx domain.Ledger) error {
		existing, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			account = existing
			return nil
		}

		account = &domain.Account{UserID: userID, Username: username, Cash: s.initialCash}
		if err := tx.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.InfoContext(ctx, "User registered",
			slog.String("user", userID),
			slog.String("username", username),
			slog.String("cash", account.Cash.StringFixed(2)),
		)
	}
	return account, created, nil
}

// Account returns userID's account or domain.ErrUnknownUser.
func (s *AccountService) Account(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownUser, userID)
	}
	return account, nil
}

// Cash returns userID's cash balance.
func (s *AccountService) Cash(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, err := s.Account(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Cash, nil
}

// Portfolio returns userID's open positions valued at cost.
func (s *AccountService) Portfolio(ctx context.Context, userID string) (Portfolio, error) {
	account, err := s.Account(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return Portfolio{}, fmt.Errorf("list positions: %w", err)
	}

	p := Portfolio{UserID: userID, Invested: decimal.Zero, Cash: account.Cash}
	for i := range positions {
		pos := &positions[i]
		if !pos.IsOpen() {
			continue
		}
		value := pos.MarketValueAtCost()
		p.Holdings = append(p.Holdings, Holding{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgPrice: pos.AvgPrice,
			Value:    value,
		})
		p.Invested = p.Invested.Add(value)
	}
	p.Total = p.Invested.Add(p.Cash)
	return p, nil
}

// History returns userID's most recent trades, newest first.
// A non-positive limit means DefaultHistoryLimit.
func (s *AccountService) History(ctx context.Context, userID string, limit int) ([]domain.TradeRecord, error) {
	if _, err := s.Account(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.ledger.ListTrades(ctx, userID, limit)
}

// Stats summarizes every recorded trade of userID.
func (s *AccountService) Stats(ctx context.Context, userID string) (UserStats, error) {
	if _, err := s.Account(ctx, userID); err != nil {
		return UserStats{}, err
	}
	trades, err := s.ledger.ListTrades(ctx, userID, 0)
	if err != nil {
		return UserStats{}, fmt.Errorf("list trades: %w", err)
	}
	return summarize(trades), nil
}

func summarize(trades []domain.TradeRecord) UserStats {
	counts := make(map[domain.Action]int, 3)
	bySymbol := make(map[string]int)
	for _, t := range trades {
		counts[t.Action]++
		bySymbol[t.Symbol]++
	}

	stats := UserStats{Total: len(trades)}
	for _, a := range []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold} {
		pct := decimal.Zero
		if stats.Total > 0 {
			pct = decimal.NewFromInt(int64(counts[a] * 100)).DivRound(decimal.NewFromInt(int64(stats.Total)), 1)
		}
		stats.Actions = append(stats.Actions, ActionStat{Action: a, Count: counts[a], Percent: pct})
	}

	for sym, n := range bySymbol {
		stats.BySymbol = append(stats.BySymbol, SymbolStat{Symbol: sym, Count: n})
	}
	sort.Slice(stats.BySymbol, func(i, j int) bool {
		return stats.BySymbol[i].Symbol < stats.BySymbol[j].Symbol
	})
	return stats
}
