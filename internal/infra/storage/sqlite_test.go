package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stock_go/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	// 1. Missing
	got, err := s.GetAccount(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for missing account, got (%v, %v)", got, err)
	}

	// 2. Create
	acc := &domain.Account{UserID: "u1", Username: "alice", Cash: decimal.RequireFromString("10000.00")}
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := s.CreateAccount(ctx, &domain.Account{UserID: "u1"}); err == nil {
		t.Error("expected duplicate CreateAccount to fail")
	}

	// 3. Update keeps exact decimals
	acc.Cash = decimal.RequireFromString("1234.57")
	if err := s.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}
	got, err = s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !got.Cash.Equal(decimal.RequireFromString("1234.57")) {
		t.Errorf("expected cash 1234.57, got %s", got.Cash)
	}
	if got.Username != "alice" {
		t.Errorf("expected username alice, got %s", got.Username)
	}
}

func TestPositionUpsert(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	pos := &domain.Position{UserID: "u1", Symbol: "AAPL", Quantity: 10, AvgPrice: decimal.NewFromInt(150)}
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	pos.Quantity = 4
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition update failed: %v", err)
	}

	got, err := s.GetPosition(ctx, "u1", "AAPL")
	if err != nil || got == nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if got.Quantity != 4 || !got.AvgPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("unexpected position %+v", got)
	}

	if missing, _ := s.GetPosition(ctx, "u1", "MSFT"); missing != nil {
		t.Errorf("expected nil for missing position, got %+v", missing)
	}

	s.SavePosition(ctx, &domain.Position{UserID: "u1", Symbol: "AAA", Quantity: 1, AvgPrice: decimal.NewFromInt(1)})
	s.SavePosition(ctx, &domain.Position{UserID: "u2", Symbol: "AAPL", Quantity: 1, AvgPrice: decimal.NewFromInt(1)})

	list, err := s.ListPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListPositions failed: %v", err)
	}
	if len(list) != 2 || list[0].Symbol != "AAA" {
		t.Errorf("expected 2 positions ordered by symbol, got %+v", list)
	}
}

func TestListTradesNewestFirst(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tr := &domain.TradeRecord{
			UserID:     "u1",
			Symbol:     "AAPL",
			Action:     domain.ActionHold,
			Price:      decimal.NewFromInt(100),
			Total:      decimal.Zero,
			Confidence: decimal.NewFromInt(50),
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendTrade(ctx, tr); err != nil {
			t.Fatalf("AppendTrade failed: %v", err)
		}
		if tr.ID == 0 {
			t.Fatal("expected trade ID to be assigned")
		}
	}

	trades, err := s.ListTrades(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("ListTrades failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if !trades[0].ExecutedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("expected newest trade first, got %v", trades[0].ExecutedAt)
	}

	all, _ := s.ListTrades(ctx, "u1", 0)
	if len(all) != 5 {
		t.Errorf("expected all 5 trades with limit 0, got %d", len(all))
	}
}

func TestTransactionRollback(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	s.CreateAccount(ctx, &domain.Account{UserID: "u1", Cash: decimal.NewFromInt(100)})

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx domain.Ledger) error {
		acc, _ := tx.GetAccount(ctx, "u1")
		acc.Cash = decimal.Zero
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		if err := tx.AppendTrade(ctx, &domain.TradeRecord{UserID: "u1", Symbol: "AAPL", Action: domain.ActionBuy, ExecutedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	acc, _ := s.GetAccount(ctx, "u1")
	if !acc.Cash.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected cash rolled back to 100, got %s", acc.Cash)
	}
	if trades, _ := s.ListTrades(ctx, "u1", 0); len(trades) != 0 {
		t.Errorf("expected no trades after rollback, got %d", len(trades))
	}
}
