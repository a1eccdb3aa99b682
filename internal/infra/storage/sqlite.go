package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"stock_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite-backed domain.Ledger.
type Storage struct {
	db *gorm.DB
}

var _ domain.Ledger = (*Storage)(nil)

// NewStorage opens (creating if needed) the database at path.
// An empty path resolves to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection turns lock contention into queueing
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Account{}, &domain.Position{}, &domain.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "StockGo", "data", "stockgo.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn against a ledger bound to one database transaction.
// Any error returned by fn rolls everything back.
func (s *Storage) Transaction(ctx context.Context, fn func(tx domain.Ledger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Storage{db: tx})
	})
}

// ======================================================================================
// Account Operations
// ======================================================================================

// CreateAccount inserts a new account. It fails if the user already has one.
func (s *Storage) CreateAccount(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Create(account).Error
}

// GetAccount retrieves an account by user id
func (s *Storage) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.WithContext(ctx).First(&account, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccount creates or updates an account
func (s *Storage) SaveAccount(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Save(account).Error
}

// ======================================================================================
// Position Operations
// ======================================================================================

// GetPosition retrieves the position of userID in symbol
func (s *Storage) GetPosition(ctx context.Context, userID, symbol string) (*domain.Position, error) {
	var pos domain.Position
	err := s.db.WithContext(ctx).First(&pos, "user_id = ? AND symbol = ?", userID, symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// ListPositions returns every position row of userID ordered by symbol,
// including closed ones.
func (s *Storage) ListPositions(ctx context.Context, userID string) ([]domain.Position, error) {
	var positions []domain.Position
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol").
		Find(&positions).Error
	return positions, err
}

// SavePosition creates or updates a position
func (s *Storage) SavePosition(ctx context.Context, position *domain.Position) error {
	return s.db.WithContext(ctx).Save(position).Error
}

// ======================================================================================
// Trade Log Operations
// ======================================================================================

// AppendTrade inserts a trade record and sets its ID
func (s *Storage) AppendTrade(ctx context.Context, trade *domain.TradeRecord) error {
	return s.db.WithContext(ctx).Create(trade).Error
}

// ListTrades returns userID's trades, newest first. limit <= 0 returns all.
func (s *Storage) ListTrades(ctx context.Context, userID string, limit int) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&trades).Error
	return trades, err
}
