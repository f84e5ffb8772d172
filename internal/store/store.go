// Package store is the durable local copy of the user's financial data:
// a sqlite database holding wallets, transactions, categories and exchange
// rates, with a pending-sync flag per syncable row.
package store

import (
	"errors" // gorm.ErrRecordNotFound mapping
	"time"   // Mutation stamps

	"capital_flux/internal/domain" // Local entity model

	"github.com/google/uuid"     // Local id generation
	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/driver/sqlite"      // SQLite driver for GORM
	"gorm.io/gorm"               // GORM ORM library
)

// Store wraps the local sqlite database
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the local database at path, migrates the
// schema and seeds default categories. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_foreign_keys=on"), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	// AutoMigrate will create tables, missing columns and indexes
	if err := db.AutoMigrate(
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.Category{},
		&domain.ExchangeRate{},
	); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.seedCategories(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newID generates a permanent local id
func newID() string {
	return uuid.NewString()
}

// now returns the stamp applied to local mutations
func now() time.Time {
	return time.Now().UTC()
}

// isNotFound reports whether err is gorm's missing-row error
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// seedCategories inserts the default category set on first open
func (s *Store) seedCategories() error {
	var count int64
	if err := s.db.Model(&domain.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil // Already seeded
	}
	defaults := []domain.Category{
		{ID: "food", Name: "Food", Icon: "restaurant", Color: "#F59E0B", Type: domain.TypeExpense},
		{ID: "transport", Name: "Transport", Icon: "car", Color: "#3B82F6", Type: domain.TypeExpense},
		{ID: "shopping", Name: "Shopping", Icon: "cart", Color: "#EC4899", Type: domain.TypeExpense},
		{ID: "entertainment", Name: "Entertainment", Icon: "game-controller", Color: "#8B5CF6", Type: domain.TypeExpense},
		{ID: "health", Name: "Health", Icon: "medical", Color: "#10B981", Type: domain.TypeExpense},
		{ID: "education", Name: "Education", Icon: "school", Color: "#6366F1", Type: domain.TypeExpense},
		{ID: "utilities", Name: "Utilities", Icon: "flash", Color: "#F97316", Type: domain.TypeExpense},
		{ID: "salary", Name: "Salary", Icon: "wallet", Color: "#10B981", Type: domain.TypeIncome},
		{ID: "freelance", Name: "Freelance", Icon: "laptop", Color: "#7C3AED", Type: domain.TypeIncome},
		{ID: "investment", Name: "Investment", Icon: "trending-up", Color: "#3B82F6", Type: domain.TypeIncome},
		{ID: "gift", Name: "Gift", Icon: "gift", Color: "#EC4899", Type: domain.TypeIncome},
		{ID: "transfer", Name: "Transfer", Icon: "swap-horizontal", Color: "#64748B", Type: domain.TypeTransfer},
	}
	if err := s.db.Create(&defaults).Error; err != nil {
		return err
	}
	logrus.WithField("count", len(defaults)).Info("Seeded default categories")
	return nil
}
