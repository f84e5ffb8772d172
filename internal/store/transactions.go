package store

import (
	"errors" // gorm.ErrRecordNotFound mapping

	"capital_flux/internal/domain" // Local entity model
	"capital_flux/internal/sync"   // Wire records for server upserts

	"github.com/shopspring/decimal" // Balance arithmetic
	"gorm.io/gorm"                  // GORM ORM library
)

// CreateTransaction inserts a user-created transaction and applies its
// signed amount to the wallet balance. Row insert and balance delta commit
// as one atomic unit.
func (s *Store) CreateTransaction(t *domain.Transaction) error {
	t.ID = newID()
	t.ServerID = nil
	t.PendingSync = true
	t.UpdatedAt = now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err // Return error to rollback
		}
		return applyBalanceDelta(tx, t.WalletID, t.SignedAmount())
	})
}

// UpdateTransaction applies a user edit. When amount or type changed, the
// old delta is reversed and the new one applied, in the same transaction
// as the row update.
func (s *Store) UpdateTransaction(t *domain.Transaction) error {
	existing, err := s.TransactionByID(t.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return gorm.ErrRecordNotFound
	}
	t.PendingSync = true
	t.UpdatedAt = now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if !existing.Amount.Equal(t.Amount) || existing.Type != t.Type || existing.WalletID != t.WalletID {
			// Reverse the old delta on the old wallet, apply the new one
			if err := applyBalanceDelta(tx, existing.WalletID, existing.SignedAmount().Neg()); err != nil {
				return err
			}
			if err := applyBalanceDelta(tx, t.WalletID, t.SignedAmount()); err != nil {
				return err
			}
		}
		return tx.Model(&domain.Transaction{}).Where("id = ?", t.ID).Updates(map[string]any{
			"wallet_id":       t.WalletID,
			"category_id":     t.CategoryID,
			"type":            t.Type,
			"amount":          t.Amount,
			"currency":        t.Currency,
			"original_amount": t.OriginalAmount,
			"exchange_rate":   t.ExchangeRate,
			"rate_source":     t.RateSource,
			"description":     t.Description,
			"date":            t.Date,
			"pending_sync":    true,
			"updated_at":      t.UpdatedAt,
		}).Error
	})
}

// DeleteTransaction hard-deletes a transaction with a compensating balance
// adjustment on its wallet, atomically
func (s *Store) DeleteTransaction(id string) error {
	existing, err := s.TransactionByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil // Already gone
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := applyBalanceDelta(tx, existing.WalletID, existing.SignedAmount().Neg()); err != nil {
			return err
		}
		return tx.Delete(&domain.Transaction{}, "id = ?", id).Error
	})
}

// TransactionByID returns a transaction by local id, nil when absent
func (s *Store) TransactionByID(id string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// TransactionByServerID returns a transaction by its server id, nil when absent
func (s *Store) TransactionByServerID(serverID string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.db.First(&t, "server_id = ?", serverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// TransactionsByWallet returns a wallet's transactions, newest first
func (s *Store) TransactionsByWallet(walletID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.Where("wallet_id = ?", walletID).Order("date desc, updated_at desc").Find(&txs).Error
	return txs, err
}

// PendingTransactions returns all transactions awaiting a confirmed round-trip
func (s *Store) PendingTransactions() ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.Where("pending_sync = ?", true).Find(&txs).Error
	return txs, err
}

// MarkTransactionSynced records a confirmed round-trip for a transaction
func (s *Store) MarkTransactionSynced(id, serverID string) error {
	return s.db.Model(&domain.Transaction{}).Where("id = ?", id).Updates(map[string]any{
		"server_id":    serverID,
		"pending_sync": false,
	}).Error
}

// UpsertTransactionFromServer merges a remote transaction row into local
// storage under the resolved local wallet id. Balances are not adjusted
// here: the authoritative balance arrives with the wallet pull.
func (s *Store) UpsertTransactionFromServer(rec sync.TransactionRecord, localWalletID string) (*domain.Transaction, error) {
	fields := map[string]any{
		"wallet_id":       localWalletID,
		"category_id":     rec.CategoryID,
		"type":            rec.Type,
		"amount":          rec.Amount,
		"currency":        rec.Currency,
		"original_amount": rec.OriginalAmount,
		"exchange_rate":   rec.ExchangeRate,
		"rate_source":     rec.RateSource,
		"description":     rec.Description,
		"date":            rec.Date,
		"pending_sync":    false,
		"updated_at":      rec.UpdatedAt,
	}

	if rec.ClientID != nil {
		existing, err := s.TransactionByID(*rec.ClientID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			fields["server_id"] = rec.ID
			if err := s.db.Model(&domain.Transaction{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
				return nil, err
			}
			return s.TransactionByID(existing.ID)
		}
	}

	existing, err := s.TransactionByServerID(rec.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.db.Model(&domain.Transaction{}).Where("server_id = ?", rec.ID).Updates(fields).Error; err != nil {
			return nil, err
		}
		return s.TransactionByID(existing.ID)
	}

	serverID := rec.ID
	var rateSource *domain.RateSource
	if rec.RateSource != nil {
		rs := domain.RateSource(*rec.RateSource)
		rateSource = &rs
	}
	t := domain.Transaction{
		ID:             newID(),
		ServerID:       &serverID,
		WalletID:       localWalletID,
		CategoryID:     rec.CategoryID,
		Type:           domain.TransactionType(rec.Type),
		Amount:         rec.Amount,
		Currency:       domain.Currency(rec.Currency),
		OriginalAmount: rec.OriginalAmount,
		ExchangeRate:   rec.ExchangeRate,
		RateSource:     rateSource,
		Description:    rec.Description,
		Date:           rec.Date,
		PendingSync:    false,
		UpdatedAt:      rec.UpdatedAt,
	}
	if err := s.db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// applyBalanceDelta moves a wallet balance and stamps the wallet pending.
// Always called inside the caller's transaction so the balance and the row
// mutation commit or roll back together.
func applyBalanceDelta(tx *gorm.DB, walletID string, delta decimal.Decimal) error {
	var w domain.Wallet
	if err := tx.First(&w, "id = ?", walletID).Error; err != nil {
		return err
	}
	return tx.Model(&domain.Wallet{}).Where("id = ?", walletID).Updates(map[string]any{
		"balance":      w.Balance.Add(delta),
		"pending_sync": true,
		"updated_at":   now(),
	}).Error
}
