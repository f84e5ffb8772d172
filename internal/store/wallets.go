package store

import (
	"errors" // gorm.ErrRecordNotFound mapping

	"capital_flux/internal/domain" // Local entity model
	"capital_flux/internal/sync"   // Wire records for server upserts

	"github.com/shopspring/decimal" // Balance arithmetic
	"gorm.io/gorm"                  // GORM ORM library
)

// CreateWallet inserts a new wallet created by a user action. It starts
// pending with no server id and a zero or caller-supplied balance.
func (s *Store) CreateWallet(name string, currency domain.Currency, icon, color string) (*domain.Wallet, error) {
	w := domain.Wallet{
		ID:          newID(),
		Name:        name,
		Currency:    currency,
		Balance:     decimal.Zero,
		Icon:        icon,
		Color:       color,
		IsActive:    true,
		PendingSync: true,
		UpdatedAt:   now(),
	}
	if err := s.db.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWallet applies a user edit: the row is stamped pending with a fresh
// updated-at. The balance is not editable here; it only moves with
// transactions.
func (s *Store) SaveWallet(w *domain.Wallet) error {
	w.PendingSync = true
	w.UpdatedAt = now()
	return s.db.Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
		"name":         w.Name,
		"currency":     w.Currency,
		"icon":         w.Icon,
		"color":        w.Color,
		"is_active":    w.IsActive,
		"pending_sync": true,
		"updated_at":   w.UpdatedAt,
	}).Error
}

// DeactivateWallet soft-deletes a wallet
func (s *Store) DeactivateWallet(id string) error {
	return s.db.Model(&domain.Wallet{}).Where("id = ?", id).Updates(map[string]any{
		"is_active":    false,
		"pending_sync": true,
		"updated_at":   now(),
	}).Error
}

// WalletByID returns a wallet by local id, nil when absent
func (s *Store) WalletByID(id string) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := s.db.First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// WalletByServerID returns a wallet by its server id, nil when absent
func (s *Store) WalletByServerID(serverID string) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := s.db.First(&w, "server_id = ?", serverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// ActiveWallets returns all wallets that are not soft-deleted
func (s *Store) ActiveWallets() ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	err := s.db.Where("is_active = ?", true).Order("updated_at desc").Find(&wallets).Error
	return wallets, err
}

// PendingWallets returns all wallets awaiting a confirmed round-trip
func (s *Store) PendingWallets() ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	err := s.db.Where("pending_sync = ?", true).Find(&wallets).Error
	return wallets, err
}

// MarkWalletSynced records a confirmed round-trip: the server id is
// learned (or confirmed) and the pending flag cleared. Business fields are
// never touched.
func (s *Store) MarkWalletSynced(id, serverID string) error {
	return s.db.Model(&domain.Wallet{}).Where("id = ?", id).Updates(map[string]any{
		"server_id":    serverID,
		"pending_sync": false,
	}).Error
}

// UpsertWalletFromServer merges a remote wallet row into local storage.
// Correlation token first: a row carrying our own local id as client_id
// adopts that local row instead of creating a duplicate. Then server id.
// Otherwise a new local row materializes, already synced.
func (s *Store) UpsertWalletFromServer(rec sync.WalletRecord) (*domain.Wallet, error) {
	fields := map[string]any{
		"name":         rec.Name,
		"currency":     rec.Currency,
		"balance":      rec.Balance,
		"icon":         rec.Icon,
		"color":        rec.Color,
		"is_active":    rec.IsActive,
		"pending_sync": false,
		"updated_at":   rec.UpdatedAt,
	}

	if rec.ClientID != nil {
		existing, err := s.WalletByID(*rec.ClientID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			fields["server_id"] = rec.ID
			if err := s.db.Model(&domain.Wallet{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
				return nil, err
			}
			return s.WalletByID(existing.ID)
		}
	}

	existing, err := s.WalletByServerID(rec.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.db.Model(&domain.Wallet{}).Where("server_id = ?", rec.ID).Updates(fields).Error; err != nil {
			return nil, err
		}
		return s.WalletByID(existing.ID)
	}

	serverID := rec.ID
	w := domain.Wallet{
		ID:          newID(),
		ServerID:    &serverID,
		Name:        rec.Name,
		Currency:    domain.Currency(rec.Currency),
		Balance:     rec.Balance,
		Icon:        rec.Icon,
		Color:       rec.Color,
		IsActive:    rec.IsActive,
		PendingSync: false,
		UpdatedAt:   rec.UpdatedAt,
	}
	if err := s.db.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}
