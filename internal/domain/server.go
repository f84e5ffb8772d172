package domain

import (
	"time" // Server-side updated_at stamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// ServerWallet is the authoritative copy of a wallet, keyed by a
// server-assigned id and scoped to the owning user. ClientID carries the
// correlation token from the client's first push so a later pull can
// recognize rows that originated locally.
type ServerWallet struct {
	ID        string          `gorm:"primaryKey"`                            // Server-assigned id (UUID)
	UserID    uint            `gorm:"index;not null"`                        // Owning user
	ClientID  *string         `gorm:"index"`                                 // Correlation token from the client insert
	Name      string          `gorm:"not null"`                              // Display name
	Currency  Currency        `gorm:"not null"`                              // Wallet currency
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"` // Authoritative balance
	Icon      string          `gorm:"default:wallet"`                        // Presentation metadata
	Color     string          `gorm:"default:#4F46E5"`                       // Presentation metadata
	IsActive  bool            `gorm:"default:true"`                          // Soft-delete flag
	UpdatedAt time.Time       `gorm:"index;not null;autoUpdateTime:false"`   // Stamped server-side on every write
}

// TableName keeps the authoritative table named like the client's
func (ServerWallet) TableName() string { return "wallets" }

// ServerTransaction is the authoritative copy of a transaction. WalletID
// references the server id of its wallet.
type ServerTransaction struct {
	ID             string           `gorm:"primaryKey"`     // Server-assigned id (UUID)
	UserID         uint             `gorm:"index;not null"` // Owning user
	ClientID       *string          `gorm:"index"`          // Correlation token from the client insert
	WalletID       string           `gorm:"index;not null"` // Server id of the parent wallet
	CategoryID     *string          // Optional category
	Type           TransactionType  `gorm:"not null"`                    // income, expense or transfer
	Amount         decimal.Decimal  `gorm:"type:decimal(20,8);not null"` // Non-negative magnitude
	Currency       Currency         `gorm:"not null"`                    // Transaction currency
	OriginalAmount *decimal.Decimal `gorm:"type:decimal(20,8)"`          // FX: amount before conversion
	ExchangeRate   *decimal.Decimal `gorm:"type:decimal(20,8)"`          // FX: rate applied
	RateSource     *RateSource      // FX: where the rate came from
	Description    *string          // Free-form note
	Date           time.Time        `gorm:"index;not null"`                      // Business date
	UpdatedAt      time.Time        `gorm:"index;not null;autoUpdateTime:false"` // Stamped server-side on every write
}

// TableName keeps the authoritative table named like the client's
func (ServerTransaction) TableName() string { return "transactions" }
