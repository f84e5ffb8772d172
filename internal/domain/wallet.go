package domain

import (
	"time" // Timestamps for sync ordering

	"github.com/shopspring/decimal" // Exact decimal arithmetic for balances
)

// Currency is one of the four supported currency codes
type Currency string

// Supported currencies
const (
	CurrencyVES Currency = "VES" // Venezuelan bolívar
	CurrencyUSD Currency = "USD" // US dollar
	CurrencyEUR Currency = "EUR" // Euro
	CurrencyCOP Currency = "COP" // Colombian peso
)

// Valid reports whether c is a supported currency code
func (c Currency) Valid() bool {
	switch c {
	case CurrencyVES, CurrencyUSD, CurrencyEUR, CurrencyCOP:
		return true
	}
	return false
}

// Wallet is the local copy of a wallet. ServerID is nil until the first
// successful push; PendingSync stays true until a confirmed round-trip.
type Wallet struct {
	ID          string          `gorm:"primaryKey" json:"id"`                                 // Local id, generated client-side, never reused
	ServerID    *string         `gorm:"index" json:"serverId"`                                // Remote id, nil until first push or learned on pull
	Name        string          `gorm:"not null" json:"name"`                                 // Display name
	Currency    Currency        `gorm:"not null" json:"currency"`                             // Wallet currency
	Balance     decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"` // Derived: sum of signed transaction amounts
	Icon        string          `gorm:"default:wallet" json:"icon"`                           // Presentation metadata
	Color       string          `gorm:"default:#4F46E5" json:"color"`                         // Presentation metadata
	IsActive    bool            `gorm:"default:true" json:"isActive"`                         // Soft-delete flag
	PendingSync bool            `gorm:"index;default:true" json:"pendingSync"`                // Local state not yet confirmed by remote
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`       // Set on every local mutation; sole conflict tie-breaker
}

// EntityID returns the permanent local id
func (w Wallet) EntityID() string { return w.ID }

// RemoteID returns the server id, or "" when the wallet was never pushed
func (w Wallet) RemoteID() string {
	if w.ServerID == nil {
		return ""
	}
	return *w.ServerID
}

// ModifiedAt returns the last local mutation timestamp
func (w Wallet) ModifiedAt() time.Time { return w.UpdatedAt }
