package domain

import (
	"time" // Business date and sync timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for amounts
)

// TransactionType determines the sign applied to a transaction's amount
type TransactionType string

// Transaction types
const (
	TypeIncome   TransactionType = "income"   // Credits the wallet
	TypeExpense  TransactionType = "expense"  // Debits the wallet
	TypeTransfer TransactionType = "transfer" // Debits the wallet (single-leg entry)
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Sign returns +1 for income and -1 for expense and transfer
func (t TransactionType) Sign() decimal.Decimal {
	if t == TypeIncome {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// RateSource identifies where an exchange rate came from
type RateSource string

// Exchange rate sources
const (
	RateSourceBCV      RateSource = "bcv"      // Official central bank rate
	RateSourceParallel RateSource = "parallel" // Parallel market rate
	RateSourceBinance  RateSource = "binance"  // Binance P2P rate
	RateSourceManual   RateSource = "manual"   // User-entered rate
)

// Transaction is the local copy of a transaction. Amount is a magnitude;
// the sign is derived from Type. Transactions are hard-deleted, with a
// compensating balance adjustment on their wallet.
type Transaction struct {
	ID             string           `gorm:"primaryKey" json:"id"`                           // Local id, generated client-side
	ServerID       *string          `gorm:"index" json:"serverId"`                          // Remote id, nil until first push or learned on pull
	WalletID       string           `gorm:"index;not null" json:"walletId"`                 // Local foreign key to exactly one wallet
	CategoryID     *string          `json:"categoryId"`                                     // Optional category
	Type           TransactionType  `gorm:"not null" json:"type"`                           // income, expense or transfer
	Amount         decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"amount"`      // Non-negative magnitude
	Currency       Currency         `gorm:"not null" json:"currency"`                       // Transaction currency
	OriginalAmount *decimal.Decimal `gorm:"type:decimal(20,8)" json:"originalAmount"`       // FX: amount before conversion
	ExchangeRate   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"exchangeRate"`         // FX: rate applied
	RateSource     *RateSource      `json:"rateSource"`                                     // FX: where the rate came from
	Description    *string          `json:"description"`                                    // Free-form note
	Date           time.Time        `gorm:"index;not null" json:"date"`                     // Business date, distinct from UpdatedAt
	PendingSync    bool             `gorm:"index;default:true" json:"pendingSync"`          // Local state not yet confirmed by remote
	UpdatedAt      time.Time        `gorm:"not null;autoUpdateTime:false" json:"updatedAt"` // Set on every local mutation; sole conflict tie-breaker
}

// EntityID returns the permanent local id
func (t Transaction) EntityID() string { return t.ID }

// RemoteID returns the server id, or "" when the transaction was never pushed
func (t Transaction) RemoteID() string {
	if t.ServerID == nil {
		return ""
	}
	return *t.ServerID
}

// ModifiedAt returns the last local mutation timestamp
func (t Transaction) ModifiedAt() time.Time { return t.UpdatedAt }

// SignedAmount returns the balance delta this transaction applies to its wallet
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(t.Type.Sign())
}
