package domain

import (
	"time" // Fetch timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for rates
)

// ExchangeRate is a locally cached currency conversion rate
type ExchangeRate struct {
	ID             string          `gorm:"primaryKey" json:"id"`                               // Local id
	BaseCurrency   Currency        `gorm:"index:idx_rate_pair;not null" json:"baseCurrency"`   // Currency converted from
	TargetCurrency Currency        `gorm:"index:idx_rate_pair;not null" json:"targetCurrency"` // Currency converted to
	Rate           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"rate"`            // Units of target per unit of base
	Source         RateSource      `gorm:"index:idx_rate_pair;not null" json:"source"`         // Where the rate came from
	FetchedAt      time.Time       `gorm:"not null" json:"fetchedAt"`                          // When the rate was obtained
}
