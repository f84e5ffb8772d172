package domain

// Category classifies transactions. Categories are seeded locally and are
// not part of the sync protocol.
type Category struct {
	ID    string          `gorm:"primaryKey" json:"id"` // Stable slug id (e.g. "food")
	Name  string          `gorm:"not null" json:"name"` // Display name
	Icon  string          `gorm:"not null" json:"icon"` // Presentation metadata
	Color string          `gorm:"not null" json:"color"`
	Type  TransactionType `gorm:"not null" json:"type"` // Which transaction type it applies to
}
