package store

import (
	"capital_flux/internal/domain" // Local entity model
)

// Categories returns all categories ordered by name
func (s *Store) Categories() ([]domain.Category, error) {
	var categories []domain.Category
	err := s.db.Order("name").Find(&categories).Error
	return categories, err
}

// CategoriesByType returns the categories applicable to a transaction
// type. Transfer categories are always included.
func (s *Store) CategoriesByType(t domain.TransactionType) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.db.Where("type = ? OR type = ?", t, domain.TypeTransfer).Order("name").Find(&categories).Error
	return categories, err
}
