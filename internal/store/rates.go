package store

import (
	"errors" // gorm.ErrRecordNotFound mapping
	"time"   // Rate pruning cutoff

	"capital_flux/internal/domain" // Local entity model

	"gorm.io/gorm" // GORM ORM library
)

// SaveRate caches a fetched exchange rate locally
func (s *Store) SaveRate(rate *domain.ExchangeRate) error {
	rate.ID = newID()
	return s.db.Create(rate).Error
}

// Rate returns the freshest cached rate for a currency pair and source,
// nil when none is cached
func (s *Store) Rate(base, target domain.Currency, source domain.RateSource) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := s.db.
		Where("base_currency = ? AND target_currency = ? AND source = ?", base, target, source).
		Order("fetched_at desc").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// Rates returns all cached rates, newest first
func (s *Store) Rates() ([]domain.ExchangeRate, error) {
	var rates []domain.ExchangeRate
	err := s.db.Order("fetched_at desc").Find(&rates).Error
	return rates, err
}

// PruneRates deletes cached rates older than the given number of days
func (s *Store) PruneRates(olderThanDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	return s.db.Delete(&domain.ExchangeRate{}, "fetched_at < ?", cutoff).Error
}
