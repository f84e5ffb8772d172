package store

import (
	"time" // Watermark comparison

	"capital_flux/internal/domain" // Local entity model
	"capital_flux/internal/sync"   // PendingCounts shape
)

// PendingCounts returns how many local rows still await a confirmed
// round-trip, per entity type
func (s *Store) PendingCounts() (sync.PendingCounts, error) {
	var counts sync.PendingCounts
	var wallets, transactions int64
	if err := s.db.Model(&domain.Wallet{}).Where("pending_sync = ?", true).Count(&wallets).Error; err != nil {
		return counts, err
	}
	if err := s.db.Model(&domain.Transaction{}).Where("pending_sync = ?", true).Count(&transactions).Error; err != nil {
		return counts, err
	}
	counts.Wallets = int(wallets)
	counts.Transactions = int(transactions)
	return counts, nil
}

// LastSyncTimestamp returns the pull watermark: the max updated-at across
// all locally-known rows that carry a server id. Nil on first run, which
// makes the next pull a full scan.
func (s *Store) LastSyncTimestamp() (*time.Time, error) {
	var stamps []time.Time

	var w domain.Wallet
	err := s.db.Where("server_id IS NOT NULL").Order("updated_at desc").First(&w).Error
	if err == nil {
		stamps = append(stamps, w.UpdatedAt)
	} else if !isNotFound(err) {
		return nil, err
	}

	var t domain.Transaction
	err = s.db.Where("server_id IS NOT NULL").Order("updated_at desc").First(&t).Error
	if err == nil {
		stamps = append(stamps, t.UpdatedAt)
	} else if !isNotFound(err) {
		return nil, err
	}

	if len(stamps) == 0 {
		return nil, nil
	}
	latest := stamps[0]
	for _, stamp := range stamps[1:] {
		if stamp.After(latest) {
			latest = stamp
		}
	}
	return &latest, nil
}
