package sync

import (
	"context" // Cancellable remote calls

	"capital_flux/internal/domain" // Entity model

	"github.com/sirupsen/logrus" // Structured logging
)

// pullWallets merges remotely changed wallets into local storage. A listing
// failure skips the phase for this cycle; the watermark is untouched so the
// next run retries the same window.
func (e *Engine) pullWallets(ctx context.Context, handlers Handlers, stats *Stats) {
	since, err := e.local.LastSyncTimestamp()
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to read sync watermark")
		return
	}
	records, err := e.remote.WalletsUpdatedSince(ctx, since)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to pull wallets")
		return
	}

	for _, rec := range records {
		res := e.pullWallet(handlers, stats, rec)
		if !res.Success {
			stats.Failed++
			logrus.WithFields(logrus.Fields{
				"server_id": res.ServerID,
				"error":     res.Err.Error(),
			}).Warn("Wallet pull failed")
		}
	}
}

// pullWallet merges one remote wallet row
func (e *Engine) pullWallet(handlers Handlers, stats *Stats, rec WalletRecord) PullResult {
	local, err := e.matchLocalWallet(rec)
	if err != nil {
		return PullResult{EntityType: EntityWallet, ServerID: rec.ID, Err: err}
	}

	// A locally pending match means both sides may have diverged. On
	// conflict the local row is left untouched this cycle: the next push
	// reconciles it.
	if local != nil && local.PendingSync {
		if DetectConflict(*local, rec.UpdatedAt) {
			remote := walletFromRecord(rec, local.ID)
			e.emitConflict(handlers, stats, ResolveConflict(*local, remote, e.cfg.PullStrategy))
			return PullResult{Success: true, EntityType: EntityWallet, ServerID: rec.ID}
		}
	}

	if _, err := e.local.UpsertWalletFromServer(rec); err != nil {
		return PullResult{EntityType: EntityWallet, ServerID: rec.ID, Err: err}
	}
	return PullResult{Success: true, EntityType: EntityWallet, ServerID: rec.ID}
}

// pullTransactions merges remotely changed transactions, remapping each
// row's wallet reference into the local id space.
func (e *Engine) pullTransactions(ctx context.Context, handlers Handlers, stats *Stats) {
	since, err := e.local.LastSyncTimestamp()
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to read sync watermark")
		return
	}
	records, err := e.remote.TransactionsUpdatedSince(ctx, since)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to pull transactions")
		return
	}

	for _, rec := range records {
		res := e.pullTransaction(handlers, stats, rec)
		if !res.Success {
			stats.Failed++
			logrus.WithFields(logrus.Fields{
				"server_id": res.ServerID,
				"error":     res.Err.Error(),
			}).Warn("Transaction pull failed")
		}
	}
}

// pullTransaction merges one remote transaction row. A row whose wallet
// cannot be resolved locally is reported as a failed pull item and never
// creates a local transaction.
func (e *Engine) pullTransaction(handlers Handlers, stats *Stats, rec TransactionRecord) PullResult {
	local, err := e.matchLocalTransaction(rec)
	if err != nil {
		return PullResult{EntityType: EntityTransaction, ServerID: rec.ID, Err: err}
	}

	localWalletID, err := e.resolveLocalWallet(rec.WalletID)
	if err != nil {
		return PullResult{EntityType: EntityTransaction, ServerID: rec.ID, Err: err}
	}
	if localWalletID == "" {
		return PullResult{EntityType: EntityTransaction, ServerID: rec.ID, Err: ErrOrphanReference}
	}

	if local != nil && local.PendingSync {
		if DetectConflict(*local, rec.UpdatedAt) {
			remote := transactionFromRecord(rec, local.ID, localWalletID)
			e.emitConflict(handlers, stats, ResolveConflict(*local, remote, e.cfg.PullStrategy))
			return PullResult{Success: true, EntityType: EntityTransaction, ServerID: rec.ID}
		}
	}

	if _, err := e.local.UpsertTransactionFromServer(rec, localWalletID); err != nil {
		return PullResult{EntityType: EntityTransaction, ServerID: rec.ID, Err: err}
	}
	return PullResult{Success: true, EntityType: EntityTransaction, ServerID: rec.ID}
}

// matchLocalWallet finds the local wallet a remote row corresponds to:
// correlation token first (resolving the "created locally, not yet pushed,
// remote already has it" race), then server id.
func (e *Engine) matchLocalWallet(rec WalletRecord) (*domain.Wallet, error) {
	if rec.ClientID != nil {
		w, err := e.local.WalletByID(*rec.ClientID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			return w, nil
		}
	}
	return e.local.WalletByServerID(rec.ID)
}

// matchLocalTransaction is the transaction counterpart of matchLocalWallet
func (e *Engine) matchLocalTransaction(rec TransactionRecord) (*domain.Transaction, error) {
	if rec.ClientID != nil {
		t, err := e.local.TransactionByID(*rec.ClientID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return e.local.TransactionByServerID(rec.ID)
}

// resolveLocalWallet maps a remote wallet id to the local wallet id,
// preferring the indexed server-id lookup and falling back to a linear scan
// of known wallets. Returns "" when no local wallet matches.
func (e *Engine) resolveLocalWallet(serverWalletID string) (string, error) {
	w, err := e.local.WalletByServerID(serverWalletID)
	if err != nil {
		return "", err
	}
	if w != nil {
		return w.ID, nil
	}
	wallets, err := e.local.ActiveWallets()
	if err != nil {
		return "", err
	}
	for _, candidate := range wallets {
		if candidate.ServerID != nil && *candidate.ServerID == serverWalletID {
			return candidate.ID, nil
		}
	}
	return "", nil
}

// walletFromRecord projects a remote wallet row onto the local model, used
// only as the remote side of a conflict resolution
func walletFromRecord(rec WalletRecord, localID string) domain.Wallet {
	serverID := rec.ID
	return domain.Wallet{
		ID:        localID,
		ServerID:  &serverID,
		Name:      rec.Name,
		Currency:  domain.Currency(rec.Currency),
		Balance:   rec.Balance,
		Icon:      rec.Icon,
		Color:     rec.Color,
		IsActive:  rec.IsActive,
		UpdatedAt: rec.UpdatedAt,
	}
}

// transactionFromRecord is the transaction counterpart of walletFromRecord
func transactionFromRecord(rec TransactionRecord, localID, localWalletID string) domain.Transaction {
	serverID := rec.ID
	var rateSource *domain.RateSource
	if rec.RateSource != nil {
		s := domain.RateSource(*rec.RateSource)
		rateSource = &s
	}
	return domain.Transaction{
		ID:             localID,
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
		UpdatedAt:      rec.UpdatedAt,
	}
}
