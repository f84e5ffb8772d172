package sync

import (
	"context" // Cancellable remote calls
	"fmt"     // Error wrapping

	"capital_flux/internal/domain" // Entity model

	"github.com/sirupsen/logrus" // Structured logging
)

// pushWallets walks locally pending wallets and upserts them to the remote
// store. Per-entity failures are tallied, never propagated.
func (e *Engine) pushWallets(ctx context.Context, handlers Handlers, stats *Stats, done *int) error {
	pending, err := e.local.PendingWallets()
	if err != nil {
		return fmt.Errorf("listing pending wallets: %w", err)
	}
	for _, w := range pending {
		res := e.pushWallet(ctx, handlers, stats, w)
		e.tally(stats, res)
		*done++
		e.emitProgress(handlers, *done, stats.TotalPending)
	}
	return nil
}

// pushTransactions walks locally pending transactions. It runs after
// pushWallets so parent wallets already carry server ids in the common case.
func (e *Engine) pushTransactions(ctx context.Context, handlers Handlers, stats *Stats, done *int) error {
	pending, err := e.local.PendingTransactions()
	if err != nil {
		return fmt.Errorf("listing pending transactions: %w", err)
	}
	for _, t := range pending {
		res := e.pushTransaction(ctx, handlers, stats, t)
		e.tally(stats, res)
		*done++
		e.emitProgress(handlers, *done, stats.TotalPending)
	}
	return nil
}

// tally folds a per-entity result into the run statistics
func (e *Engine) tally(stats *Stats, res Result) {
	if res.Success {
		stats.Synced++
		return
	}
	stats.Failed++
	logrus.WithFields(logrus.Fields{
		"entity_type": string(res.EntityType),
		"entity_id":   res.EntityID,
		"error":       res.Err.Error(),
	}).Warn("Entity push failed")
}

// pushWallet upserts one wallet. A wallet with a server id is updated in
// place; one without is inserted carrying the local id as correlation token
// and learns its server id from the reply.
func (e *Engine) pushWallet(ctx context.Context, handlers Handlers, stats *Stats, w domain.Wallet) Result {
	if _, ok := e.identity.CurrentUserID(); !ok {
		return Result{EntityType: EntityWallet, EntityID: w.ID, Err: ErrNotAuthenticated}
	}

	if w.ServerID != nil {
		// Compare against a fresh remote read. A detected conflict is
		// informational only: the user is actively pushing this edit, so the
		// local write wins the push path.
		remoteAt, err := e.remote.WalletUpdatedAt(ctx, *w.ServerID)
		if err != nil {
			return Result{EntityType: EntityWallet, EntityID: w.ID, Err: fmt.Errorf("reading remote wallet: %w", err)}
		}
		if remoteAt != nil && DetectConflict(w, *remoteAt) {
			remote := w
			remote.UpdatedAt = *remoteAt
			e.emitConflict(handlers, stats, ResolveConflict(w, remote, StrategyServerWins))
		}

		if err := e.remote.UpdateWallet(ctx, *w.ServerID, walletRecord(w, nil)); err != nil {
			return Result{EntityType: EntityWallet, EntityID: w.ID, Err: fmt.Errorf("%w: %v", ErrRemoteRejected, err)}
		}
		if err := e.local.MarkWalletSynced(w.ID, *w.ServerID); err != nil {
			return Result{EntityType: EntityWallet, EntityID: w.ID, Err: err}
		}
		return Result{Success: true, EntityType: EntityWallet, EntityID: w.ID, ServerID: *w.ServerID}
	}

	serverID, err := e.remote.InsertWallet(ctx, walletRecord(w, &w.ID))
	if err != nil {
		return Result{EntityType: EntityWallet, EntityID: w.ID, Err: fmt.Errorf("%w: %v", ErrRemoteRejected, err)}
	}
	if err := e.local.MarkWalletSynced(w.ID, serverID); err != nil {
		return Result{EntityType: EntityWallet, EntityID: w.ID, Err: err}
	}
	return Result{Success: true, EntityType: EntityWallet, EntityID: w.ID, ServerID: serverID}
}

// pushTransaction upserts one transaction. The parent wallet's server id is
// resolved first; a never-pushed wallet is pushed recursively so the remote
// side never sees a transaction referencing a non-existent wallet.
func (e *Engine) pushTransaction(ctx context.Context, handlers Handlers, stats *Stats, t domain.Transaction) Result {
	if _, ok := e.identity.CurrentUserID(); !ok {
		return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: ErrNotAuthenticated}
	}

	serverWalletID := t.WalletID
	wallet, err := e.local.WalletByID(t.WalletID)
	if err != nil {
		return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: err}
	}
	if wallet != nil && wallet.ServerID != nil {
		serverWalletID = *wallet.ServerID
	} else if wallet != nil {
		walletRes := e.pushWallet(ctx, handlers, stats, *wallet)
		if !walletRes.Success {
			return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: fmt.Errorf("%w: %v", ErrParentSyncFailed, walletRes.Err)}
		}
		serverWalletID = walletRes.ServerID
	}

	if t.ServerID != nil {
		if err := e.remote.UpdateTransaction(ctx, *t.ServerID, transactionRecord(t, serverWalletID, nil)); err != nil {
			return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: fmt.Errorf("%w: %v", ErrRemoteRejected, err)}
		}
		if err := e.local.MarkTransactionSynced(t.ID, *t.ServerID); err != nil {
			return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: err}
		}
		return Result{Success: true, EntityType: EntityTransaction, EntityID: t.ID, ServerID: *t.ServerID}
	}

	serverID, err := e.remote.InsertTransaction(ctx, transactionRecord(t, serverWalletID, &t.ID))
	if err != nil {
		return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: fmt.Errorf("%w: %v", ErrRemoteRejected, err)}
	}
	if err := e.local.MarkTransactionSynced(t.ID, serverID); err != nil {
		return Result{EntityType: EntityTransaction, EntityID: t.ID, Err: err}
	}
	return Result{Success: true, EntityType: EntityTransaction, EntityID: t.ID, ServerID: serverID}
}

// walletRecord projects a local wallet onto the wire. clientID is set only
// for inserts, where it acts as the correlation token.
func walletRecord(w domain.Wallet, clientID *string) WalletRecord {
	return WalletRecord{
		ClientID:  clientID,
		Name:      w.Name,
		Currency:  string(w.Currency),
		Balance:   w.Balance,
		Icon:      w.Icon,
		Color:     w.Color,
		IsActive:  w.IsActive,
		UpdatedAt: w.UpdatedAt,
	}
}

// transactionRecord projects a local transaction onto the wire, remapping
// the wallet reference to the server's id space.
func transactionRecord(t domain.Transaction, serverWalletID string, clientID *string) TransactionRecord {
	var rateSource *string
	if t.RateSource != nil {
		s := string(*t.RateSource)
		rateSource = &s
	}
	return TransactionRecord{
		ClientID:       clientID,
		WalletID:       serverWalletID,
		CategoryID:     t.CategoryID,
		Type:           string(t.Type),
		Amount:         t.Amount,
		Currency:       string(t.Currency),
		OriginalAmount: t.OriginalAmount,
		ExchangeRate:   t.ExchangeRate,
		RateSource:     rateSource,
		Description:    t.Description,
		Date:           t.Date,
		UpdatedAt:      t.UpdatedAt,
	}
}
