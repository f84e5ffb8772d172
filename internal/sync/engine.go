package sync

import (
	"context"     // Cancellable remote calls
	"fmt"         // Panic wrapping
	gosync "sync" // Syncing flag mutex (package is itself named sync)
	"time"        // Completion stamps

	"github.com/sirupsen/logrus" // Structured logging
)

// Engine coordinates connectivity checks, mutual exclusion of concurrent
// runs, pull-then-push ordering, statistics aggregation and event
// notification. At most one sync run is active per Engine; concurrent
// Sync calls collapse into a no-op returning a point-in-time snapshot.
type Engine struct {
	cfg      Config
	local    LocalStore
	remote   RemoteStore
	conn     Connectivity
	identity Identity

	mu       gosync.Mutex // Guards syncing and handlers
	syncing  bool         // Idle ↔ Syncing state flag
	handlers Handlers
	unsub    func() // Connectivity subscription, set by Initialize
}

// NewEngine constructs an engine with injected collaborators
func NewEngine(cfg Config, local LocalStore, remote RemoteStore, conn Connectivity, identity Identity) *Engine {
	return &Engine{
		cfg:      cfg,
		local:    local,
		remote:   remote,
		conn:     conn,
		identity: identity,
	}
}

// SetHandlers installs the event callbacks
func (e *Engine) SetHandlers(h Handlers) {
	e.mu.Lock()
	e.handlers = h
	e.mu.Unlock()
}

// Initialize subscribes to connectivity changes so a reconnect can trigger
// an automatic sync when configured to do so
func (e *Engine) Initialize() {
	e.unsub = e.conn.OnChange(func(online bool) {
		if online && e.cfg.SyncOnReconnect {
			e.Sync(context.Background())
		}
	})
}

// Destroy unsubscribes from connectivity changes
func (e *Engine) Destroy() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
}

// Stats returns a point-in-time pending snapshot without running a sync
func (e *Engine) Stats() Stats {
	counts, err := e.local.PendingCounts()
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to count pending entities")
		return Stats{}
	}
	return Stats{TotalPending: counts.Wallets + counts.Transactions}
}

// Sync runs one reconciliation pass: pull remote changes, recompute pending
// counts, push wallets, then push dependent transactions. It is a no-op
// returning stale stats when a run is already active or connectivity is
// unavailable. The engine always returns to Idle, whichever branch executed.
func (e *Engine) Sync(ctx context.Context) Stats {
	if !e.conn.IsOnline() {
		return e.Stats()
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return e.Stats()
	}
	e.syncing = true
	handlers := e.handlers
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	if handlers.OnSyncStart != nil {
		handlers.OnSyncStart()
	}

	stats := Stats{}
	if err := e.run(ctx, handlers, &stats); err != nil {
		logrus.WithField("error", err.Error()).Error("Sync run failed")
		if handlers.OnSyncError != nil {
			handlers.OnSyncError(err)
		}
		return stats
	}

	now := time.Now().UTC()
	stats.LastSyncAt = &now
	logrus.WithFields(logrus.Fields{
		"total_pending": stats.TotalPending,
		"synced":        stats.Synced,
		"failed":        stats.Failed,
		"conflicts":     stats.Conflicts,
	}).Info("Sync completed")
	if handlers.OnSyncComplete != nil {
		handlers.OnSyncComplete(stats)
	}
	return stats
}

// run executes the fixed phase order. Per-entity failures land in stats;
// only orchestration-level errors are returned.
func (e *Engine) run(ctx context.Context, handlers Handlers, stats *Stats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
	}()

	// Pull first so the push phase works against fresh remote state.
	e.pullWallets(ctx, handlers, stats)
	e.pullTransactions(ctx, handlers, stats)

	counts, err := e.local.PendingCounts()
	if err != nil {
		return fmt.Errorf("counting pending entities: %w", err)
	}
	stats.TotalPending = counts.Wallets + counts.Transactions

	// Wallets must fully complete before dependent transactions begin, to
	// keep remote referential integrity.
	done := 0
	if err := e.pushWallets(ctx, handlers, stats, &done); err != nil {
		return err
	}
	if err := e.pushTransactions(ctx, handlers, stats, &done); err != nil {
		return err
	}
	return nil
}

// emitConflict notifies observers and counts the conflict
func (e *Engine) emitConflict(handlers Handlers, stats *Stats, res Resolution) {
	stats.Conflicts++
	logrus.WithFields(logrus.Fields{
		"strategy": string(res.Strategy),
		"details":  res.Details,
	}).Warn("Sync conflict detected")
	if handlers.OnConflict != nil {
		handlers.OnConflict(res)
	}
}

// emitProgress reports push progress after each entity
func (e *Engine) emitProgress(handlers Handlers, done, total int) {
	if handlers.OnProgress != nil {
		handlers.OnProgress(done, total)
	}
}
