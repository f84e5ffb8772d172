package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"capital_flux/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocal is an in-memory LocalStore
type fakeLocal struct {
	wallets   []*domain.Wallet
	txs       []*domain.Transaction
	lastSync  *time.Time
	countsErr error
}

func (f *fakeLocal) PendingWallets() ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range f.wallets {
		if w.PendingSync {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeLocal) PendingTransactions() ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.PendingSync {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeLocal) WalletByID(id string) (*domain.Wallet, error) {
	for _, w := range f.wallets {
		if w.ID == id {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLocal) WalletByServerID(serverID string) (*domain.Wallet, error) {
	for _, w := range f.wallets {
		if w.ServerID != nil && *w.ServerID == serverID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLocal) TransactionByID(id string) (*domain.Transaction, error) {
	for _, t := range f.txs {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLocal) TransactionByServerID(serverID string) (*domain.Transaction, error) {
	for _, t := range f.txs {
		if t.ServerID != nil && *t.ServerID == serverID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLocal) ActiveWallets() ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range f.wallets {
		if w.IsActive {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeLocal) MarkWalletSynced(id, serverID string) error {
	for _, w := range f.wallets {
		if w.ID == id {
			sid := serverID
			w.ServerID = &sid
			w.PendingSync = false
			return nil
		}
	}
	return fmt.Errorf("wallet %s not found", id)
}

func (f *fakeLocal) MarkTransactionSynced(id, serverID string) error {
	for _, t := range f.txs {
		if t.ID == id {
			sid := serverID
			t.ServerID = &sid
			t.PendingSync = false
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

func (f *fakeLocal) UpsertWalletFromServer(rec WalletRecord) (*domain.Wallet, error) {
	apply := func(w *domain.Wallet) {
		sid := rec.ID
		w.ServerID = &sid
		w.Name = rec.Name
		w.Currency = domain.Currency(rec.Currency)
		w.Balance = rec.Balance
		w.Icon = rec.Icon
		w.Color = rec.Color
		w.IsActive = rec.IsActive
		w.PendingSync = false
		w.UpdatedAt = rec.UpdatedAt
	}
	if rec.ClientID != nil {
		for _, w := range f.wallets {
			if w.ID == *rec.ClientID {
				apply(w)
				cp := *w
				return &cp, nil
			}
		}
	}
	for _, w := range f.wallets {
		if w.ServerID != nil && *w.ServerID == rec.ID {
			apply(w)
			cp := *w
			return &cp, nil
		}
	}
	w := &domain.Wallet{ID: "pulled-" + rec.ID}
	apply(w)
	f.wallets = append(f.wallets, w)
	cp := *w
	return &cp, nil
}

func (f *fakeLocal) UpsertTransactionFromServer(rec TransactionRecord, localWalletID string) (*domain.Transaction, error) {
	apply := func(t *domain.Transaction) {
		sid := rec.ID
		t.ServerID = &sid
		t.WalletID = localWalletID
		t.Type = domain.TransactionType(rec.Type)
		t.Amount = rec.Amount
		t.Currency = domain.Currency(rec.Currency)
		t.Date = rec.Date
		t.PendingSync = false
		t.UpdatedAt = rec.UpdatedAt
	}
	if rec.ClientID != nil {
		for _, t := range f.txs {
			if t.ID == *rec.ClientID {
				apply(t)
				cp := *t
				return &cp, nil
			}
		}
	}
	for _, t := range f.txs {
		if t.ServerID != nil && *t.ServerID == rec.ID {
			apply(t)
			cp := *t
			return &cp, nil
		}
	}
	t := &domain.Transaction{ID: "pulled-" + rec.ID}
	apply(t)
	f.txs = append(f.txs, t)
	cp := *t
	return &cp, nil
}

func (f *fakeLocal) PendingCounts() (PendingCounts, error) {
	var counts PendingCounts
	if f.countsErr != nil {
		return counts, f.countsErr
	}
	for _, w := range f.wallets {
		if w.PendingSync {
			counts.Wallets++
		}
	}
	for _, t := range f.txs {
		if t.PendingSync {
			counts.Transactions++
		}
	}
	return counts, nil
}

func (f *fakeLocal) LastSyncTimestamp() (*time.Time, error) {
	return f.lastSync, nil
}

// fakeRemote is an in-memory RemoteStore
type fakeRemote struct {
	pullWallets []WalletRecord
	pullTxs     []TransactionRecord
	stamps      map[string]time.Time

	nextID          int
	insertedWallets []WalletRecord
	insertedTxs     []TransactionRecord
	updatedWallets  map[string]WalletRecord
	updatedTxs      map[string]TransactionRecord

	failWalletInsert bool
	listErr          error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		stamps:         make(map[string]time.Time),
		updatedWallets: make(map[string]WalletRecord),
		updatedTxs:     make(map[string]TransactionRecord),
	}
}

func (f *fakeRemote) WalletsUpdatedSince(_ context.Context, _ *time.Time) ([]WalletRecord, error) {
	return f.pullWallets, f.listErr
}

func (f *fakeRemote) TransactionsUpdatedSince(_ context.Context, _ *time.Time) ([]TransactionRecord, error) {
	return f.pullTxs, f.listErr
}

func (f *fakeRemote) WalletUpdatedAt(_ context.Context, serverID string) (*time.Time, error) {
	if stamp, ok := f.stamps[serverID]; ok {
		return &stamp, nil
	}
	return nil, nil
}

func (f *fakeRemote) InsertWallet(_ context.Context, rec WalletRecord) (string, error) {
	if f.failWalletInsert {
		return "", fmt.Errorf("insert rejected")
	}
	f.nextID++
	f.insertedWallets = append(f.insertedWallets, rec)
	return fmt.Sprintf("srv-w-%d", f.nextID), nil
}

func (f *fakeRemote) UpdateWallet(_ context.Context, serverID string, rec WalletRecord) error {
	f.updatedWallets[serverID] = rec
	return nil
}

func (f *fakeRemote) InsertTransaction(_ context.Context, rec TransactionRecord) (string, error) {
	f.nextID++
	f.insertedTxs = append(f.insertedTxs, rec)
	return fmt.Sprintf("srv-t-%d", f.nextID), nil
}

func (f *fakeRemote) UpdateTransaction(_ context.Context, serverID string, rec TransactionRecord) error {
	f.updatedTxs[serverID] = rec
	return nil
}

// fakeConn is a scriptable Connectivity
type fakeConn struct {
	online bool
	fns    []func(bool)
}

func (f *fakeConn) IsOnline() bool { return f.online }

func (f *fakeConn) OnChange(fn func(online bool)) func() {
	f.fns = append(f.fns, fn)
	return func() {}
}

func (f *fakeConn) fire(online bool) {
	for _, fn := range f.fns {
		fn(online)
	}
}

// fakeIdentity is a scriptable Identity
type fakeIdentity struct{ ok bool }

func (f *fakeIdentity) CurrentUserID() (string, bool) { return "user-1", f.ok }

func pendingWallet(id string) *domain.Wallet {
	return &domain.Wallet{
		ID:          id,
		Name:        "Cash",
		Currency:    domain.CurrencyUSD,
		Balance:     decimal.NewFromInt(100),
		IsActive:    true,
		PendingSync: true,
		UpdatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func pendingTransaction(id, walletID string) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		WalletID:    walletID,
		Type:        domain.TypeExpense,
		Amount:      decimal.NewFromInt(25),
		Currency:    domain.CurrencyUSD,
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PendingSync: true,
		UpdatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(local *fakeLocal, remote *fakeRemote, conn *fakeConn, identity *fakeIdentity) *Engine {
	return NewEngine(DefaultConfig(), local, remote, conn, identity)
}

func TestSyncOfflineIsANoOp(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: false}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.TotalPending)
	assert.Zero(t, stats.Synced)
	assert.Nil(t, stats.LastSyncAt)
	assert.Empty(t, remote.insertedWallets, "offline sync must not touch the remote store")
}

func TestSyncPushesNewWalletWithCorrelationToken(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.Synced)
	assert.Zero(t, stats.Failed)
	require.NotNil(t, stats.LastSyncAt)

	require.Len(t, remote.insertedWallets, 1)
	require.NotNil(t, remote.insertedWallets[0].ClientID)
	assert.Equal(t, "w1", *remote.insertedWallets[0].ClientID)

	w, err := local.WalletByID("w1")
	require.NoError(t, err)
	require.NotNil(t, w.ServerID)
	assert.Equal(t, "srv-w-1", *w.ServerID)
	assert.False(t, w.PendingSync)
}

func TestSyncUpdatesAlreadyPushedWallet(t *testing.T) {
	w := pendingWallet("w1")
	sid := "srv-w-9"
	w.ServerID = &sid
	local := &fakeLocal{wallets: []*domain.Wallet{w}}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.Synced)
	assert.Empty(t, remote.insertedWallets)
	_, updated := remote.updatedWallets["srv-w-9"]
	assert.True(t, updated)
	got, _ := local.WalletByID("w1")
	assert.False(t, got.PendingSync)
}

func TestSyncWithoutIdentityFailsEveryEntity(t *testing.T) {
	local := &fakeLocal{
		wallets: []*domain.Wallet{pendingWallet("w1")},
		txs:     []*domain.Transaction{pendingTransaction("t1", "w1")},
	}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: false})

	stats := engine.Sync(context.Background())

	assert.Zero(t, stats.Synced)
	assert.Equal(t, 2, stats.Failed)
	assert.Empty(t, remote.insertedWallets)
	assert.Empty(t, remote.insertedTxs)
}

func TestSyncPushesParentWalletBeforeTransaction(t *testing.T) {
	local := &fakeLocal{
		wallets: []*domain.Wallet{pendingWallet("w1")},
		txs:     []*domain.Transaction{pendingTransaction("t1", "w1")},
	}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 2, stats.Synced)
	require.Len(t, remote.insertedTxs, 1)
	// The transaction wire record must reference the wallet's server id
	assert.Equal(t, "srv-w-1", remote.insertedTxs[0].WalletID)
}

func TestSyncParentWalletFailureFailsTransaction(t *testing.T) {
	local := &fakeLocal{
		wallets: []*domain.Wallet{pendingWallet("w1")},
		txs:     []*domain.Transaction{pendingTransaction("t1", "w1")},
	}
	remote := newFakeRemote()
	remote.failWalletInsert = true
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Zero(t, stats.Synced)
	// Wallet fails in its own phase, then again as the transaction's parent
	assert.Equal(t, 2, stats.Failed)
	assert.Empty(t, remote.insertedTxs, "transaction must not reach the remote without its wallet")
	tx, _ := local.TransactionByID("t1")
	assert.True(t, tx.PendingSync)
}

func TestSyncPullsRemoteWallet(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.pullWallets = []WalletRecord{{
		ID:        "srv-w-5",
		Name:      "Savings",
		Currency:  "EUR",
		Balance:   decimal.NewFromInt(500),
		IsActive:  true,
		UpdatedAt: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}}
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Zero(t, stats.Failed)
	w, err := local.WalletByServerID("srv-w-5")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "Savings", w.Name)
	assert.False(t, w.PendingSync)
}

func TestSyncPullConflictSkipsLocalRow(t *testing.T) {
	w := pendingWallet("w1")
	sid := "srv-w-5"
	w.ServerID = &sid
	w.Name = "Local Name"
	local := &fakeLocal{wallets: []*domain.Wallet{w}}

	remote := newFakeRemote()
	remote.pullWallets = []WalletRecord{{
		ID:        "srv-w-5",
		Name:      "Remote Name",
		Currency:  "USD",
		IsActive:  true,
		UpdatedAt: w.UpdatedAt.Add(-time.Hour), // Local edit is newer
	}}
	// No identity: the push phase cannot clear the pending flag
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: false})

	var conflicts []Resolution
	engine.SetHandlers(Handlers{OnConflict: func(res Resolution) { conflicts = append(conflicts, res) }})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.Conflicts)
	require.Len(t, conflicts, 1)
	got, _ := local.WalletByID("w1")
	assert.Equal(t, "Local Name", got.Name, "conflicting local row must be left untouched this cycle")
	assert.True(t, got.PendingSync)
}

func TestSyncPullOrphanTransactionFails(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.pullTxs = []TransactionRecord{{
		ID:        "srv-t-1",
		WalletID:  "srv-w-unknown",
		Type:      "expense",
		Amount:    decimal.NewFromInt(10),
		Currency:  "USD",
		Date:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}}
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.Failed)
	tx, _ := local.TransactionByServerID("srv-t-1")
	assert.Nil(t, tx, "an orphan row must never materialize locally")
}

func TestSyncIsIdempotent(t *testing.T) {
	local := &fakeLocal{
		wallets: []*domain.Wallet{pendingWallet("w1")},
		txs:     []*domain.Transaction{pendingTransaction("t1", "w1")},
	}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	first := engine.Sync(context.Background())
	assert.Equal(t, 2, first.Synced)

	second := engine.Sync(context.Background())
	assert.Zero(t, second.TotalPending)
	assert.Zero(t, second.Synced)
	assert.Zero(t, second.Failed)
	assert.Len(t, remote.insertedWallets, 1, "a confirmed wallet must not be pushed again")
	assert.Len(t, remote.insertedTxs, 1)
}

func TestSyncReentrantCallIsANoOp(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	remote := newFakeRemote()
	conn := &fakeConn{online: true}
	engine := newTestEngine(local, remote, conn, &fakeIdentity{ok: true})

	var inner Stats
	engine.SetHandlers(Handlers{OnSyncStart: func() {
		// A second Sync while one is running must collapse into a snapshot
		inner = engine.Sync(context.Background())
	}})

	stats := engine.Sync(context.Background())

	assert.Equal(t, 1, stats.Synced)
	assert.Nil(t, inner.LastSyncAt)
	assert.Len(t, remote.insertedWallets, 1)
}

func TestSyncRunErrorFiresHandlerAndReturnsToIdle(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	local.countsErr = fmt.Errorf("database is locked")
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	var gotErr error
	var completed bool
	engine.SetHandlers(Handlers{
		OnSyncError:    func(err error) { gotErr = err },
		OnSyncComplete: func(Stats) { completed = true },
	})

	stats := engine.Sync(context.Background())

	require.Error(t, gotErr)
	assert.False(t, completed)
	assert.Nil(t, stats.LastSyncAt)
	assert.Empty(t, remote.insertedWallets, "the push phase must not run after the counting error")

	// The engine must be Idle again: the next run proceeds normally
	local.countsErr = nil
	stats = engine.Sync(context.Background())
	assert.Equal(t, 1, stats.Synced)
	require.NotNil(t, stats.LastSyncAt)
	assert.True(t, completed)
	assert.Len(t, remote.insertedWallets, 1)
}

func TestSyncPullListingFailureSkipsPhaseAndContinues(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	remote := newFakeRemote()
	remote.listErr = fmt.Errorf("server returned 500")
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	var runErr error
	engine.SetHandlers(Handlers{OnSyncError: func(err error) { runErr = err }})

	stats := engine.Sync(context.Background())

	// A listing failure skips the pull phase for this cycle only; the push
	// still proceeds and the run completes
	assert.NoError(t, runErr)
	assert.Equal(t, 1, stats.Synced)
	assert.Zero(t, stats.Failed)
	require.NotNil(t, stats.LastSyncAt)

	// The next cycle retries the pull window and merges the remote row
	remote.listErr = nil
	remote.pullWallets = []WalletRecord{{
		ID:        "srv-w-9",
		Name:      "Remote",
		Currency:  "USD",
		IsActive:  true,
		UpdatedAt: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}}
	engine.Sync(context.Background())
	w, err := local.WalletByServerID("srv-w-9")
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestInitializeSyncsOnReconnect(t *testing.T) {
	local := &fakeLocal{wallets: []*domain.Wallet{pendingWallet("w1")}}
	remote := newFakeRemote()
	conn := &fakeConn{online: true}
	engine := newTestEngine(local, remote, conn, &fakeIdentity{ok: true})
	engine.Initialize()
	defer engine.Destroy()

	conn.fire(true)

	assert.Len(t, remote.insertedWallets, 1)
	w, _ := local.WalletByID("w1")
	assert.False(t, w.PendingSync)
}

func TestStatsReportsPendingWithoutSyncing(t *testing.T) {
	local := &fakeLocal{
		wallets: []*domain.Wallet{pendingWallet("w1"), pendingWallet("w2")},
		txs:     []*domain.Transaction{pendingTransaction("t1", "w1")},
	}
	remote := newFakeRemote()
	engine := newTestEngine(local, remote, &fakeConn{online: true}, &fakeIdentity{ok: true})

	stats := engine.Stats()

	assert.Equal(t, 3, stats.TotalPending)
	assert.Empty(t, remote.insertedWallets)
}
