// Package sync implements the offline-first reconciliation engine: it
// pushes locally pending wallets and transactions to the remote store and
// pulls remote changes back into local storage, resolving conflicts by
// updated-at ordering.
package sync

import (
	"context" // Remote calls are cancellable
	"errors"  // Sentinel error taxonomy
	"time"    // Sync watermarks and stamps

	"capital_flux/internal/domain" // Entity model

	"github.com/shopspring/decimal" // Amounts on the wire
)

// EntityType names the two syncable aggregate types
type EntityType string

// Syncable entity types
const (
	EntityWallet      EntityType = "wallet"
	EntityTransaction EntityType = "transaction"
)

// Error taxonomy. Per-entity failures carry one of these; none of them
// aborts sibling entities or the batch.
var (
	// ErrNotAuthenticated means no principal was available at sync time
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrRemoteRejected means a remote insert or update call failed
	ErrRemoteRejected = errors.New("remote store rejected the write")
	// ErrParentSyncFailed means a transaction's wallet could not be synced first
	ErrParentSyncFailed = errors.New("failed to sync parent wallet")
	// ErrOrphanReference means a pulled transaction's wallet cannot be resolved locally
	ErrOrphanReference = errors.New("wallet not found locally")
)

// WalletRecord is the wire shape of a wallet row on the remote store
type WalletRecord struct {
	ID        string          `json:"id"`         // Server-assigned id
	ClientID  *string         `json:"client_id"`  // Correlation token from the originating client
	Name      string          `json:"name"`       // Display name
	Currency  string          `json:"currency"`   // Currency code
	Balance   decimal.Decimal `json:"balance"`    // Authoritative balance
	Icon      string          `json:"icon"`       // Presentation metadata
	Color     string          `json:"color"`      // Presentation metadata
	IsActive  bool            `json:"is_active"`  // Soft-delete flag
	UpdatedAt time.Time       `json:"updated_at"` // Server-side stamp
}

// TransactionRecord is the wire shape of a transaction row on the remote
// store. WalletID is the server id of the parent wallet.
type TransactionRecord struct {
	ID             string           `json:"id"`              // Server-assigned id
	ClientID       *string          `json:"client_id"`       // Correlation token from the originating client
	WalletID       string           `json:"wallet_id"`       // Server id of the parent wallet
	CategoryID     *string          `json:"category_id"`     // Optional category
	Type           string           `json:"type"`            // income, expense or transfer
	Amount         decimal.Decimal  `json:"amount"`          // Non-negative magnitude
	Currency       string           `json:"currency"`        // Currency code
	OriginalAmount *decimal.Decimal `json:"original_amount"` // FX metadata
	ExchangeRate   *decimal.Decimal `json:"exchange_rate"`   // FX metadata
	RateSource     *string          `json:"rate_source"`     // FX metadata
	Description    *string          `json:"description"`     // Free-form note
	Date           time.Time        `json:"date"`            // Business date
	UpdatedAt      time.Time        `json:"updated_at"`      // Server-side stamp
}

// Result reports the outcome of pushing a single entity
type Result struct {
	Success    bool       // Whether the entity reached the remote store
	EntityType EntityType // wallet or transaction
	EntityID   string     // Local id of the entity
	ServerID   string     // Server id, when known
	Err        error      // Per-entity failure, nil on success
}

// PullResult reports the outcome of merging a single remote row
type PullResult struct {
	Success    bool       // Whether the row was merged locally
	EntityType EntityType // wallet or transaction
	ServerID   string     // Server id of the remote row
	Err        error      // Per-row failure, nil on success
}

// Stats aggregates a sync run
type Stats struct {
	TotalPending int        `json:"totalPending"` // Pending entities at the start of the push phase
	Synced       int        `json:"synced"`       // Entities confirmed by the remote store
	Failed       int        `json:"failed"`       // Per-entity failures (push and pull)
	Conflicts    int        `json:"conflicts"`    // Conflict notifications emitted
	LastSyncAt   *time.Time `json:"lastSyncAt"`   // Completion time of this run, nil if it never ran
}

// PendingCounts is a point-in-time snapshot of unsynced local rows
type PendingCounts struct {
	Wallets      int `json:"wallets"`
	Transactions int `json:"transactions"`
}

// Config tunes the engine
type Config struct {
	SyncOnReconnect bool     // Trigger a sync when connectivity returns
	PullStrategy    Strategy // Resolution strategy applied on pull-side conflicts
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		SyncOnReconnect: true,
		PullStrategy:    StrategyServerWins,
	}
}

// Handlers are optional callbacks fired during a sync run. All callbacks
// are invoked synchronously from the syncing goroutine.
type Handlers struct {
	OnSyncStart    func()                // Fired on entry to the Syncing state
	OnSyncComplete func(Stats)           // Fired when a run finishes without an orchestration error
	OnSyncError    func(error)           // Fired when the run itself fails (not per-entity failures)
	OnConflict     func(Resolution)      // Fired for every detected conflict
	OnProgress     func(done, total int) // Fired after each pushed entity
}

// LocalStore is the durable keyed store holding the client's mutable copy
type LocalStore interface {
	PendingWallets() ([]domain.Wallet, error)
	PendingTransactions() ([]domain.Transaction, error)
	WalletByID(id string) (*domain.Wallet, error)
	WalletByServerID(serverID string) (*domain.Wallet, error)
	TransactionByID(id string) (*domain.Transaction, error)
	TransactionByServerID(serverID string) (*domain.Transaction, error)
	ActiveWallets() ([]domain.Wallet, error)
	MarkWalletSynced(id, serverID string) error
	MarkTransactionSynced(id, serverID string) error
	UpsertWalletFromServer(rec WalletRecord) (*domain.Wallet, error)
	UpsertTransactionFromServer(rec TransactionRecord, localWalletID string) (*domain.Transaction, error)
	PendingCounts() (PendingCounts, error)
	LastSyncTimestamp() (*time.Time, error)
}

// RemoteStore is the authoritative shared copy, reachable over
// request/response calls and keyed by server-assigned ids
type RemoteStore interface {
	WalletsUpdatedSince(ctx context.Context, since *time.Time) ([]WalletRecord, error)
	TransactionsUpdatedSince(ctx context.Context, since *time.Time) ([]TransactionRecord, error)
	// WalletUpdatedAt returns the remote wallet's current stamp, or nil when
	// the row does not exist.
	WalletUpdatedAt(ctx context.Context, serverID string) (*time.Time, error)
	InsertWallet(ctx context.Context, rec WalletRecord) (serverID string, err error)
	UpdateWallet(ctx context.Context, serverID string, rec WalletRecord) error
	InsertTransaction(ctx context.Context, rec TransactionRecord) (serverID string, err error)
	UpdateTransaction(ctx context.Context, serverID string, rec TransactionRecord) error
}

// Connectivity is the "is the network reachable" collaborator
type Connectivity interface {
	IsOnline() bool
	// OnChange subscribes to reachability transitions and returns an
	// unsubscribe func.
	OnChange(fn func(online bool)) (unsubscribe func())
}

// Identity resolves the current authenticated principal
type Identity interface {
	// CurrentUserID returns the principal id, or ok=false when nobody is
	// authenticated.
	CurrentUserID() (id string, ok bool)
}
