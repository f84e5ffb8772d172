package sync

import (
	"time" // Updated-at comparison

	"capital_flux/internal/domain" // Wallet-specific merge
)

// Strategy selects how a conflict is resolved
type Strategy string

// Resolution strategies
const (
	StrategyServerWins Strategy = "server_wins" // Remote version wins unconditionally (default)
	StrategyClientWins Strategy = "client_wins" // Local version wins unconditionally
	StrategyMerge      Strategy = "merge"       // Field-level merge for wallets, whole-entity pick for transactions
)

// Entity is the capability set shared by both syncable types
type Entity interface {
	EntityID() string      // Permanent local id
	RemoteID() string      // Server id, "" when never pushed
	ModifiedAt() time.Time // Last local mutation timestamp
}

// Resolution is the outcome of resolving one conflict
type Resolution struct {
	Strategy Strategy // Strategy that produced the result
	Resolved Entity   // Winning (possibly merged) version
	Details  string   // Human-readable explanation
}

// DetectConflict reports whether the local entity diverges from the remote
// version stamped serverUpdatedAt. A never-synced entity cannot conflict
// (it can only be a duplicate-creation race, handled by correlation-id
// matching during push). Equal timestamps are not a conflict: at parity the
// remote copy is authoritative.
func DetectConflict(local Entity, serverUpdatedAt time.Time) bool {
	if local.RemoteID() == "" {
		return false
	}
	return local.ModifiedAt().After(serverUpdatedAt)
}

// ResolveConflict decides which version of an entity wins. It never mutates
// its inputs and performs no I/O.
func ResolveConflict(local, remote Entity, strategy Strategy) Resolution {
	switch strategy {
	case StrategyClientWins:
		return Resolution{
			Strategy: StrategyClientWins,
			Resolved: local,
			Details:  "local version preserved for " + string(entityTypeOf(local)),
		}
	case StrategyMerge:
		return resolveWithMerge(local, remote)
	default:
		return Resolution{
			Strategy: StrategyServerWins,
			Resolved: remote,
			Details:  "server version used for " + string(entityTypeOf(local)),
		}
	}
}

// resolveWithMerge merges wallets field by field and picks transactions
// whole. Wallet balance always comes from the remote side: it is a derived
// aggregate that only the authoritative store can reconcile safely.
func resolveWithMerge(local, remote Entity) Resolution {
	lw, lok := local.(domain.Wallet)
	rw, rok := remote.(domain.Wallet)
	if lok && rok {
		merged := rw
		if lw.UpdatedAt.After(rw.UpdatedAt) {
			merged.Name = lw.Name
			merged.Icon = lw.Icon
			merged.Color = lw.Color
		}
		merged.Balance = rw.Balance
		return Resolution{
			Strategy: StrategyMerge,
			Resolved: merged,
			Details:  "wallet metadata from newer version, balance from server",
		}
	}

	// Transactions are atomic records: the later side wins in full, ties
	// fall to the remote.
	if local.ModifiedAt().After(remote.ModifiedAt()) {
		return Resolution{
			Strategy: StrategyMerge,
			Resolved: local,
			Details:  "local version is newer, keeping local changes",
		}
	}
	return Resolution{
		Strategy: StrategyMerge,
		Resolved: remote,
		Details:  "server version is newer, keeping server changes",
	}
}

// entityTypeOf names the concrete type behind an Entity
func entityTypeOf(e Entity) EntityType {
	if _, ok := e.(domain.Wallet); ok {
		return EntityWallet
	}
	return EntityTransaction
}
