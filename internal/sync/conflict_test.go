package sync

import (
	"testing"
	"time"

	"capital_flux/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testWallet(serverID string, updatedAt time.Time) domain.Wallet {
	w := domain.Wallet{
		ID:        "local-wallet-1",
		Name:      "Cash",
		Currency:  domain.CurrencyUSD,
		Balance:   decimal.NewFromInt(100),
		Icon:      "wallet",
		Color:     "#10B981",
		IsActive:  true,
		UpdatedAt: updatedAt,
	}
	if serverID != "" {
		w.ServerID = strPtr(serverID)
	}
	return w
}

func testTransaction(serverID string, updatedAt time.Time) domain.Transaction {
	t := domain.Transaction{
		ID:        "local-tx-1",
		WalletID:  "local-wallet-1",
		Type:      domain.TypeExpense,
		Amount:    decimal.NewFromInt(25),
		Currency:  domain.CurrencyUSD,
		Date:      updatedAt,
		UpdatedAt: updatedAt,
	}
	if serverID != "" {
		t.ServerID = strPtr(serverID)
	}
	return t
}

func TestDetectConflict(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("never-synced entity cannot conflict", func(t *testing.T) {
		w := testWallet("", base.Add(time.Hour))
		assert.False(t, DetectConflict(w, base))
	})

	t.Run("local strictly after remote is a conflict", func(t *testing.T) {
		w := testWallet("srv-1", base.Add(time.Second))
		assert.True(t, DetectConflict(w, base))
	})

	t.Run("local before remote is not a conflict", func(t *testing.T) {
		w := testWallet("srv-1", base.Add(-time.Second))
		assert.False(t, DetectConflict(w, base))
	})

	t.Run("equal timestamps are not a conflict", func(t *testing.T) {
		w := testWallet("srv-1", base)
		assert.False(t, DetectConflict(w, base))
	})

	t.Run("applies to transactions too", func(t *testing.T) {
		tx := testTransaction("srv-tx-1", base.Add(time.Minute))
		assert.True(t, DetectConflict(tx, base))
		tx = testTransaction("", base.Add(time.Minute))
		assert.False(t, DetectConflict(tx, base))
	})
}

func TestResolveConflictServerWins(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	local := testWallet("srv-1", base.Add(time.Hour))
	remote := testWallet("srv-1", base)
	remote.Name = "Remote Cash"

	res := ResolveConflict(local, remote, StrategyServerWins)
	require.Equal(t, StrategyServerWins, res.Strategy)
	resolved, ok := res.Resolved.(domain.Wallet)
	require.True(t, ok)
	assert.Equal(t, "Remote Cash", resolved.Name)
}

func TestResolveConflictClientWins(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	local := testWallet("srv-1", base)
	local.Name = "Local Cash"
	remote := testWallet("srv-1", base.Add(time.Hour))

	res := ResolveConflict(local, remote, StrategyClientWins)
	require.Equal(t, StrategyClientWins, res.Strategy)
	resolved, ok := res.Resolved.(domain.Wallet)
	require.True(t, ok)
	assert.Equal(t, "Local Cash", resolved.Name)
}

func TestResolveConflictMergeWallet(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newer local metadata wins, balance stays remote", func(t *testing.T) {
		local := testWallet("srv-1", base.Add(time.Hour))
		local.Name = "Renamed"
		local.Icon = "card"
		local.Color = "#FF0000"
		local.Balance = decimal.NewFromInt(999)
		remote := testWallet("srv-1", base)
		remote.Balance = decimal.NewFromInt(150)

		res := ResolveConflict(local, remote, StrategyMerge)
		require.Equal(t, StrategyMerge, res.Strategy)
		merged, ok := res.Resolved.(domain.Wallet)
		require.True(t, ok)
		assert.Equal(t, "Renamed", merged.Name)
		assert.Equal(t, "card", merged.Icon)
		assert.Equal(t, "#FF0000", merged.Color)
		assert.True(t, merged.Balance.Equal(decimal.NewFromInt(150)), "balance must come from the server side")
	})

	t.Run("newer remote metadata wins, balance stays remote", func(t *testing.T) {
		local := testWallet("srv-1", base)
		local.Name = "Stale Name"
		local.Balance = decimal.NewFromInt(999)
		remote := testWallet("srv-1", base.Add(time.Hour))
		remote.Name = "Fresh Name"
		remote.Balance = decimal.NewFromInt(150)

		res := ResolveConflict(local, remote, StrategyMerge)
		merged, ok := res.Resolved.(domain.Wallet)
		require.True(t, ok)
		assert.Equal(t, "Fresh Name", merged.Name)
		assert.True(t, merged.Balance.Equal(decimal.NewFromInt(150)))
	})
}

func TestResolveConflictMergeTransaction(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newer local wins in full", func(t *testing.T) {
		local := testTransaction("srv-tx-1", base.Add(time.Hour))
		local.Amount = decimal.NewFromInt(50)
		remote := testTransaction("srv-tx-1", base)
		remote.Amount = decimal.NewFromInt(25)

		res := ResolveConflict(local, remote, StrategyMerge)
		resolved, ok := res.Resolved.(domain.Transaction)
		require.True(t, ok)
		assert.True(t, resolved.Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("ties fall to the remote side", func(t *testing.T) {
		local := testTransaction("srv-tx-1", base)
		local.Amount = decimal.NewFromInt(50)
		remote := testTransaction("srv-tx-1", base)
		remote.Amount = decimal.NewFromInt(25)

		res := ResolveConflict(local, remote, StrategyMerge)
		resolved, ok := res.Resolved.(domain.Transaction)
		require.True(t, ok)
		assert.True(t, resolved.Amount.Equal(decimal.NewFromInt(25)))
	})
}

func TestResolveConflictUnknownStrategyDefaultsToServer(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	local := testWallet("srv-1", base)
	remote := testWallet("srv-1", base)
	remote.Name = "Remote"

	res := ResolveConflict(local, remote, Strategy("bogus"))
	assert.Equal(t, StrategyServerWins, res.Strategy)
	resolved := res.Resolved.(domain.Wallet)
	assert.Equal(t, "Remote", resolved.Name)
}
