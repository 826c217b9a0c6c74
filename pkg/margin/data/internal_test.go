package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/cache"
	"github.com/code-payments/vault-server/pkg/margin/data/vault"
	vault_memory_client "github.com/code-payments/vault-server/pkg/margin/data/vault/memory"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
)

func newCachingProvider() *DatabaseProvider {
	return &DatabaseProvider{
		vaults:     vault_memory_client.New(),
		vaultCache: cache.New[string, *vaultCacheEntry](10),
	}
}

func newVaultRecord(state lifecycle.State) *vault.Record {
	return &vault.Record{
		Owner:          "owner",
		Vault:          "vault",
		VaultUsdc:      "vault_usdc",
		DriftUser:      "drift_user",
		DriftUserStats: "drift_user_stats",
		State:          state,
	}
}

func TestVaultCache_ServesWithinTTL(t *testing.T) {
	ctx := context.Background()
	dp := newCachingProvider()

	_, err := dp.GetVaultByOwner(ctx, "owner")
	assert.Equal(t, vault.ErrNotFound, err)
	_, ok := dp.vaultCache.Retrieve("owner")
	assert.False(t, ok)

	require.NoError(t, dp.SaveVault(ctx, newVaultRecord(lifecycle.StateActive)))

	cached, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateActive, cached.State)

	// Writes that bypass the provider aren't observed until the entry expires.
	stored, err := dp.vaults.GetByOwner(ctx, "owner")
	require.NoError(t, err)
	stored.State = lifecycle.StateClosed
	require.NoError(t, dp.vaults.Save(ctx, stored))

	actual, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateActive, actual.State)

	entry, ok := dp.vaultCache.Retrieve("owner")
	require.True(t, ok)
	entry.lastUpdatedAt = time.Now().Add(-vaultCacheTTL)

	actual, err = dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateClosed, actual.State)
}

func TestVaultCache_SaveRefreshesEntry(t *testing.T) {
	ctx := context.Background()
	dp := newCachingProvider()

	record := newVaultRecord(lifecycle.StateActive)
	require.NoError(t, dp.SaveVault(ctx, record))
	_, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)

	record.State = lifecycle.StateClosed
	require.NoError(t, dp.SaveVault(ctx, record))

	actual, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateClosed, actual.State)
	assert.Equal(t, record.Version, actual.Version)
}

func TestVaultCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	dp := newCachingProvider()

	require.NoError(t, dp.SaveVault(ctx, newVaultRecord(lifecycle.StateActive)))

	first, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	first.State = lifecycle.StateClosed

	second, err := dp.GetVaultByOwner(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateActive, second.State)
}
