package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/memory"
	"github.com/code-payments/vault-server/pkg/solana/vault"
	"github.com/code-payments/vault-server/pkg/testutil"
)

func TestGetSnapshot(t *testing.T) {
	ledger := memory.NewLedger()

	owner := testutil.NewRandomAccount(t)
	accounts, err := owner.GetVaultAccounts(testutil.NewRandomVaultConfig(t))
	require.NoError(t, err)

	snapshot, err := GetSnapshot(ledger, solana.CommitmentFinalized, accounts)
	require.NoError(t, err)
	assert.Nil(t, snapshot.Vault)
	assert.Nil(t, snapshot.DriftUser)
	assert.Equal(t, StateUninitialized, snapshot.State(false))

	vaultAccount := &vault.VaultAccount{
		Owner:        owner.PublicKey().ToBytes(),
		StakeAccount: testutil.NewRandomAccount(t).PublicKey().ToBytes(),
		Bump:         accounts.VaultBump,
		UsdcBump:     accounts.VaultUsdcBump,
	}
	ledger.SetAccount(accounts.Vault.PublicKey().ToBytes(), &memory.Account{
		Lamports: 1,
		Owner:    vault.PROGRAM_ID,
		Data:     vaultAccount.Marshal(),
	})

	snapshot, err = GetSnapshot(ledger, solana.CommitmentFinalized, accounts)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Vault)
	assert.EqualValues(t, owner.PublicKey().ToBytes(), snapshot.Vault.Owner)
	assert.Equal(t, StateRegistered, snapshot.State(true))

	driftUser := &drift.UserAccount{
		Authority: accounts.Vault.PublicKey().ToBytes(),
		Delegate:  make([]byte, 32),
	}
	driftUser.SpotPositions[0] = drift.SpotPosition{
		ScaledBalance: 10,
		MarketIndex:   drift.MarketIndexUsdc,
		BalanceType:   drift.SpotBalanceTypeDeposit,
	}
	ledger.SetAccount(accounts.DriftUser.PublicKey().ToBytes(), &memory.Account{
		Lamports: 1,
		Owner:    drift.PROGRAM_ID,
		Data:     driftUser.Marshal(),
	})

	snapshot, err = GetSnapshot(ledger, solana.CommitmentFinalized, accounts)
	require.NoError(t, err)
	require.NotNil(t, snapshot.DriftUser)
	assert.Equal(t, StateActive, snapshot.State(true))
}

func TestGetSnapshot_WrongOwner(t *testing.T) {
	ledger := memory.NewLedger()

	accounts, err := testutil.NewRandomAccount(t).GetVaultAccounts(&common.VaultConfig{UsdcMint: common.UsdcMintDevnetAccount})
	require.NoError(t, err)

	ledger.SetAccount(accounts.Vault.PublicKey().ToBytes(), &memory.Account{
		Lamports: 1,
		Owner:    drift.PROGRAM_ID,
		Data:     make([]byte, vault.VaultAccountSize),
	})

	_, err = GetSnapshot(ledger, solana.CommitmentFinalized, accounts)
	assert.Error(t, err)
}
