package common

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

func TestAccount_FromPublicKey(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromBytes, err := NewAccountFromPublicKeyBytes(publicKey)
	require.NoError(t, err)
	fromString, err := NewAccountFromPublicKeyString(base58.Encode(publicKey))
	require.NoError(t, err)

	for _, account := range []*Account{fromBytes, fromString} {
		assert.EqualValues(t, publicKey, account.PublicKey().ToBytes())
		assert.Equal(t, base58.Encode(publicKey), account.String())
		assert.Nil(t, account.PrivateKey())
		assert.True(t, account.IsOnCurve())

		_, err = account.Sign([]byte("payload"))
		assert.Error(t, err)
	}
}

func TestAccount_FromPrivateKey(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromBytes, err := NewAccountFromPrivateKeyBytes(privateKey)
	require.NoError(t, err)
	fromString, err := NewAccountFromPrivateKeyString(base58.Encode(privateKey))
	require.NoError(t, err)

	payload := []byte("payload")
	for _, account := range []*Account{fromBytes, fromString} {
		assert.EqualValues(t, publicKey, account.PublicKey().ToBytes())
		assert.EqualValues(t, privateKey, account.PrivateKey().ToBytes())

		signature, err := account.Sign(payload)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(publicKey, payload, signature))
	}
}

func TestAccount_Invalid(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for name, construct := range map[string]func() (*Account, error){
		"public bytes":          func() (*Account, error) { return NewAccountFromPublicKeyBytes([]byte("short")) },
		"public string":         func() (*Account, error) { return NewAccountFromPublicKeyString("not-base58-0OIl") },
		"private bytes":         func() (*Account, error) { return NewAccountFromPrivateKeyBytes([]byte("short")) },
		"private string":        func() (*Account, error) { return NewAccountFromPrivateKeyString("not-base58-0OIl") },
		"public key as private": func() (*Account, error) { return NewAccountFromPrivateKeyBytes(publicKey) },
		"nil public key":        func() (*Account, error) { return NewAccountFromPublicKey(nil) },
		"nil private key":       func() (*Account, error) { return NewAccountFromPrivateKey(nil) },
	} {
		_, err := construct()
		assert.Error(t, err, name)
	}

	other := newRandomTestAccount(t)
	mismatched := &Account{publicKey: newRandomTestAccount(t).PublicKey(), privateKey: other.PrivateKey()}
	assert.Error(t, mismatched.Validate())
}

func TestGetVaultAccounts(t *testing.T) {
	config := newTestVaultConfig()
	ownerAccount := newRandomTestAccount(t)

	actual, err := ownerAccount.GetVaultAccounts(config)
	require.NoError(t, err)

	expectedVault, expectedVaultBump, err := vault.GetVaultAddress(ownerAccount.PublicKey().ToBytes())
	require.NoError(t, err)

	expectedVaultUsdc, expectedVaultUsdcBump, err := vault.GetVaultUsdcAddress(ownerAccount.PublicKey().ToBytes(), vault.USDC_MINT_DEVNET)
	require.NoError(t, err)

	expectedDriftUser, _, err := drift.GetUserAddress(expectedVault, 0)
	require.NoError(t, err)

	expectedDriftUserStats, _, err := drift.GetUserStatsAddress(expectedVault)
	require.NoError(t, err)

	assert.Equal(t, ownerAccount, actual.Owner)
	assert.EqualValues(t, expectedVault, actual.Vault.PublicKey().ToBytes())
	assert.Equal(t, expectedVaultBump, actual.VaultBump)
	assert.EqualValues(t, expectedVaultUsdc, actual.VaultUsdc.PublicKey().ToBytes())
	assert.Equal(t, expectedVaultUsdcBump, actual.VaultUsdcBump)
	assert.EqualValues(t, expectedDriftUser, actual.DriftUser.PublicKey().ToBytes())
	assert.EqualValues(t, expectedDriftUserStats, actual.DriftUserStats.PublicKey().ToBytes())
	assert.Equal(t, UsdcMintDevnetAccount, actual.UsdcMint)

	for _, derived := range actual.All() {
		assert.False(t, derived.IsOnCurve())
	}
}

func TestGetVaultAccounts_Deterministic(t *testing.T) {
	config := newTestVaultConfig()
	ownerAccount := newRandomTestAccount(t)

	first, err := ownerAccount.GetVaultAccounts(config)
	require.NoError(t, err)

	sameOwner, err := NewAccountFromPublicKeyString(ownerAccount.PublicKey().ToBase58())
	require.NoError(t, err)

	second, err := sameOwner.GetVaultAccounts(config)
	require.NoError(t, err)

	require.Len(t, second.All(), len(first.All()))
	for i := range first.All() {
		assert.Equal(t, first.All()[i].PublicKey().ToBase58(), second.All()[i].PublicKey().ToBase58())
	}
	assert.Equal(t, first.VaultBump, second.VaultBump)
	assert.Equal(t, first.VaultUsdcBump, second.VaultUsdcBump)
}

func TestGetVaultAccounts_CollisionFree(t *testing.T) {
	config := newTestVaultConfig()

	seen := make(map[string]struct{})
	for i := 0; i < 32; i++ {
		ownerAccount := newRandomTestAccount(t)
		seen[ownerAccount.PublicKey().ToBase58()] = struct{}{}

		vaultAccounts, err := ownerAccount.GetVaultAccounts(config)
		require.NoError(t, err)

		spl, err := vaultAccounts.ToVaultSpl(WrappedSolMintAccount)
		require.NoError(t, err)

		for _, derived := range append(vaultAccounts.All(), spl) {
			_, ok := seen[derived.PublicKey().ToBase58()]
			require.False(t, ok, "address collision: %s", derived.PublicKey().ToBase58())
			seen[derived.PublicKey().ToBase58()] = struct{}{}
		}
	}
}

func TestGetVaultAccounts_TagSeparation(t *testing.T) {
	ownerAccount := newRandomTestAccount(t)

	for _, config := range []*VaultConfig{
		{UsdcMint: UsdcMintDevnetAccount},
		{UsdcMint: UsdcMintMainnetAccount},
	} {
		vaultAccounts, err := ownerAccount.GetVaultAccounts(config)
		require.NoError(t, err)

		assert.NotEqual(t, vaultAccounts.Vault.PublicKey().ToBase58(), vaultAccounts.VaultUsdc.PublicKey().ToBase58())

		usdcSpl, err := vaultAccounts.ToVaultSpl(config.UsdcMint)
		require.NoError(t, err)
		assert.NotEqual(t, vaultAccounts.VaultUsdc.PublicKey().ToBase58(), usdcSpl.PublicKey().ToBase58())
	}

	devnet, err := ownerAccount.GetVaultAccounts(&VaultConfig{UsdcMint: UsdcMintDevnetAccount})
	require.NoError(t, err)
	mainnet, err := ownerAccount.GetVaultAccounts(&VaultConfig{UsdcMint: UsdcMintMainnetAccount})
	require.NoError(t, err)

	assert.Equal(t, devnet.Vault.PublicKey().ToBase58(), mainnet.Vault.PublicKey().ToBase58())
	assert.NotEqual(t, devnet.VaultUsdc.PublicKey().ToBase58(), mainnet.VaultUsdc.PublicKey().ToBase58())
}

func TestGetUsdcMint(t *testing.T) {
	assert.Equal(t, UsdcMintDevnetAccount, GetUsdcMint("devnet"))
	assert.Equal(t, UsdcMintMainnetAccount, GetUsdcMint("mainnet-beta"))
}
