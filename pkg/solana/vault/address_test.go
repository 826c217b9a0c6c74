package vault

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana/token"
)

func TestVaultAddresses(t *testing.T) {
	owner := mustBase58Decode("5nNBW1KhzHVbR4NMPLYPRYj3UN5vgiw5GrtpdK6eGoce")

	vault, bump, err := GetVaultAddress(owner)
	require.NoError(t, err)
	assert.Equal(t, "adijNxKYA9EwLnSgktvJ6YtFzQA44ragLsHU5hBn5BZ", base58.Encode(vault))
	assert.EqualValues(t, 255, bump)

	vaultUsdc, usdcBump, err := GetVaultUsdcAddress(owner, USDC_MINT_DEVNET)
	require.NoError(t, err)
	assert.Equal(t, "3XbkYZr4KdKfdKnkcQGaKQQvMAUvw3EaLGMo9x1EMyJy", base58.Encode(vaultUsdc))
	assert.EqualValues(t, 254, usdcBump)

	vaultWsol, _, err := GetVaultSplAddress(vault, token.WrappedSolMint)
	require.NoError(t, err)
	assert.Equal(t, "94JenfF9sTcWErDvJV817oH7pNqQw7iAqdyd9aokhb7x", base58.Encode(vaultWsol))
}

func TestVaultAddresses_Properties(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		owner, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		vault, bump, err := GetVaultAddress(owner)
		require.NoError(t, err)

		again, againBump, err := GetVaultAddress(owner)
		require.NoError(t, err)
		assert.EqualValues(t, vault, again)
		assert.Equal(t, bump, againBump)

		vaultUsdc, _, err := GetVaultUsdcAddress(owner, USDC_MINT_MAINNET)
		require.NoError(t, err)
		assert.NotEqualValues(t, vault, vaultUsdc)

		vaultSpl, _, err := GetVaultSplAddress(vault, USDC_MINT_MAINNET)
		require.NoError(t, err)
		assert.NotEqualValues(t, vaultUsdc, vaultSpl)

		_, ok := seen[string(vault)]
		assert.False(t, ok)
		seen[string(vault)] = struct{}{}
	}
}
