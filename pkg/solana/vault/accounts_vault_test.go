package vault

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultAccount_Layout(t *testing.T) {
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	stakeAccount, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	expected := &VaultAccount{
		Owner:        owner,
		StakeAccount: stakeAccount,
		Bump:         254,
		UsdcBump:     253,
		Flags:        VaultFlagDisabled,
	}

	data := expected.Marshal()
	require.Len(t, data, VaultAccountSize)
	assert.Equal(t, 83, VaultAccountSize)
	assert.Equal(t, VaultAccountDiscriminator, data[:8])
	assert.EqualValues(t, owner, data[8:40])
	assert.EqualValues(t, stakeAccount, data[40:72])
	assert.EqualValues(t, 254, data[72])
	assert.EqualValues(t, 253, data[73])
	assert.EqualValues(t, 1, data[74])

	var actual VaultAccount
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, &actual)
	assert.True(t, actual.IsDisabled())
}

func TestVaultAccount_InvalidData(t *testing.T) {
	var account VaultAccount
	assert.Equal(t, ErrInvalidAccountData, account.Unmarshal(make([]byte, VaultAccountSize-1)))
	assert.Equal(t, ErrInvalidAccountData, account.Unmarshal(make([]byte, VaultAccountSize)))
}
