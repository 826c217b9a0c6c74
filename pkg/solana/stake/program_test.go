package stake

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/system"
)

func TestAuthorize(t *testing.T) {
	keys := generateKeys(t, 4)

	ixn := Authorize(keys[1], keys[2], keys[3], AuthorityWithdrawer)

	assert.EqualValues(t, ProgramKey, ixn.Program)
	require.Len(t, ixn.Data, 40)
	assert.EqualValues(t, CommandAuthorize, binary.LittleEndian.Uint32(ixn.Data))
	assert.EqualValues(t, keys[3], ixn.Data[4:36])
	assert.EqualValues(t, AuthorityWithdrawer, binary.LittleEndian.Uint32(ixn.Data[36:]))

	require.Len(t, ixn.Accounts, 3)
	assert.True(t, ixn.Accounts[0].IsWritable)
	assert.False(t, ixn.Accounts[0].IsSigner)
	assert.EqualValues(t, system.ClockSysVar, ixn.Accounts[1].PublicKey)
	assert.True(t, ixn.Accounts[2].IsSigner)
	assert.False(t, ixn.Accounts[2].IsWritable)

	params, err := DecodeAuthorize(ixn.Data)
	require.NoError(t, err)
	assert.EqualValues(t, keys[3], params.NewAuthority)
	assert.Equal(t, AuthorityWithdrawer, params.Authority)
}

func TestDecodeAuthorize_Invalid(t *testing.T) {
	keys := generateKeys(t, 4)

	_, err := DecodeAuthorize(system.Transfer(keys[1], keys[2], 10).Data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	data := Authorize(keys[1], keys[2], keys[3], AuthorityStaker).Data
	_, err = DecodeAuthorize(data[:10])
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	binary.LittleEndian.PutUint32(data[36:], 7)
	_, err = DecodeAuthorize(data)
	assert.Error(t, err)

	binary.LittleEndian.PutUint32(data, uint32(CommandInitialize))
	_, err = DecodeAuthorize(data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestAccount_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 3)

	expected := &Account{
		State:             StateStake,
		RentExemptReserve: 2_282_880,
		Staker:            keys[0],
		Withdrawer:        keys[1],
		LockupTimestamp:   -1,
		LockupEpoch:       7,
		LockupCustodian:   keys[2],
	}

	var actual Account
	require.NoError(t, actual.Unmarshal(expected.Marshal()))
	assert.Equal(t, expected, &actual)
	assert.True(t, actual.IsInitialized())

	assert.Equal(t, ErrInvalidStakeAccount, actual.Unmarshal(make([]byte, AccountSize-1)))

	invalid := make([]byte, AccountSize)
	invalid[0] = 9
	assert.Equal(t, ErrInvalidStakeAccount, actual.Unmarshal(invalid))

	var uninitialized Account
	require.NoError(t, uninitialized.Unmarshal(make([]byte, AccountSize)))
	assert.False(t, uninitialized.IsInitialized())
}

func generateKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
