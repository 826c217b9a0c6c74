package token

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
)

func TestInstructions(t *testing.T) {
	keys := generateKeys(t, 3)

	for _, tc := range []struct {
		ixn      solana.Instruction
		command  Command
		amount   uint64
		accounts []solana.AccountMeta
	}{
		{
			ixn:     Transfer(keys[0], keys[1], keys[2], 123456789),
			command: CommandTransfer,
			amount:  123456789,
			accounts: []solana.AccountMeta{
				{PublicKey: keys[0], IsWritable: true},
				{PublicKey: keys[1], IsWritable: true},
				{PublicKey: keys[2], IsSigner: true},
			},
		},
		{
			ixn:     CloseAccount(keys[0], keys[1], keys[2]),
			command: CommandCloseAccount,
			accounts: []solana.AccountMeta{
				{PublicKey: keys[0], IsWritable: true},
				{PublicKey: keys[1], IsWritable: true},
				{PublicKey: keys[2], IsSigner: true},
			},
		},
		{
			ixn:     SyncNative(keys[0]),
			command: CommandSyncNative,
			accounts: []solana.AccountMeta{
				{PublicKey: keys[0], IsWritable: true},
			},
		},
	} {
		assert.EqualValues(t, ProgramKey, tc.ixn.Program)
		assert.Equal(t, tc.accounts, tc.ixn.Accounts)

		command, amount, err := DecodeInstruction(tc.ixn.Data)
		require.NoError(t, err)
		assert.Equal(t, tc.command, command)
		assert.Equal(t, tc.amount, amount)
	}
}

func TestDecodeInstruction_Invalid(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		{byte(CommandTransfer), 1, 2, 3},
		{byte(CommandCloseAccount), 0},
		{byte(CommandSyncNative), 0, 0},
		{7},
	} {
		_, _, err := DecodeInstruction(data)
		assert.Error(t, err, "%v", data)
	}

	_, _, err := DecodeInstruction([]byte{1})
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
