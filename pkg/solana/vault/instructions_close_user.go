package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
)

var closeUserInstructionDiscriminator = []byte{
	0x56, 0xdb, 0x8a, 0x8c, 0xec, 0x18, 0x76, 0xc8,
}

const (
	CloseUserInstructionArgsSize = 0
)

type CloseUserInstructionArgs struct {
}

// The Drift user is passed read-only so the program can refuse to close a
// vault that is still registered.
type CloseUserInstructionAccounts struct {
	Vault     ed25519.PublicKey
	VaultUsdc ed25519.PublicKey
	Owner     ed25519.PublicKey
	DriftUser ed25519.PublicKey
}

func NewCloseUserInstruction(
	accounts *CloseUserInstructionAccounts,
	args *CloseUserInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(closeUserInstructionDiscriminator)+
			CloseUserInstructionArgsSize)

	putDiscriminator(data, closeUserInstructionDiscriminator, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Vault,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.VaultUsdc,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.DriftUser,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SPL_TOKEN_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
