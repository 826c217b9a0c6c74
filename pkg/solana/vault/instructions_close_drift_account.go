package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
)

var closeDriftAccountInstructionDiscriminator = []byte{
	0xa9, 0xf9, 0xc3, 0x78, 0xce, 0x4f, 0x90, 0xec,
}

const (
	CloseDriftAccountInstructionArgsSize = 0
)

type CloseDriftAccountInstructionArgs struct {
}

type CloseDriftAccountInstructionAccounts struct {
	Vault          ed25519.PublicKey
	Owner          ed25519.PublicKey
	DriftUser      ed25519.PublicKey
	DriftUserStats ed25519.PublicKey
	DriftState     ed25519.PublicKey
}

func NewCloseDriftAccountInstruction(
	accounts *CloseDriftAccountInstructionAccounts,
	args *CloseDriftAccountInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(closeDriftAccountInstructionDiscriminator)+
			CloseDriftAccountInstructionArgsSize)

	putDiscriminator(data, closeDriftAccountInstructionDiscriminator, &offset)

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
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.DriftUser,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.DriftUserStats,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.DriftState,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  DRIFT_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
